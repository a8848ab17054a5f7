package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"homework_bot/internal/broadcast"
	"homework_bot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.sent = append(f.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, f.err
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		want      broadcast.Outcome
		wantRetry time.Duration
	}{
		{name: "ok", err: nil, want: broadcast.Delivered},
		{name: "forbidden", err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}, want: broadcast.Blocked},
		{
			name:      "flood",
			err:       &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 3", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}},
			want:      broadcast.RateLimited,
			wantRetry: 3 * time.Second,
		},
		{name: "chat not found", err: &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, want: broadcast.Failed},
		{name: "wrapped forbidden", err: fmt.Errorf("send: %w", &tgbotapi.Error{Code: 403}), want: broadcast.Blocked},
		{name: "untyped deactivated", err: errors.New("Forbidden: user is deactivated"), want: broadcast.Blocked},
		{name: "network", err: errors.New("connection reset by peer"), want: broadcast.Failed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.err)
			assert.Equal(t, tt.want, got.Outcome)
			assert.Equal(t, tt.wantRetry, got.RetryAfter)
			if tt.err != nil {
				assert.Error(t, got.Err)
			}
		})
	}
}

func TestPayloadMessage(t *testing.T) {
	t.Parallel()

	msg, ok := PayloadMessage(7, domain.Payload{Kind: domain.PayloadText, Text: "<b>hi</b>"})
	require.True(t, ok)
	text, ok := msg.(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(7), text.ChatID)
	assert.Equal(t, "<b>hi</b>", text.Text)
	assert.Empty(t, text.ParseMode)

	msg, ok = PayloadMessage(7, domain.Payload{Kind: domain.PayloadPhoto, FileID: "AgAD", Caption: "cap"})
	require.True(t, ok)
	photo, ok := msg.(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.FileID("AgAD"), photo.File)
	assert.Equal(t, "cap", photo.Caption)

	msg, ok = PayloadMessage(7, domain.Payload{Kind: domain.PayloadAnimation, FileID: "CgAD"})
	require.True(t, ok)
	_, ok = msg.(tgbotapi.AnimationConfig)
	assert.True(t, ok)

	_, ok = PayloadMessage(7, domain.Payload{Kind: "voice"})
	assert.False(t, ok)
}

func TestDeliver(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api)

	d := s.Deliver(context.Background(), 1, domain.Payload{Kind: domain.PayloadText, Text: "x"})
	assert.Equal(t, broadcast.Delivered, d.Outcome)
	assert.Len(t, api.sent, 1)

	api.err = &tgbotapi.Error{Code: 403}
	d = s.Deliver(context.Background(), 2, domain.Payload{Kind: domain.PayloadText, Text: "x"})
	assert.Equal(t, broadcast.Blocked, d.Outcome)

	d = s.Deliver(context.Background(), 3, domain.Payload{Kind: "sticker"})
	assert.Equal(t, broadcast.Failed, d.Outcome)
	assert.Len(t, api.sent, 2, "unsupported payloads are not sent")
}

type staticResolver string

func (s staticResolver) GetFileDirectURL(string) (string, error) { return string(s), nil }

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	t.Cleanup(srv.Close)

	data, err := NewDownloader(staticResolver(srv.URL+"/photo")).Download(context.Background(), "id")
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	_, err = NewDownloader(staticResolver(srv.URL+"/missing")).Download(context.Background(), "id")
	assert.Error(t, err)
}
