// Package telegram adapts the Bot API client to the delivery and
// notification needs of the rest of the bot.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"homework_bot/internal/broadcast"
	"homework_bot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseMode used for everything the bot sends
const ParseMode = tgbotapi.ModeHTML

// API is the subset of *tgbotapi.BotAPI the sender uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Sender delivers messages and broadcast payloads
type Sender struct {
	api API
}

func NewSender(api API) *Sender {
	return &Sender{api: api}
}

// PayloadMessage builds the Bot API request for a broadcast payload.
// Payloads go out as plain text, exactly as the admin typed them.
func PayloadMessage(chatID int64, p domain.Payload) (tgbotapi.Chattable, bool) {
	switch p.Kind {
	case domain.PayloadText:
		msg := tgbotapi.NewMessage(chatID, p.Text)
		msg.DisableWebPagePreview = true
		return msg, true
	case domain.PayloadPhoto:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(p.FileID))
		photo.Caption = p.Caption
		return photo, true
	case domain.PayloadAnimation:
		anim := tgbotapi.NewAnimation(chatID, tgbotapi.FileID(p.FileID))
		anim.Caption = p.Caption
		return anim, true
	default:
		return nil, false
	}
}

// Deliver sends a broadcast payload to one recipient and classifies the result
func (s *Sender) Deliver(_ context.Context, recipientID int64, p domain.Payload) broadcast.Delivery {
	msg, ok := PayloadMessage(recipientID, p)
	if !ok {
		return broadcast.Delivery{Outcome: broadcast.Failed, Err: broadcast.ErrUnsupportedContent}
	}
	_, err := s.api.Send(msg)
	return Classify(err)
}

// Notify sends an HTML text message
func (s *Sender) Notify(_ context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = ParseMode
	msg.DisableWebPagePreview = true
	_, err := s.api.Send(msg)
	return err
}

// Typing shows the typing indicator in a chat
func (s *Sender) Typing(chatID int64) {
	_, _ = s.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
}

// Classify maps a Send error onto a delivery outcome
func Classify(err error) broadcast.Delivery {
	if err == nil {
		return broadcast.Delivery{Outcome: broadcast.Delivered}
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusForbidden:
			return broadcast.Delivery{Outcome: broadcast.Blocked, Err: err}
		case apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0:
			return broadcast.Delivery{
				Outcome:    broadcast.RateLimited,
				RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second,
				Err:        err,
			}
		}
		return broadcast.Delivery{Outcome: broadcast.Failed, Err: err}
	}

	// errors that lost their type on the way up
	text := strings.ToLower(err.Error())
	if strings.Contains(text, "blocked") || strings.Contains(text, "deactivated") {
		return broadcast.Delivery{Outcome: broadcast.Blocked, Err: err}
	}
	return broadcast.Delivery{Outcome: broadcast.Failed, Err: err}
}

// IsBlocked reports whether err means the user blocked the bot
func IsBlocked(err error) bool {
	return err != nil && Classify(err).Outcome == broadcast.Blocked
}
