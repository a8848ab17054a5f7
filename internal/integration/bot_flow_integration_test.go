package integration

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"homework_bot/internal/bot"
	"homework_bot/internal/broadcast"
	"homework_bot/internal/db"
	"homework_bot/internal/fsm"
	"homework_bot/internal/repository"
	"homework_bot/internal/service"
	"homework_bot/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatLog struct {
	mu   sync.Mutex
	msgs map[int64][]string
}

func (c *chatLog) Send(m tgbotapi.Chattable) (tgbotapi.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg, ok := m.(tgbotapi.MessageConfig); ok {
		c.msgs[msg.ChatID] = append(c.msgs[msg.ChatID], msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (c *chatLog) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (c *chatLog) count(chatID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs[chatID])
}

type echoTutor struct{}

func (echoTutor) ReadTask(context.Context, []byte) (string, error) { return "", nil }

func (echoTutor) Explain(_ context.Context, task string) (string, error) {
	return "Разбор: " + task, nil
}

type noFiles struct{}

func (noFiles) Download(context.Context, string) ([]byte, error) { return nil, os.ErrNotExist }

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool)
	require.NoError(t, err)
	return pool
}

func message(from int64, text string, command bool) *tgbotapi.Message {
	m := &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: from},
		Text: text,
	}
	if command {
		n := len(text)
		for i, r := range text {
			if r == ' ' {
				n = i
				break
			}
		}
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Length: n}}
	}
	return m
}

func feed(b *bot.Bot, msgs ...*tgbotapi.Message) {
	for _, m := range msgs {
		b.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
	}
}

func TestReferralAndTaskFlow(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	users := repository.NewUserRepository(pool)
	refs := repository.NewReferralRepository(pool)
	usage := repository.NewUsageRepository(pool)
	audit := repository.NewAuditRepository(pool)

	api := &chatLog{msgs: make(map[int64][]string)}
	states := fsm.NewMemoryStore(time.Hour)
	admin := service.NewAdminService(users, refs, usage, service.NewAuditService(audit))
	quota := service.NewQuotaService(users, usage, 2)

	base := time.Now().UnixNano() / 1000 % 1_000_000_000_000
	adminID, inviter, invitee := base+1, base+2, base+3

	b := bot.New(api, bot.Options{Username: "onegin_bot", AdminIDs: []int64{adminID}}, bot.Deps{
		Quota:      quota,
		Onboarding: service.NewReferralService(users, refs, bot.NewReferralNotices(api, 5, nil), 5, 5),
		Presence:   service.NewUserService(users, 5),
		Tutor:      echoTutor{},
		Files:      noFiles{},
		Admin:      admin,
		States:     states,
		Sessions:   broadcast.NewSessions(states),
		Dispatcher: broadcast.NewDispatcher(telegram.NewSender(api), time.Millisecond),
	})

	feed(b,
		message(inviter, "/start", true),
		message(invitee, "/start "+strconv.FormatInt(inviter, 10), true),
	)
	assert.Equal(t, 3, api.count(inviter), "greeting, menu and referral notice")

	inviterBalance, err := users.GetBalance(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, int64(10), inviterBalance)

	n, err := refs.Count(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// the referral link only counts once
	feed(b, message(invitee, "/start "+strconv.FormatInt(inviter, 10), true))
	inviterBalance, err = users.GetBalance(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, int64(10), inviterBalance)

	// includes today's refill
	before, err := quota.Peek(ctx, invitee)
	require.NoError(t, err)

	feed(b,
		message(invitee, bot.BtnNewTask, false),
		message(invitee, "Математика, 5 класс: 2+2", false),
	)

	after, err := users.GetBalance(ctx, invitee)
	require.NoError(t, err)
	assert.Equal(t, before-1, after)

	requests, err := usage.Count(ctx, invitee, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), requests)

	st, err := states.Get(ctx, invitee)
	require.NoError(t, err)
	assert.Equal(t, fsm.StateIdle, st.Name)

	feed(b, message(adminID, "/give "+strconv.FormatInt(invitee, 10)+" 3", true))
	after2, err := users.GetBalance(ctx, invitee)
	require.NoError(t, err)
	assert.Equal(t, after+3, after2)

	logs, err := audit.GetRecent(ctx, 20)
	require.NoError(t, err)
	found := false
	for _, l := range logs {
		if l.AdminID == adminID && l.TargetUserID != nil && *l.TargetUserID == invitee {
			found = true
		}
	}
	assert.True(t, found, "admin grant is audited")
}
