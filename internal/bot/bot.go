package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"homework_bot/internal/broadcast"
	"homework_bot/internal/domain"
	"homework_bot/internal/fsm"
	"homework_bot/internal/logger"
	"homework_bot/internal/repository"
	"homework_bot/internal/service"
	"homework_bot/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLen is Telegram's limit for one text message
const maxMessageLen = 4096

const handlerTimeout = 3 * time.Minute

// haltGrace is how long Stop waits for interrupted handlers to wind down
const haltGrace = 10 * time.Second

// recordTimeout bounds the audit write after a broadcast
const recordTimeout = 10 * time.Second

// Quota charges answered requests
type Quota interface {
	Peek(ctx context.Context, userID int64) (int64, error)
	Charge(ctx context.Context, userID int64) (service.Charge, error)
}

// Onboarding handles /start
type Onboarding interface {
	Start(ctx context.Context, v service.Visitor, startArg string) (service.Arrival, error)
}

// Presence records that a user wrote to the bot
type Presence interface {
	Seen(ctx context.Context, v service.Visitor) error
}

// Tutor reads tasks off photos and explains them
type Tutor interface {
	ReadTask(ctx context.Context, photo []byte) (string, error)
	Explain(ctx context.Context, task string) (string, error)
}

// Files downloads what users sent
type Files interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Admin is the administrative surface
type Admin interface {
	Stats(ctx context.Context) (*domain.ActivityStats, error)
	ResolveUser(ctx context.Context, identifier string) (int64, error)
	Card(ctx context.Context, userID int64) (*domain.UserCard, error)
	Give(ctx context.Context, adminID, userID, delta int64) (int64, error)
	Set(ctx context.Context, adminID, userID, value int64) error
	TopInviters(ctx context.Context, limit int) ([]repository.InviterStat, error)
	Recipients(ctx context.Context) ([]int64, error)
	RecordBroadcast(ctx context.Context, adminID int64, kind domain.PayloadKind, rep broadcast.Report)
	RecentAudit(ctx context.Context, limit int) ([]*domain.AuditLog, error)
}

// Deps are the collaborators of the bot
type Deps struct {
	Quota      Quota
	Onboarding Onboarding
	Presence   Presence
	Tutor      Tutor
	Files      Files
	Admin      Admin
	States     fsm.Store
	Sessions   *broadcast.Sessions
	Dispatcher *broadcast.Dispatcher
}

// Options are the static settings of the bot
type Options struct {
	Username   string
	AdminIDs   []int64
	SupportURL string
	Prizes     []domain.Prize
}

// Bot routes Telegram updates to the user and admin flows
type Bot struct {
	api    telegram.API
	sender *telegram.Sender
	deps   Deps
	opts   Options
	admins map[int64]struct{}
	queues *userQueues
	stopCh chan struct{}
	wg     sync.WaitGroup
	// halt is cancelled when Stop gives up waiting; it interrupts handlers
	// and running broadcasts
	halt   context.Context
	haltFn context.CancelFunc
	log    *slog.Logger
}

func New(api telegram.API, opts Options, deps Deps) *Bot {
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	if opts.Prizes == nil {
		opts.Prizes = domain.DefaultPrizes
	}
	halt, haltFn := context.WithCancel(context.Background())
	return &Bot{
		api:    api,
		sender: telegram.NewSender(api),
		deps:   deps,
		opts:   opts,
		admins: admins,
		queues: newUserQueues(),
		stopCh: make(chan struct{}),
		halt:   halt,
		haltFn: haltFn,
		log:    logger.With("component", "bot"),
	}
}

// Start consumes updates until Stop is called or the channel closes
func (b *Bot) Start(updates tgbotapi.UpdatesChannel) {
	b.log.Info("starting bot update loop", "username", b.opts.Username)

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}

			// one drainer per user keeps a user's updates in arrival order
			userID := update.Message.From.ID
			if b.queues.push(userID, update) {
				b.wg.Add(1)
				go b.drain(userID)
			}
		}
	}
}

func (b *Bot) drain(userID int64) {
	defer b.wg.Done()
	for {
		update, ok := b.queues.next(userID)
		if !ok {
			return
		}
		b.runUpdate(update)
	}
}

func (b *Bot) runUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("handler panic", "panic", r, "user_id", update.Message.From.ID)
		}
	}()

	ctx, cancel := context.WithTimeout(b.halt, handlerTimeout)
	defer cancel()
	b.HandleUpdate(ctx, update)
}

// HandleUpdate processes a single update on the calling goroutine
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	b.handleMessage(ctx, update.Message)
}

// Stop stops the loop and waits for running handlers. Handlers still
// running after timeout are interrupted, a broadcast among them records and
// reports what it managed to send, and Stop waits haltGrace for that.
func (b *Bot) Stop(timeout time.Duration) {
	b.log.Info("stopping bot...")
	close(b.stopCh)

	if b.waitHandlers(timeout) {
		b.log.Info("bot stopped gracefully")
		return
	}
	b.log.Warn("bot shutdown timeout, interrupting handlers", "users", b.queues.active())
	b.haltFn()
	if b.waitHandlers(haltGrace) {
		b.log.Info("bot stopped after interrupting handlers")
		return
	}
	b.log.Warn("some handlers did not complete")
}

func (b *Bot) waitHandlers(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	_, ok := b.admins[userID]
	return ok
}

// NotifyAdmins sends an HTML message to every admin
func (b *Bot) NotifyAdmins(ctx context.Context, text string) {
	for id := range b.admins {
		if err := b.sender.Notify(ctx, id, text); err != nil {
			b.log.Error("failed to notify admin", "admin_id", id, "error", err)
		}
	}
}

// SendDigest sends the trailing 24h activity stats to every admin
func (b *Bot) SendDigest(ctx context.Context) error {
	stats, err := b.deps.Admin.Stats(ctx)
	if err != nil {
		return err
	}
	b.NotifyAdmins(ctx, statsText(stats))
	return nil
}

func visitorOf(msg *tgbotapi.Message) service.Visitor {
	return service.Visitor{ID: msg.From.ID, Username: msg.From.UserName}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	st, err := b.deps.States.Get(ctx, userID)
	if err != nil {
		b.log.Error("failed to load conversation state", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, textTemporaryError)
		return
	}

	inBroadcast := st.Name == fsm.StateBroadcastContent || st.Name == fsm.StateBroadcastConfirmation
	if inBroadcast {
		if b.isAdmin(userID) {
			b.handleBroadcastInput(ctx, msg)
			return
		}
		// admin rights were revoked mid-session
		if err := b.deps.States.Clear(ctx, userID); err != nil {
			b.log.Warn("failed to clear stale broadcast state", "user_id", userID, "error", err)
		}
		st = fsm.State{}
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if err := b.deps.Presence.Seen(ctx, visitorOf(msg)); err != nil {
		b.log.Error("failed to record activity", "user_id", userID, "error", err)
	}

	switch {
	case buttonTexts[msg.Text]:
		b.handleButton(ctx, msg)
	case len(msg.Photo) > 0:
		b.clearTaskState(ctx, userID, st)
		b.handlePhoto(ctx, msg)
	case msg.Text != "" && st.Name == fsm.StateTaskWaiting:
		b.handleTask(ctx, msg)
	case msg.Sticker != nil:
		b.reply(msg.Chat.ID, textSticker)
	case msg.Animation != nil:
		b.reply(msg.Chat.ID, textAnimation)
	case msg.Voice != nil:
		b.reply(msg.Chat.ID, textVoice)
	case msg.VideoNote != nil:
		b.reply(msg.Chat.ID, textVideoNote)
	case msg.Text != "":
		b.reply(msg.Chat.ID, textPressNewTask)
	}
}

func (b *Bot) clearTaskState(ctx context.Context, userID int64, st fsm.State) {
	if st.Name != fsm.StateTaskWaiting {
		return
	}
	if err := b.deps.States.Clear(ctx, userID); err != nil {
		b.log.Warn("failed to clear task state", "user_id", userID, "error", err)
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		if telegram.IsBlocked(err) {
			b.log.Debug("user blocked the bot", "error", err)
			return
		}
		b.log.Error("error sending message", "error", err)
	}
}

// reply sends plain text
func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

// replyHTML sends text with HTML markup
func (b *Bot) replyHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = telegram.ParseMode
	msg.DisableWebPagePreview = true
	b.send(msg)
}

// replyLong sends plain text split to fit the message size limit
func (b *Bot) replyLong(chatID int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		b.reply(chatID, chunk)
	}
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks as cut points.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
