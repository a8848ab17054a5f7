package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"homework_bot/internal/broadcast"
	"homework_bot/internal/domain"
	"homework_bot/internal/repository"
	"homework_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleAdminCommand processes admin commands outside a broadcast session
func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	var response string

	switch msg.Command() {
	case "admin":
		response = textAdminHelp
	case "stats":
		response = b.handleStats(ctx)
	case "give":
		response = b.handleGive(ctx, msg.From.ID, msg.CommandArguments())
	case "set":
		response = b.handleSet(ctx, msg.From.ID, msg.CommandArguments())
	case "user":
		response = b.handleUser(ctx, msg.CommandArguments())
	case "referrals":
		response = b.handleReferralStats(ctx, msg.CommandArguments())
	case "audit":
		response = b.handleAudit(ctx, msg.CommandArguments())
	case "broadcast":
		response = b.handleBroadcastStart(ctx, msg.From.ID)
	case "send":
		b.handleBroadcastSend(ctx, msg)
		return
	}

	b.replyHTML(chatID, response)
}

func (b *Bot) handleStats(ctx context.Context) string {
	stats, err := b.deps.Admin.Stats(ctx)
	if err != nil {
		return errText(err)
	}
	return statsText(stats)
}

// parseTarget reads "<id|@username> <amount>"
func (b *Bot) parseTarget(ctx context.Context, args string, allowNegative bool) (int64, int64, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return 0, 0, errUsage
	}
	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || (!allowNegative && amount < 0) {
		return 0, 0, errUsage
	}
	userID, err := b.deps.Admin.ResolveUser(ctx, parts[0])
	if err != nil {
		return 0, 0, err
	}
	return userID, amount, nil
}

var errUsage = errors.New("usage")

func adminError(err error, usage, target string) string {
	switch {
	case errors.Is(err, errUsage):
		return usage
	case service.IsNotFound(err):
		return fmt.Sprintf("Юзер %s не найден в базе.", html.EscapeString(target))
	case errors.Is(err, repository.ErrInvalidAmount):
		return "❌ Баланс не может быть отрицательным"
	default:
		return errText(err)
	}
}

func errText(err error) string {
	return "❌ Ошибка: " + html.EscapeString(err.Error())
}

func firstField(args string) string {
	if f := strings.Fields(args); len(f) > 0 {
		return f[0]
	}
	return ""
}

func (b *Bot) handleGive(ctx context.Context, adminID int64, args string) string {
	userID, delta, err := b.parseTarget(ctx, args, true)
	if err != nil {
		return adminError(err, textUsageGive, firstField(args))
	}

	balance, err := b.deps.Admin.Give(ctx, adminID, userID, delta)
	if err != nil {
		return adminError(err, textUsageGive, strconv.FormatInt(userID, 10))
	}
	b.log.Info("admin granted credits", "admin_id", adminID, "user_id", userID, "delta", delta)
	return fmt.Sprintf("✅ Готово. У юзера %d теперь %d кредитов.", userID, balance)
}

func (b *Bot) handleSet(ctx context.Context, adminID int64, args string) string {
	userID, value, err := b.parseTarget(ctx, args, false)
	if err != nil {
		return adminError(err, textUsageSet, firstField(args))
	}

	if err := b.deps.Admin.Set(ctx, adminID, userID, value); err != nil {
		return adminError(err, textUsageSet, strconv.FormatInt(userID, 10))
	}
	b.log.Info("admin set credits", "admin_id", adminID, "user_id", userID, "value", value)
	return fmt.Sprintf("✅ Установил %d кредитов для %d.", value, userID)
}

func (b *Bot) handleUser(ctx context.Context, args string) string {
	target := strings.TrimSpace(args)
	if target == "" || len(strings.Fields(target)) != 1 {
		return textUsageUser
	}

	userID, err := b.deps.Admin.ResolveUser(ctx, target)
	if err != nil {
		return adminError(err, textUsageUser, target)
	}
	card, err := b.deps.Admin.Card(ctx, userID)
	if err != nil {
		return adminError(err, textUsageUser, target)
	}
	return cardText(card, b.opts.Prizes)
}

func parseLimit(args string, def, maxLimit int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && n > 0 && n <= maxLimit {
		return n
	}
	return def
}

func (b *Bot) handleReferralStats(ctx context.Context, args string) string {
	stats, err := b.deps.Admin.TopInviters(ctx, parseLimit(args, 20, 100))
	if err != nil {
		return errText(err)
	}
	return topInvitersText(stats)
}

func (b *Bot) handleAudit(ctx context.Context, args string) string {
	logs, err := b.deps.Admin.RecentAudit(ctx, parseLimit(args, 10, 50))
	if err != nil {
		return errText(err)
	}
	return auditText(logs)
}

func (b *Bot) handleBroadcastStart(ctx context.Context, adminID int64) string {
	if err := b.deps.Sessions.Begin(ctx, adminID); err != nil {
		return errText(err)
	}
	return textBroadcastStart
}

// handleBroadcastInput handles everything an admin sends during a broadcast session
func (b *Bot) handleBroadcastInput(ctx context.Context, msg *tgbotapi.Message) {
	chatID, adminID := msg.Chat.ID, msg.From.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "cancel":
			if _, err := b.deps.Sessions.Cancel(ctx, adminID); err != nil {
				b.log.Error("failed to cancel broadcast", "admin_id", adminID, "error", err)
			}
			b.reply(chatID, textCancelled)
		case "broadcast":
			b.reply(chatID, b.handleBroadcastStart(ctx, adminID))
		case "send":
			b.handleBroadcastSend(ctx, msg)
		default:
			b.rejectDuringBroadcast(ctx, chatID, adminID)
		}
		return
	}

	err := b.deps.Sessions.Submit(ctx, adminID, payloadOf(msg))
	switch {
	case err == nil:
		b.reply(chatID, textBroadcastAccepted)
	case errors.Is(err, broadcast.ErrUnsupportedContent):
		b.reply(chatID, textBroadcastUnsupported)
	case errors.Is(err, broadcast.ErrAwaitingConfirmation):
		b.reply(chatID, textBroadcastNeedConfirm)
	case errors.Is(err, broadcast.ErrNoSession):
		b.reply(chatID, textBroadcastNothing)
	default:
		b.log.Error("failed to store broadcast content", "admin_id", adminID, "error", err)
		b.reply(chatID, textTemporaryError)
	}
}

func (b *Bot) rejectDuringBroadcast(ctx context.Context, chatID, adminID int64) {
	phase, err := b.deps.Sessions.Phase(ctx, adminID)
	if err != nil {
		b.reply(chatID, textTemporaryError)
		return
	}
	if phase == broadcast.PhaseAwaitingConfirmation {
		b.reply(chatID, textBroadcastNeedConfirm)
		return
	}
	b.reply(chatID, textBroadcastNeedContent)
}

// payloadOf extracts broadcast content. Unsupported messages yield an invalid payload.
func payloadOf(msg *tgbotapi.Message) domain.Payload {
	switch {
	case msg.Animation != nil:
		return domain.Payload{Kind: domain.PayloadAnimation, FileID: msg.Animation.FileID, Caption: msg.Caption}
	case len(msg.Photo) > 0:
		return domain.Payload{Kind: domain.PayloadPhoto, FileID: msg.Photo[len(msg.Photo)-1].FileID, Caption: msg.Caption}
	case msg.Text != "":
		return domain.Payload{Kind: domain.PayloadText, Text: msg.Text}
	default:
		return domain.Payload{}
	}
}

func (b *Bot) handleBroadcastSend(ctx context.Context, msg *tgbotapi.Message) {
	chatID, adminID := msg.Chat.ID, msg.From.ID

	payload, err := b.deps.Sessions.Confirm(ctx, adminID)
	switch {
	case errors.Is(err, broadcast.ErrAwaitingContent):
		b.reply(chatID, textBroadcastNeedContent)
		return
	case errors.Is(err, broadcast.ErrNoSession):
		b.reply(chatID, textBroadcastNothing)
		return
	case err != nil:
		b.log.Error("failed to confirm broadcast", "admin_id", adminID, "error", err)
		b.reply(chatID, textTemporaryError)
		return
	}

	// the run outlives the handler deadline but not a forced shutdown
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	defer context.AfterFunc(b.halt, cancel)()

	recipients, err := b.deps.Admin.Recipients(runCtx)
	if err != nil {
		b.log.Error("failed to get recipients", "error", err)
		b.replyHTML(chatID, errText(err))
		return
	}
	if len(recipients) == 0 {
		b.reply(chatID, textBroadcastNoRecipients)
		return
	}

	b.log.Info("starting broadcast", "admin_id", adminID, "kind", payload.Kind, "recipients", len(recipients))
	b.reply(chatID, broadcastStartingText(len(recipients)))

	rep := b.deps.Dispatcher.Run(runCtx, payload, recipients)

	b.log.Info("broadcast complete",
		"admin_id", adminID,
		"delivered", rep.Delivered,
		"failed", rep.Failed,
		"blocked", rep.Blocked,
		"rate_limited", rep.RateLimited,
		"skipped", rep.Skipped,
		"duration", rep.Duration,
	)
	// an interrupted run is still recorded
	recordCtx, cancelRecord := context.WithTimeout(context.WithoutCancel(runCtx), recordTimeout)
	defer cancelRecord()
	b.deps.Admin.RecordBroadcast(recordCtx, adminID, payload.Kind, rep)
	b.reply(chatID, broadcastReportText(rep))
}
