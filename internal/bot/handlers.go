package bot

import (
	"context"
	"strings"

	"homework_bot/internal/fsm"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.reply(chatID, textHelp)
	case "cancel":
		if err := b.deps.States.Clear(ctx, msg.From.ID); err != nil {
			b.log.Warn("failed to clear state", "user_id", msg.From.ID, "error", err)
		}
		b.reply(chatID, textCancelled)
	case "admin", "stats", "give", "set", "user", "referrals", "audit", "broadcast", "send":
		if !b.isAdmin(msg.From.ID) {
			if cmd := msg.Command(); cmd == "admin" || cmd == "broadcast" {
				b.reply(chatID, textNoAccess)
			}
			return
		}
		b.handleAdminCommand(ctx, msg)
	default:
		b.reply(chatID, textHelp)
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	arrival, err := b.deps.Onboarding.Start(ctx, visitorOf(msg), msg.CommandArguments())
	if err != nil {
		b.log.Error("start failed", "user_id", msg.From.ID, "error", err)
		b.reply(chatID, textTemporaryError)
		return
	}
	if arrival.IsNew {
		b.log.Info("new user", "user_id", msg.From.ID, "inviter_id", arrival.InviterID, "referral_credited", arrival.ReferralCredited)
	}

	if err := b.deps.States.Clear(ctx, msg.From.ID); err != nil {
		b.log.Warn("failed to clear state", "user_id", msg.From.ID, "error", err)
	}

	greeting := tgbotapi.NewMessage(chatID, textGreeting)
	if b.opts.SupportURL != "" {
		greeting.ReplyMarkup = supportKeyboard(b.opts.SupportURL)
	}
	b.send(greeting)

	menu := tgbotapi.NewMessage(chatID, textPickAction)
	menu.ReplyMarkup = mainKeyboard()
	b.send(menu)
}

// handleButton answers the main keyboard. Buttons never charge credits,
// and pressing one while a task is awaited keeps the task flow open.
func (b *Bot) handleButton(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Text {
	case BtnNewTask:
		if err := b.deps.States.Set(ctx, msg.From.ID, fsm.State{Name: fsm.StateTaskWaiting}); err != nil {
			b.log.Error("failed to enter task flow", "user_id", msg.From.ID, "error", err)
			b.reply(chatID, textTemporaryError)
			return
		}
		b.reply(chatID, textAskTask)
	case BtnAbout:
		b.reply(chatID, textAbout)
	case BtnPhoto:
		b.reply(chatID, textSendPhoto)
	case BtnLimits:
		b.handleLimits(ctx, msg)
	}
}

func (b *Bot) handleLimits(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	credits, err := b.deps.Quota.Peek(ctx, msg.From.ID)
	if err != nil {
		b.log.Error("failed to read balance", "user_id", msg.From.ID, "error", err)
		b.reply(chatID, textTemporaryError)
		return
	}

	link := referralLink(b.opts.Username, msg.From.ID)
	reply := tgbotapi.NewMessage(chatID, limitsText(credits, link))
	reply.ParseMode = tgbotapi.ModeHTML
	reply.DisableWebPagePreview = true
	reply.ReplyMarkup = shareKeyboard(link)
	b.send(reply)
}

// hasCredits refills if due and reports whether a request can be served.
// It answers the user itself when not.
func (b *Bot) hasCredits(ctx context.Context, chatID, userID int64) bool {
	credits, err := b.deps.Quota.Peek(ctx, userID)
	if err != nil {
		b.log.Error("failed to read balance", "user_id", userID, "error", err)
		b.reply(chatID, textTemporaryError)
		return false
	}
	if credits <= 0 {
		b.reply(chatID, textExhausted)
		return false
	}
	return true
}

func (b *Bot) handleTask(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID

	if !b.hasCredits(ctx, chatID, userID) {
		b.clearTaskState(ctx, userID, fsm.State{Name: fsm.StateTaskWaiting})
		return
	}

	b.sender.Typing(chatID)
	answer, err := b.deps.Tutor.Explain(ctx, msg.Text)
	if err != nil {
		b.log.Warn("answer generation failed", "user_id", userID, "error", err)
		b.reply(chatID, textAnswerFailed)
		return
	}

	b.clearTaskState(ctx, userID, fsm.State{Name: fsm.StateTaskWaiting})
	b.chargeAndAnswer(ctx, chatID, userID, answer)
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID

	if !b.hasCredits(ctx, chatID, userID) {
		return
	}

	photo := msg.Photo[len(msg.Photo)-1]
	data, err := b.deps.Files.Download(ctx, photo.FileID)
	if err != nil {
		b.log.Warn("photo download failed", "user_id", userID, "error", err)
		b.reply(chatID, textPhotoFailed)
		return
	}

	b.sender.Typing(chatID)
	b.reply(chatID, textPhotoReading)

	task, err := b.deps.Tutor.ReadTask(ctx, data)
	if err != nil {
		b.log.Warn("photo recognition failed", "user_id", userID, "error", err)
		b.reply(chatID, textPhotoFailed)
		return
	}
	task = strings.TrimSpace(task)
	if task == "" {
		b.reply(chatID, textPhotoNoText)
		return
	}

	b.sender.Typing(chatID)
	answer, err := b.deps.Tutor.Explain(ctx, task)
	if err != nil {
		b.log.Warn("answer generation failed", "user_id", userID, "error", err)
		b.reply(chatID, textAnswerFailed)
		return
	}

	b.chargeAndAnswer(ctx, chatID, userID, answer)
}

// chargeAndAnswer spends one credit and only then delivers the answer
func (b *Bot) chargeAndAnswer(ctx context.Context, chatID, userID int64, answer string) {
	charge, err := b.deps.Quota.Charge(ctx, userID)
	if err != nil {
		b.log.Error("failed to charge", "user_id", userID, "error", err)
		b.reply(chatID, textTemporaryError)
		return
	}
	if !charge.OK {
		b.reply(chatID, textExhausted)
		return
	}

	b.replyLong(chatID, answer)
	if charge.CreditsLeft <= 0 {
		b.reply(chatID, textExhausted)
		return
	}
	b.reply(chatID, creditsLeftText(charge.CreditsLeft))
}
