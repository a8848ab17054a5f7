package bot

import (
	"fmt"
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var buttonTexts = map[string]bool{
	BtnNewTask: true,
	BtnAbout:   true,
	BtnPhoto:   true,
	BtnLimits:  true,
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnNewTask),
			tgbotapi.NewKeyboardButton(BtnAbout),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnPhoto),
			tgbotapi.NewKeyboardButton(BtnLimits),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func supportKeyboard(supportURL string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💬 Условия конкурса", supportURL),
		),
	)
}

// referralLink is the deep link that starts the bot on behalf of an inviter
func referralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}

func shareURL(link, text string) string {
	return "https://t.me/share/url?url=" + url.QueryEscape(link) + "&text=" + url.QueryEscape(text)
}

func shareKeyboard(link string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📣 ПОДЕЛИТЬСЯ", shareURL(link, textShare)),
		),
	)
}
