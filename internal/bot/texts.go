package bot

import (
	"fmt"
	"html"
	"strings"

	"homework_bot/internal/broadcast"
	"homework_bot/internal/domain"
	"homework_bot/internal/repository"
)

// Keyboard buttons
const (
	BtnNewTask = "✍️ Новое задание"
	BtnAbout   = "📌 Что я умею"
	BtnPhoto   = "📷 Решить по фото"
	BtnLimits  = "💳 Лимиты"
)

const (
	textGreeting = "Привет! Я решебник Онегин ✍️📘\n\n" +
		"🤝 Твой школьный ИИ-наставник. Помогаю разбирать задачи по шагам.\n\n" +
		"📚 Умею решать все предметы, объясняя простыми словами.\n\n" +
		"Лайфхаки для лучшего результата:\n" +
		"• Делай четкие фото при хорошем свете\n" +
		"• Пиши после ответа доп. вопросы, если нужно больше информации\n\n" +
		"Нажми НОВОЕ ЗАДАНИЕ, и поехали 👇"

	textPickAction = "Напиши задачу или выбери кнопку 👇"

	textHelp = "Напиши задачу текстом, я объясню шаги решения ✅"

	textAskTask = "Ок! Напиши задачу вот так 👇\n\n" +
		"📘 Предмет:\n" +
		"🎓 Класс:\n" +
		"📝 Условие:\n" +
		"❓ Что нужно найти:\n\n" +
		"Пример:\n" +
		"Математика, 7 класс\n" +
		"Найди значение выражения ...\n\n" +
		"❗️Важно: один запрос = одно упражнение/задание❗️"

	textAbout = "📌 Что я умею\n\n" +
		"✍️ Решаю задачи любой сложности\n" +
		"📸 Понимаю фото из учебника\n" +
		"🎙️ Голосовые сообщения скоро\n" +
		"💡 Пишу сочинения, рефераты и эссе\n" +
		"🧮 Работаю с математическими формулами\n\n" +
		"🚀 Помогаю разбираться в учёбе и становиться лучше шаг за шагом.\n\n" +
		"Нашёл ошибку или хочешь улучшить бота? Напиши нам 🙌"

	textSendPhoto = "📷 Пришли фото задания!"

	textPressNewTask = "Чтобы я решил задачу, нажми «" + BtnNewTask + "» 🙂"

	textExhausted = "💳 Ответов больше нет.\n" +
		"🎁 Завтра автоматически начислится +2\n\n" +
		"🤝 Хочешь продолжить уже сейчас?\n" +
		"Пригласи друга и получи +5 ответов.\n\n" +
		"Открой «" + BtnLimits + "» и забери ссылку."

	textPhotoReading   = "🧠 Понял задачу с фото. Решаю…"
	textPhotoFailed    = "⛔️ Не получилось прочитать фото. Попробуй другое (четче/ближе)."
	textPhotoNoText    = "⛔️ Я не увидел текст на фото. Сделай фото ближе и ровнее."
	textAnswerFailed   = "⛔️ Не получилось подготовить ответ. Попробуй ещё раз чуть позже, ответ не списан."
	textTemporaryError = "⚠️ Что-то пошло не так. Попробуй ещё раз."

	textSticker   = "Стикеры пока не понимаю 🙌 Пришли задачу текстом."
	textAnimation = "Я пока не понимаю GIF 🙌 Пришли задачу текстом."
	textVoice     = "Голосовые пока не поддерживаются 🎤 Пришли задачу текстом."
	textVideoNote = "Кружочки пока не понимаю 🎥 Напиши задачу текстом."

	textShare = "🆓 Забирай бесплатные ответы в решебнике! Жми Start 👇"

	textCancelled = "✅ Отменено."
	textNoAccess  = "⛔️ Нет доступа"
)

// Admin copy
const (
	textAdminHelp = `🛠 <b>Админка</b>
/stats — статистика за 24ч
/give &lt;id|@username&gt; &lt;кол-во&gt; — выдать кредиты (можно отрицательное)
/set &lt;id|@username&gt; &lt;кол-во&gt; — установить кредиты
/user &lt;id|@username&gt; — карточка юзера
/referrals [лимит] — топ по рефералам
/audit [лимит] — последние действия админов
/broadcast — рассылка всем
/send — подтвердить рассылку
/cancel — отмена действия`

	textBroadcastStart = "📣 Рассылка\n\n" +
		"Пришли ОДНО сообщение для рассылки всем пользователям:\n" +
		"— текст\n" +
		"— фото с подписью\n" +
		"— gif\n\n" +
		"Отмена: /cancel"

	textBroadcastUnsupported  = "❌ Этот тип сообщения не поддерживается"
	textBroadcastAccepted     = "✅ Принял. Напиши /send для рассылки или /cancel"
	textBroadcastNeedContent  = "Сначала пришли сообщение для рассылки или /cancel"
	textBroadcastNeedConfirm  = "Напиши /send для рассылки или /cancel"
	textBroadcastNothing      = "❌ Нечего отправлять. Запусти /broadcast заново."
	textBroadcastNoRecipients = "❌ Нет пользователей для рассылки"

	textUsageGive = "Формат: /give user_id 10"
	textUsageSet  = "Формат: /set user_id 10"
	textUsageUser = "Формат: /user user_id"
)

func creditsLeftText(n int64) string {
	return fmt.Sprintf("💳 Ответов осталось: %d", n)
}

func limitsText(credits int64, refLink string) string {
	return fmt.Sprintf("💳 Ответов осталось: %d\n\n"+
		"🆓 Получи прямо сейчас бесплатные ответы за друзей:\n\n"+
		"👉 Скопируй ссылку\n"+
		"👉 Отправь её своим друзьям и одноклассникам\n"+
		"👉👉 Пользуйся решебником БЕСПЛАТНО!\n\n"+
		"Твоя ссылка (нажми, чтобы скопировать):\n"+
		"<pre><code>%s</code></pre>", credits, html.EscapeString(refLink))
}

// mainPrize is the prize whose progress is shown to inviters
func mainPrize(prizes []domain.Prize) (domain.Prize, bool) {
	if len(prizes) == 0 {
		return domain.Prize{}, false
	}
	best := prizes[0]
	for _, p := range prizes[1:] {
		if p.Threshold < best.Threshold {
			best = p
		}
	}
	return best, true
}

func progressLine(prizes []domain.Prize, invited int64) string {
	p, ok := mainPrize(prizes)
	if !ok {
		return ""
	}
	return fmt.Sprintf("Прогресс %s: %d / %d", p.Title, invited, p.Threshold)
}

func displayName(username string, id int64) string {
	if username != "" {
		return "@" + username
	}
	return fmt.Sprintf("id:%d", id)
}

func newReferralText(invitee string, bonus int64, progress string) string {
	var sb strings.Builder
	sb.WriteString("🎉 Новый реферал!\n")
	fmt.Fprintf(&sb, "👤 Друг: %s\n", html.EscapeString(invitee))
	fmt.Fprintf(&sb, "✅ Начислено +%d ответов 🎁", bonus)
	if progress != "" {
		sb.WriteString("\n" + progress)
	}
	return sb.String()
}

func milestoneText(p domain.Prize, invited int64) string {
	return fmt.Sprintf("🔥 Ты пригласил %d друзей и участвуешь в розыгрыше: %s!", invited, p.Title)
}

func statsText(s *domain.ActivityStats) string {
	return fmt.Sprintf("📊 Статистика за 24ч:\n🆕 Новых: %d\n🔥 Активных: %d", s.NewUsers, s.ActiveUsers)
}

func cardText(c *domain.UserCard, prizes []domain.Prize) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 <b>Юзер %d</b>\n", c.ID)
	uname := "—"
	if c.Username != "" {
		uname = "@" + html.EscapeString(c.Username)
	}
	sb.WriteString(uname + "\n")
	fmt.Fprintf(&sb, "💳 Кредиты: %d\n", c.Credits)
	fmt.Fprintf(&sb, "🗓 Зарегистрирован: %s\n", c.CreatedAt.UTC().Format("02.01.2006 15:04"))
	fmt.Fprintf(&sb, "🔥 Последняя активность: %s\n", c.LastActiveAt.UTC().Format("02.01.2006 15:04"))
	fmt.Fprintf(&sb, "📨 Запросов за 24ч: %d\n", c.Requests24h)
	fmt.Fprintf(&sb, "👥 Приглашено: %d", c.InvitedCount)
	if line := progressLine(prizes, c.InvitedCount); line != "" {
		sb.WriteString("\n\n📊 " + line)
	}
	if p, ok := mainPrize(prizes); ok && c.InvitedCount >= int64(p.Threshold) {
		sb.WriteString("\n🔥 В розыгрыше: " + p.Title)
	}
	return sb.String()
}

func topInvitersText(stats []repository.InviterStat) string {
	if len(stats) == 0 {
		return "❌ Нет пользователей с рефералами"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>👥 Топ %d по рефералам</b>\n\n", len(stats))
	for i, s := range stats {
		fmt.Fprintf(&sb, "%d. %s (%d) — %d\n", i+1, html.EscapeString(displayName(s.Username, s.UserID)), s.UserID, s.Count)
	}
	return sb.String()
}

func auditText(logs []*domain.AuditLog) string {
	if len(logs) == 0 {
		return "Журнал пуст"
	}
	var sb strings.Builder
	sb.WriteString("<b>🧾 Последние действия</b>\n\n")
	for _, l := range logs {
		target := ""
		if l.TargetUserID != nil {
			target = fmt.Sprintf(" → %d", *l.TargetUserID)
		}
		fmt.Fprintf(&sb, "%s · %d · %s%s\n", l.CreatedAt.UTC().Format("02.01 15:04"), l.AdminID, l.Action, target)
	}
	return sb.String()
}

func broadcastStartingText(n int) string {
	return fmt.Sprintf("🚀 Начинаю рассылку: %d пользователям...", n)
}

func broadcastReportText(r broadcast.Report) string {
	text := fmt.Sprintf("✅ Рассылка завершена.\n"+
		"📬 Успешно: %d\n"+
		"⚠️ Ошибок: %d\n"+
		"🚫 Заблокировали бота: %d\n"+
		"⏳ Лимит Telegram: %d",
		r.Delivered, r.Failed, r.Blocked, r.RateLimited)
	if r.Interrupted() {
		text = strings.Replace(text, "✅ Рассылка завершена.", "⛔ Рассылка прервана остановкой бота.", 1) +
			fmt.Sprintf("\n⏭ Не отправлено: %d", r.Skipped)
	}
	return text
}
