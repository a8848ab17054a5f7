package bot

import (
	"context"

	"homework_bot/internal/domain"
	"homework_bot/internal/service"
	"homework_bot/internal/telegram"
)

// ReferralNotices tells inviters about new referrals and reached milestones
type ReferralNotices struct {
	sender *telegram.Sender
	bonus  int64
	prizes []domain.Prize
}

func NewReferralNotices(api telegram.API, bonus int64, prizes []domain.Prize) *ReferralNotices {
	if prizes == nil {
		prizes = domain.DefaultPrizes
	}
	return &ReferralNotices{sender: telegram.NewSender(api), bonus: bonus, prizes: prizes}
}

func (n *ReferralNotices) NewReferral(ctx context.Context, inviterID int64, invitee service.Visitor, invited int64) error {
	text := newReferralText(displayName(invitee.Username, invitee.ID), n.bonus, progressLine(n.prizes, invited))
	return n.sender.Notify(ctx, inviterID, text)
}

func (n *ReferralNotices) MilestoneReached(ctx context.Context, inviterID int64, prize domain.Prize, invited int64) error {
	return n.sender.Notify(ctx, inviterID, milestoneText(prize, invited))
}
