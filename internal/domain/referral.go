package domain

import "time"

// ReferralEdge records that Invitee was brought in by Inviter. Each invitee has at most one edge.
type ReferralEdge struct {
	InviterID int64     `db:"inviter_id" json:"inviter_id"`
	InviteeID int64     `db:"invitee_id" json:"invitee_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Milestone records that an inviter reached a referral count threshold
type Milestone struct {
	InviterID int64     `db:"inviter_id" json:"inviter_id"`
	Milestone int       `db:"milestone" json:"milestone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Prize is a referral threshold with the reward shown to the inviter
type Prize struct {
	Threshold int
	Title     string
}

// DefaultPrizes are the referral contest rewards
var DefaultPrizes = []Prize{
	{Threshold: 15, Title: "📱 iPhone 17"},
}
