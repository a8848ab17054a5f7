package domain

import "time"

// StartingCredits is the balance a user receives on first contact
const StartingCredits = 5

type User struct {
	ID            int64      `db:"user_id" json:"user_id"`
	Username      string     `db:"username" json:"username,omitempty"`
	Credits       int64      `db:"credits" json:"credits"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	LastActiveAt  time.Time  `db:"last_active_at" json:"last_active_at"`
	LastRefillDay *time.Time `db:"last_refill_day" json:"last_refill_day,omitempty"`
	ReferredBy    *int64     `db:"referred_by" json:"referred_by,omitempty"`
}

// UserCard is the admin view of a single user
type UserCard struct {
	User
	InvitedCount int64
	Requests24h  int64
}

// ActivityStats counts users over a trailing window
type ActivityStats struct {
	NewUsers    int64 `json:"new_users"`
	ActiveUsers int64 `json:"active_users"`
}

// DayOf returns the UTC calendar day containing t, used as the refill key
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
