package domain

import "time"

// UsageEvent is one accounted request. Append-only.
type UsageEvent struct {
	ID     int64     `db:"id" json:"id"`
	UserID int64     `db:"user_id" json:"user_id"`
	TS     time.Time `db:"ts" json:"ts"`
}
