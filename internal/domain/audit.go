package domain

import "time"

// AuditLog records an administrative action
type AuditLog struct {
	ID           int64          `db:"id" json:"id"`
	AdminID      int64          `db:"admin_id" json:"admin_id"`
	Action       string         `db:"action" json:"action"`
	TargetUserID *int64         `db:"target_user_id" json:"target_user_id,omitempty"`
	Details      map[string]any `db:"details" json:"details"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Audit actions
const (
	AuditActionGrantCredits = "grant_credits"
	AuditActionSetCredits   = "set_credits"
	AuditActionBroadcast    = "broadcast"
)
