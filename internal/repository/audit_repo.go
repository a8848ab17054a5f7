package repository

import (
	"context"

	"homework_bot/internal/domain"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository handles the admin audit trail
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit entry
func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	detailsJSON, err := sonic.Marshal(entry.Details)
	if err != nil || entry.Details == nil {
		detailsJSON = []byte("{}")
	}

	return r.db.QueryRow(ctx, `
		INSERT INTO admin_audit (admin_id, action, target_user_id, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, entry.AdminID, entry.Action, entry.TargetUserID, detailsJSON).Scan(&entry.ID, &entry.CreatedAt)
}

// GetRecent returns the most recent audit entries
func (r *AuditRepository) GetRecent(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, admin_id, action, target_user_id, details, created_at
		FROM admin_audit
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

func scanAuditLogs(rows pgx.Rows) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	for rows.Next() {
		var entry domain.AuditLog
		var detailsJSON []byte
		if err := rows.Scan(&entry.ID, &entry.AdminID, &entry.Action, &entry.TargetUserID, &detailsJSON, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := sonic.Unmarshal(detailsJSON, &entry.Details); err != nil {
			entry.Details = make(map[string]any)
		}
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
