package service

import (
	"context"

	"homework_bot/internal/broadcast"
	"homework_bot/internal/domain"
	"homework_bot/internal/logger"
)

// AuditStore persists audit entries
type AuditStore interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	GetRecent(ctx context.Context, limit int) ([]*domain.AuditLog, error)
}

// AuditService handles audit logging
type AuditService struct {
	repo AuditStore
}

// NewAuditService creates a new audit service
func NewAuditService(repo AuditStore) *AuditService {
	return &AuditService{repo: repo}
}

// LogAdminAction records an admin action. Failures are logged, never returned.
func (s *AuditService) LogAdminAction(ctx context.Context, adminID int64, action string, targetUserID *int64, details map[string]any) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		AdminID:      adminID,
		Action:       action,
		TargetUserID: targetUserID,
		Details:      details,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "admin_id", adminID)
	}
}

// LogBroadcast records a broadcast run with its delivery counts. An
// interrupted run also records how many recipients it never reached.
func (s *AuditService) LogBroadcast(ctx context.Context, adminID int64, kind domain.PayloadKind, rep broadcast.Report) {
	details := map[string]any{
		"kind":      string(kind),
		"total":     rep.Total,
		"delivered": rep.Delivered,
		"failed":    rep.Failed,
	}
	if rep.Interrupted() {
		details["skipped"] = rep.Skipped
		details["interrupted"] = true
	}
	s.LogAdminAction(ctx, adminID, domain.AuditActionBroadcast, nil, details)
}

// GetRecentLogs returns the latest audit entries
func (s *AuditService) GetRecentLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetRecent(ctx, limit)
}
