package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"homework_bot/internal/broadcast"
	"homework_bot/internal/domain"
	"homework_bot/internal/repository"
)

// StatsWindow is the trailing window of the admin statistics
const StatsWindow = 24 * time.Hour

// AdminUserStore is what the admin surface reads and writes on users
type AdminUserStore interface {
	GetByID(ctx context.Context, userID int64) (*domain.User, error)
	FindIDByUsername(ctx context.Context, username string) (int64, error)
	ActivityStats(ctx context.Context, since time.Time) (*domain.ActivityStats, error)
	Grant(ctx context.Context, userID int64, delta int64) (int64, error)
	SetBalance(ctx context.Context, userID int64, value int64) error
	AllIDs(ctx context.Context) ([]int64, error)
}

// ReferralStats answers referral questions for admins
type ReferralStats interface {
	Count(ctx context.Context, inviterID int64) (int64, error)
	TopInviters(ctx context.Context, limit int) ([]repository.InviterStat, error)
}

// UsageCounter counts usage events in a window
type UsageCounter interface {
	Count(ctx context.Context, userID int64, since time.Time) (int64, error)
}

// AdminService provides admin statistics and operations
type AdminService struct {
	users     AdminUserStore
	referrals ReferralStats
	usage     UsageCounter
	audit     *AuditService
	now       func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(users AdminUserStore, referrals ReferralStats, usage UsageCounter, audit *AuditService) *AdminService {
	return &AdminService{
		users:     users,
		referrals: referrals,
		usage:     usage,
		audit:     audit,
		now:       time.Now,
	}
}

// WithClock replaces the time source
func (s *AdminService) WithClock(now func() time.Time) *AdminService {
	s.now = now
	return s
}

// Stats returns new and active users over the trailing 24 hours
func (s *AdminService) Stats(ctx context.Context) (*domain.ActivityStats, error) {
	return s.users.ActivityStats(ctx, s.now().Add(-StatsWindow))
}

// ResolveUser resolves a numeric id or @username to a known user id
func (s *AdminService) ResolveUser(ctx context.Context, identifier string) (int64, error) {
	identifier = strings.TrimSpace(identifier)
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return 0, err
		}
		return id, nil
	}
	return s.users.FindIDByUsername(ctx, identifier)
}

// Card returns the admin view of a user
func (s *AdminService) Card(ctx context.Context, userID int64) (*domain.UserCard, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	card := &domain.UserCard{User: *u}

	if card.InvitedCount, err = s.referrals.Count(ctx, userID); err != nil {
		return nil, err
	}
	if card.Requests24h, err = s.usage.Count(ctx, userID, s.now().Add(-StatsWindow)); err != nil {
		return nil, err
	}
	return card, nil
}

// Give adds delta credits (negative to take away, floored at zero) and returns the new balance
func (s *AdminService) Give(ctx context.Context, adminID, userID, delta int64) (int64, error) {
	balance, err := s.users.Grant(ctx, userID, delta)
	if err != nil {
		return 0, err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionGrantCredits, &userID, map[string]any{
		"delta":   delta,
		"balance": balance,
	})
	return balance, nil
}

// Set overwrites the balance
func (s *AdminService) Set(ctx context.Context, adminID, userID, value int64) error {
	if err := s.users.SetBalance(ctx, userID, value); err != nil {
		return err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionSetCredits, &userID, map[string]any{
		"value": value,
	})
	return nil
}

// TopInviters returns the users with the most referrals
func (s *AdminService) TopInviters(ctx context.Context, limit int) ([]repository.InviterStat, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.referrals.TopInviters(ctx, limit)
}

// Recipients snapshots every known user id for a broadcast
func (s *AdminService) Recipients(ctx context.Context) ([]int64, error) {
	return s.users.AllIDs(ctx)
}

// IsNotFound reports whether err means the target user does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrUserNotFound)
}

// RecordBroadcast writes a broadcast run, finished or interrupted, to the audit trail
func (s *AdminService) RecordBroadcast(ctx context.Context, adminID int64, kind domain.PayloadKind, rep broadcast.Report) {
	s.audit.LogBroadcast(ctx, adminID, kind, rep)
}

// RecentAudit returns the latest admin actions
func (s *AdminService) RecentAudit(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.audit.GetRecentLogs(ctx, limit)
}
