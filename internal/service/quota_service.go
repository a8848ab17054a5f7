package service

import (
	"context"
	"time"

	"homework_bot/internal/domain"
	"homework_bot/internal/logger"
	"homework_bot/internal/metrics"
)

// CreditsPerRequest is what one answered request costs
const CreditsPerRequest = 1

// Ledger is the credit balance store the quota service works against
type Ledger interface {
	GetBalance(ctx context.Context, userID int64) (int64, error)
	Spend(ctx context.Context, userID int64, amount int64) (int64, bool, error)
	RefillIfDue(ctx context.Context, userID int64, perDay int64, day time.Time) (bool, error)
}

// UsageRecorder appends a usage event per answered request
type UsageRecorder interface {
	Add(ctx context.Context, userID int64, ts time.Time) error
}

// Charge is the outcome of charging a user for one request
type Charge struct {
	OK          bool
	CreditsLeft int64
}

// QuotaService applies the daily refill and charges requests
type QuotaService struct {
	ledger Ledger
	usage  UsageRecorder
	perDay int64
	now    func() time.Time
}

// NewQuotaService creates a quota service granting perDay credits once per calendar day
func NewQuotaService(ledger Ledger, usage UsageRecorder, perDay int64) *QuotaService {
	return &QuotaService{
		ledger: ledger,
		usage:  usage,
		perDay: perDay,
		now:    time.Now,
	}
}

// WithClock replaces the time source
func (s *QuotaService) WithClock(now func() time.Time) *QuotaService {
	s.now = now
	return s
}

// Refill grants the daily credits unless the user already got them today
func (s *QuotaService) Refill(ctx context.Context, userID int64) error {
	applied, err := s.ledger.RefillIfDue(ctx, userID, s.perDay, domain.DayOf(s.now()))
	if err != nil {
		return err
	}
	if applied {
		metrics.RefillsGranted.Inc()
		logger.Debug("daily refill applied", "user_id", userID, "credits", s.perDay)
	}
	return nil
}

// Peek refills if due and returns the balance
func (s *QuotaService) Peek(ctx context.Context, userID int64) (int64, error) {
	if err := s.Refill(ctx, userID); err != nil {
		return 0, err
	}
	return s.ledger.GetBalance(ctx, userID)
}

// Charge refills if due and then spends one credit. An empty balance is
// reported through Charge.OK, not as an error.
func (s *QuotaService) Charge(ctx context.Context, userID int64) (Charge, error) {
	if err := s.Refill(ctx, userID); err != nil {
		return Charge{}, err
	}

	left, ok, err := s.ledger.Spend(ctx, userID, CreditsPerRequest)
	if err != nil {
		return Charge{}, err
	}
	if !ok {
		metrics.QuotaExhausted.Inc()
		return Charge{OK: false, CreditsLeft: left}, nil
	}
	metrics.CreditsSpent.Inc()

	if s.usage != nil {
		if err := s.usage.Add(ctx, userID, s.now()); err != nil {
			logger.Warn("failed to record usage event", "user_id", userID, "error", err)
		}
	}
	return Charge{OK: true, CreditsLeft: left}, nil
}
