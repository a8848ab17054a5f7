package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"homework_bot/internal/domain"
	"homework_bot/internal/logger"
	"homework_bot/internal/metrics"
)

// UserRegistry creates and touches user records
type UserRegistry interface {
	EnsureUser(ctx context.Context, userID int64, username string, startCredits int64, now time.Time) (bool, error)
	Touch(ctx context.Context, userID int64, now time.Time) error
}

// ReferralStore holds referral edges and milestone markers
type ReferralStore interface {
	RegisterWithBonus(ctx context.Context, inviterID, inviteeID, bonus int64, now time.Time) (bool, error)
	Count(ctx context.Context, inviterID int64) (int64, error)
	MarkMilestoneIfNew(ctx context.Context, inviterID int64, milestone int, now time.Time) (bool, error)
}

// ReferralNotifier tells inviters about their referrals. Delivery failures
// are logged and never undo the referral.
type ReferralNotifier interface {
	NewReferral(ctx context.Context, inviterID int64, invitee Visitor, invited int64) error
	MilestoneReached(ctx context.Context, inviterID int64, prize domain.Prize, invited int64) error
}

// Visitor is the user who sent /start
type Visitor struct {
	ID       int64
	Username string
}

// Arrival is the outcome of a /start
type Arrival struct {
	IsNew            bool
	InviterID        int64
	ReferralCredited bool
}

// ReferralService registers users on /start and credits their inviters
type ReferralService struct {
	users        UserRegistry
	referrals    ReferralStore
	notifier     ReferralNotifier
	startCredits int64
	bonus        int64
	prizes       []domain.Prize
	now          func() time.Time
}

func NewReferralService(users UserRegistry, referrals ReferralStore, notifier ReferralNotifier, startCredits, bonus int64) *ReferralService {
	return &ReferralService{
		users:        users,
		referrals:    referrals,
		notifier:     notifier,
		startCredits: startCredits,
		bonus:        bonus,
		prizes:       domain.DefaultPrizes,
		now:          time.Now,
	}
}

// WithClock replaces the time source
func (s *ReferralService) WithClock(now func() time.Time) *ReferralService {
	s.now = now
	return s
}

// WithPrizes replaces the milestone table
func (s *ReferralService) WithPrizes(prizes []domain.Prize) *ReferralService {
	s.prizes = prizes
	return s
}

// ParseReferralArg reads an inviter id out of a /start deep-link argument
func ParseReferralArg(arg string) (int64, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, false
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Start registers the visitor and, for a first visit through a valid
// referral link, credits the inviter exactly once.
func (s *ReferralService) Start(ctx context.Context, v Visitor, startArg string) (Arrival, error) {
	now := s.now()

	isNew, err := s.users.EnsureUser(ctx, v.ID, v.Username, s.startCredits, now)
	if err != nil {
		return Arrival{}, fmt.Errorf("ensure user %d: %w", v.ID, err)
	}
	if err := s.users.Touch(ctx, v.ID, now); err != nil {
		return Arrival{}, fmt.Errorf("touch user %d: %w", v.ID, err)
	}

	arrival := Arrival{IsNew: isNew}
	inviterID, ok := ParseReferralArg(startArg)
	if !isNew || !ok || inviterID == v.ID {
		return arrival, nil
	}
	arrival.InviterID = inviterID

	if _, err := s.users.EnsureUser(ctx, inviterID, "", s.startCredits, now); err != nil {
		return arrival, fmt.Errorf("ensure inviter %d: %w", inviterID, err)
	}

	created, err := s.referrals.RegisterWithBonus(ctx, inviterID, v.ID, s.bonus, now)
	if err != nil {
		return arrival, fmt.Errorf("register referral %d->%d: %w", inviterID, v.ID, err)
	}
	if !created {
		return arrival, nil
	}
	metrics.ReferralsRegistered.Inc()
	arrival.ReferralCredited = true
	logger.Info("referral credited", "inviter_id", inviterID, "invitee_id", v.ID, "bonus", s.bonus)

	invited, err := s.referrals.Count(ctx, inviterID)
	if err != nil {
		logger.Warn("failed to count referrals", "inviter_id", inviterID, "error", err)
		return arrival, nil
	}

	if err := s.notifier.NewReferral(ctx, inviterID, v, invited); err != nil {
		logger.Debug("inviter not notified", "inviter_id", inviterID, "error", err)
	}

	s.checkMilestones(ctx, inviterID, invited, now)
	return arrival, nil
}

func (s *ReferralService) checkMilestones(ctx context.Context, inviterID, invited int64, now time.Time) {
	for _, prize := range s.prizes {
		if invited < int64(prize.Threshold) {
			continue
		}
		first, err := s.referrals.MarkMilestoneIfNew(ctx, inviterID, prize.Threshold, now)
		if err != nil {
			logger.Warn("failed to mark milestone", "inviter_id", inviterID, "milestone", prize.Threshold, "error", err)
			continue
		}
		if !first {
			continue
		}
		metrics.MilestonesReached.WithLabelValues(strconv.Itoa(prize.Threshold)).Inc()
		logger.Info("referral milestone reached", "inviter_id", inviterID, "milestone", prize.Threshold)
		if err := s.notifier.MilestoneReached(ctx, inviterID, prize, invited); err != nil {
			logger.Debug("milestone notice not delivered", "inviter_id", inviterID, "error", err)
		}
	}
}

// NextPrize returns the smallest prize threshold above invited, if any
func NextPrize(prizes []domain.Prize, invited int64) (domain.Prize, bool) {
	var best domain.Prize
	found := false
	for _, p := range prizes {
		if int64(p.Threshold) <= invited {
			continue
		}
		if !found || p.Threshold < best.Threshold {
			best = p
			found = true
		}
	}
	return best, found
}
