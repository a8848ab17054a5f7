package service

import (
	"context"
	"fmt"
	"time"
)

// UserService keeps the user registry current as messages arrive
type UserService struct {
	users        UserRegistry
	startCredits int64
	now          func() time.Time
}

func NewUserService(users UserRegistry, startCredits int64) *UserService {
	return &UserService{users: users, startCredits: startCredits, now: time.Now}
}

// WithClock replaces the time source
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

// Seen registers the user if needed and records activity
func (s *UserService) Seen(ctx context.Context, v Visitor) error {
	now := s.now()
	if _, err := s.users.EnsureUser(ctx, v.ID, v.Username, s.startCredits, now); err != nil {
		return fmt.Errorf("ensure user %d: %w", v.ID, err)
	}
	if err := s.users.Touch(ctx, v.ID, now); err != nil {
		return fmt.Errorf("touch user %d: %w", v.ID, err)
	}
	return nil
}
