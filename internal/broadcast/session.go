// Package broadcast implements the admin broadcast: a two-step session
// (collect content, then confirm) and a paced dispatcher that delivers the
// content to a snapshot of recipients.
package broadcast

import (
	"context"
	"errors"

	"homework_bot/internal/domain"
	"homework_bot/internal/fsm"
)

var (
	ErrNoSession            = errors.New("no broadcast in progress")
	ErrUnsupportedContent   = errors.New("unsupported broadcast content")
	ErrAwaitingContent      = errors.New("broadcast content not received yet")
	ErrAwaitingConfirmation = errors.New("broadcast content already received, confirm or cancel")
)

// Phase is the position of an admin in the broadcast protocol
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingContent
	PhaseAwaitingConfirmation
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingContent:
		return "awaiting_content"
	case PhaseAwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return "idle"
	}
}

func phaseOf(st fsm.State) Phase {
	switch st.Name {
	case fsm.StateBroadcastContent:
		return PhaseAwaitingContent
	case fsm.StateBroadcastConfirmation:
		if st.Payload != nil {
			return PhaseAwaitingConfirmation
		}
	}
	return PhaseIdle
}

// Sessions drives the per-admin broadcast state machine on top of the
// conversation state store.
type Sessions struct {
	store fsm.Store
}

func NewSessions(store fsm.Store) *Sessions {
	return &Sessions{store: store}
}

// Phase returns where the admin currently is
func (s *Sessions) Phase(ctx context.Context, adminID int64) (Phase, error) {
	st, err := s.store.Get(ctx, adminID)
	if err != nil {
		return PhaseIdle, err
	}
	return phaseOf(st), nil
}

// Begin starts a session. An existing session is discarded along with any
// content it had collected.
func (s *Sessions) Begin(ctx context.Context, adminID int64) error {
	return s.store.Set(ctx, adminID, fsm.State{Name: fsm.StateBroadcastContent})
}

// Submit stores the content and moves to confirmation
func (s *Sessions) Submit(ctx context.Context, adminID int64, p domain.Payload) error {
	st, err := s.store.Get(ctx, adminID)
	if err != nil {
		return err
	}
	switch phaseOf(st) {
	case PhaseIdle:
		return ErrNoSession
	case PhaseAwaitingConfirmation:
		return ErrAwaitingConfirmation
	}
	if !p.Valid() {
		return ErrUnsupportedContent
	}
	return s.store.Set(ctx, adminID, fsm.State{Name: fsm.StateBroadcastConfirmation, Payload: &p})
}

// Confirm ends the session and hands back the content to dispatch. The
// session is idle afterwards whatever the dispatch outcome. A session still
// collecting content is only read, never cleared, so a concurrent Submit
// cannot be lost.
func (s *Sessions) Confirm(ctx context.Context, adminID int64) (domain.Payload, error) {
	st, err := s.store.Get(ctx, adminID)
	if err != nil {
		return domain.Payload{}, err
	}
	switch phaseOf(st) {
	case PhaseAwaitingContent:
		return domain.Payload{}, ErrAwaitingContent
	case PhaseIdle:
		return domain.Payload{}, ErrNoSession
	}

	st, err = s.store.Take(ctx, adminID)
	if err != nil {
		return domain.Payload{}, err
	}
	if phaseOf(st) == PhaseAwaitingConfirmation {
		return *st.Payload, nil
	}
	// changed between the read and the take (a new /broadcast or /cancel)
	if st.Name != fsm.StateIdle {
		if err := s.store.Set(ctx, adminID, st); err != nil {
			return domain.Payload{}, err
		}
	}
	if phaseOf(st) == PhaseAwaitingContent {
		return domain.Payload{}, ErrAwaitingContent
	}
	return domain.Payload{}, ErrNoSession
}

// Cancel drops the session. It reports whether one was active.
func (s *Sessions) Cancel(ctx context.Context, adminID int64) (bool, error) {
	st, err := s.store.Get(ctx, adminID)
	if err != nil {
		return false, err
	}
	if phaseOf(st) == PhaseIdle {
		return false, nil
	}
	return true, s.store.Clear(ctx, adminID)
}
