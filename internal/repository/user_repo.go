package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"homework_bot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidAmount = errors.New("invalid amount")
)

// UserRepository owns the users table: registry, credit ledger and refill marker.
// Every balance mutation is a single statement so concurrent requests
// for the same user cannot interleave between check and write.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// EnsureUser creates the user with the starting grant, or refreshes the username
// of an existing one. Reports whether the row was created by this call.
func (r *UserRepository) EnsureUser(ctx context.Context, userID int64, username string, startCredits int64, now time.Time) (bool, error) {
	var inserted bool
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (user_id, username, credits, created_at, last_active_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $4)
		 ON CONFLICT (user_id) DO UPDATE
		   SET username = COALESCE(EXCLUDED.username, users.username)
		 RETURNING (xmax = 0)`,
		userID, username, startCredits, now,
	).Scan(&inserted)
	return inserted, err
}

// Touch moves last activity forward, never back
func (r *UserRepository) Touch(ctx context.Context, userID int64, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET last_active_at = GREATEST(last_active_at, $2) WHERE user_id = $1`,
		userID, now,
	)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT user_id, COALESCE(username, ''), credits, created_at, last_active_at, last_refill_day, referred_by
		 FROM users
		 WHERE user_id = $1`,
		userID,
	)

	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Credits,
		&u.CreatedAt,
		&u.LastActiveAt,
		&u.LastRefillDay,
		&u.ReferredBy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetBalance returns the credit balance, 0 for unknown users
func (r *UserRepository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	var credits int64
	err := r.db.QueryRow(ctx, `SELECT credits FROM users WHERE user_id = $1`, userID).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return credits, err
}

// Spend deducts amount if the balance covers it. ok is false when the
// balance is insufficient or the user is unknown; nothing changes then.
func (r *UserRepository) Spend(ctx context.Context, userID int64, amount int64) (newBalance int64, ok bool, err error) {
	if amount <= 0 {
		return 0, false, ErrInvalidAmount
	}

	err = r.db.QueryRow(ctx,
		`UPDATE users SET credits = credits - $1 WHERE user_id = $2 AND credits >= $1 RETURNING credits`,
		amount, userID,
	).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return newBalance, true, nil
}

// Grant adds delta (possibly negative) to the balance, flooring at zero
func (r *UserRepository) Grant(ctx context.Context, userID int64, delta int64) (int64, error) {
	var newBalance int64
	err := r.db.QueryRow(ctx,
		`UPDATE users SET credits = GREATEST(COALESCE(credits, 0) + $1, 0) WHERE user_id = $2 RETURNING credits`,
		delta, userID,
	).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return newBalance, err
}

// SetBalance overwrites the balance
func (r *UserRepository) SetBalance(ctx context.Context, userID int64, value int64) error {
	if value < 0 {
		return ErrInvalidAmount
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET credits = $1 WHERE user_id = $2`, value, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RefillIfDue adds perDay credits and stamps day as the last refill day,
// unless the user was already refilled on that day. Reports whether it refilled.
func (r *UserRepository) RefillIfDue(ctx context.Context, userID int64, perDay int64, day time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET credits = credits + $2, last_refill_day = $3
		 WHERE user_id = $1 AND last_refill_day IS DISTINCT FROM $3::date`,
		userID, perDay, domain.DayOf(day),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AllIDs returns every user id in a stable order
func (r *UserRepository) AllIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActivityStats counts users created and active since the given instant
func (r *UserRepository) ActivityStats(ctx context.Context, since time.Time) (*domain.ActivityStats, error) {
	var s domain.ActivityStats
	err := r.db.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE created_at >= $1),
		   COUNT(*) FILTER (WHERE last_active_at >= $1)
		 FROM users`,
		since,
	).Scan(&s.NewUsers, &s.ActiveUsers)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindIDByUsername resolves a username (with or without @) case-insensitively
func (r *UserRepository) FindIDByUsername(ctx context.Context, username string) (int64, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return 0, ErrUserNotFound
	}

	var id int64
	err := r.db.QueryRow(ctx,
		`SELECT user_id FROM users WHERE LOWER(username) = LOWER($1) ORDER BY user_id LIMIT 1`,
		username,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return id, err
}
