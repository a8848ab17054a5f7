package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository is the append-only usage event log
type UsageRepository struct {
	db *pgxpool.Pool
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Add(ctx context.Context, userID int64, ts time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO usage_events (user_id, ts) VALUES ($1, $2)`,
		userID, ts,
	)
	return err
}

// Count returns the number of events for the user at or after since
func (r *UsageRepository) Count(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM usage_events WHERE user_id = $1 AND ts >= $2`,
		userID, since,
	).Scan(&n)
	return n, err
}

// Oldest returns the earliest event at or after since, nil if there is none.
// It is a query surface over the usage log for ad-hoc analysis; no bot flow
// calls it, credits are never derived from it.
func (r *UsageRepository) Oldest(ctx context.Context, userID int64, since time.Time) (*time.Time, error) {
	var ts *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT MIN(ts) FROM usage_events WHERE user_id = $1 AND ts >= $2`,
		userID, since,
	).Scan(&ts)
	return ts, err
}
