package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InviterStat is a row of the referral leaderboard
type InviterStat struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Count    int64  `json:"count"`
}

type ReferralRepository struct {
	db *pgxpool.Pool
}

func NewReferralRepository(db *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// RegisterWithBonus inserts the inviter→invitee edge, fills the invitee's
// referred_by and credits the inviter, all in one transaction. It returns
// true only when this call created the edge. Nothing changes when the
// invitee already has an inviter or when any step fails.
func (r *ReferralRepository) RegisterWithBonus(ctx context.Context, inviterID, inviteeID, bonus int64, now time.Time) (bool, error) {
	if inviterID == inviteeID {
		return false, nil
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO referrals (inviter_id, invitee_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (invitee_id) DO NOTHING`,
		inviterID, inviteeID, now,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET referred_by = $1 WHERE user_id = $2 AND referred_by IS NULL`,
		inviterID, inviteeID,
	); err != nil {
		return false, err
	}

	tag, err = tx.Exec(ctx,
		`UPDATE users SET credits = GREATEST(credits + $1, 0) WHERE user_id = $2`,
		bonus, inviterID,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Count returns how many invitees the inviter has brought in
func (r *ReferralRepository) Count(ctx context.Context, inviterID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM referrals WHERE inviter_id = $1`,
		inviterID,
	).Scan(&n)
	return n, err
}

// MarkMilestoneIfNew records (inviter, milestone) and reports whether this call created it
func (r *ReferralRepository) MarkMilestoneIfNew(ctx context.Context, inviterID int64, milestone int, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO ref_milestones (inviter_id, milestone, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (inviter_id, milestone) DO NOTHING`,
		inviterID, milestone, now,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TopInviters returns users with the most referrals (for admin)
func (r *ReferralRepository) TopInviters(ctx context.Context, limit int) ([]InviterStat, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.inviter_id, COALESCE(u.username, ''), COUNT(*) AS ref_count
		FROM referrals r
		LEFT JOIN users u ON u.user_id = r.inviter_id
		GROUP BY r.inviter_id, u.username
		ORDER BY ref_count DESC, r.inviter_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []InviterStat
	for rows.Next() {
		var s InviterStat
		if err := rows.Scan(&s.UserID, &s.Username, &s.Count); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
