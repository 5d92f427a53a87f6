package repository

import (
	"context"
	"database/sql"
	"fmt"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/database"
	"thinkfirst/internal/models"
)

// StreakRepository persists one streak row per user
type StreakRepository struct {
	db database.DBTX
}

// NewStreakRepository creates a new streak repository
func NewStreakRepository(db database.DBTX) *StreakRepository {
	return &StreakRepository{db: db}
}

// InitStreak creates the empty streak row for a user if it is missing
func (r *StreakRepository) InitStreak(ctx context.Context, userID int64) error {
	query := r.db.GetDialect().InsertIgnore("streaks", []string{"user_id", "count", "updated_at"})
	if _, err := r.db.ExecContext(ctx, query, userID, 0, utcNow()); err != nil {
		return fmt.Errorf("failed to init streak: %w", err)
	}
	return nil
}

// GetStreak returns the stored streak; a user with no row has the empty streak
func (r *StreakRepository) GetStreak(ctx context.Context, userID int64) (models.StreakState, error) {
	var (
		count    int
		lastDate sql.NullString
	)
	err := r.db.QueryRowContext(ctx, "SELECT count, last_date FROM streaks WHERE user_id = ?", userID).Scan(&count, &lastDate)
	if err == sql.ErrNoRows {
		return models.StreakState{}, nil
	}
	if err != nil {
		return models.StreakState{}, fmt.Errorf("failed to get streak: %w", err)
	}
	return models.StreakState{Count: count, LastDate: clock.Day(lastDate.String)}, nil
}

// CompareAndSwap stores next only if the row still holds prev. It returns false when
// another writer changed the streak first.
func (r *StreakRepository) CompareAndSwap(ctx context.Context, userID int64, prev, next models.StreakState) (bool, error) {
	if err := r.InitStreak(ctx, userID); err != nil {
		return false, err
	}
	query := `
		UPDATE streaks SET count = ?, last_date = ?, updated_at = ?
		WHERE user_id = ? AND count = ? AND COALESCE(last_date, '') = ?
	`
	n, err := r.db.ExecAffected(ctx, query, next.Count, nullDay(next.LastDate), utcNow(), userID, prev.Count, prev.LastDate.String())
	if err != nil {
		return false, fmt.Errorf("failed to save streak: %w", err)
	}
	return n == 1, nil
}

func nullDay(d clock.Day) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
