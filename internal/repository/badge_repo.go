package repository

import (
	"context"
	"fmt"
	"time"

	"thinkfirst/internal/database"
	"thinkfirst/internal/models"
)

// BadgeRepository stores earned badges. Rows are never updated or deleted.
type BadgeRepository struct {
	db database.DBTX
}

// NewBadgeRepository creates a new badge repository
func NewBadgeRepository(db database.DBTX) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// ListEarned returns a user's earned badges in award order
func (r *BadgeRepository) ListEarned(ctx context.Context, userID int64) ([]models.EarnedBadge, error) {
	query := "SELECT badge_id, awarded_at FROM earned_badges WHERE user_id = ? ORDER BY awarded_at, badge_id"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query earned badges: %w", err)
	}
	defer rows.Close()

	earned := []models.EarnedBadge{}
	for rows.Next() {
		var e models.EarnedBadge
		if err := rows.Scan(&e.BadgeID, &e.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earned badge: %w", err)
		}
		e.AwardedAt = e.AwardedAt.UTC()
		earned = append(earned, e)
	}
	return earned, rows.Err()
}

// Award records a badge for a user. It returns false when the user already held it,
// so concurrent checks report a badge as new exactly once.
func (r *BadgeRepository) Award(ctx context.Context, userID int64, badgeID string, at time.Time) (bool, error) {
	query := r.db.GetDialect().InsertIgnore("earned_badges", []string{"user_id", "badge_id", "awarded_at"})
	n, err := r.db.ExecAffected(ctx, query, userID, badgeID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to award badge %s: %w", badgeID, err)
	}
	return n == 1, nil
}
