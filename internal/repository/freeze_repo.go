package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"thinkfirst/internal/database"
	"thinkfirst/internal/freeze"
	"thinkfirst/internal/models"
)

// FreezeRepository persists personal freezes, the last grant time and the freeze audit trail.
// The family pool lives on the families table; see FamilyRepository.
type FreezeRepository struct {
	db database.DBTX
}

// NewFreezeRepository creates a new freeze repository
func NewFreezeRepository(db database.DBTX) *FreezeRepository {
	return &FreezeRepository{db: db}
}

// InitFreezeState creates the empty freeze row for a user if it is missing
func (r *FreezeRepository) InitFreezeState(ctx context.Context, userID int64) error {
	query := r.db.GetDialect().InsertIgnore("freeze_states", []string{"user_id", "personal_freezes", "updated_at"})
	if _, err := r.db.ExecContext(ctx, query, userID, 0, utcNow()); err != nil {
		return fmt.Errorf("failed to init freeze state: %w", err)
	}
	return nil
}

// GetFreezeState loads the personal part of a user's freeze state with its retained history,
// oldest event first. FamilyPoolFreezes is left at zero for the caller to fill in.
func (r *FreezeRepository) GetFreezeState(ctx context.Context, userID int64) (models.FreezeState, error) {
	var (
		state     models.FreezeState
		lastGrant sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, "SELECT personal_freezes, last_grant_at FROM freeze_states WHERE user_id = ?", userID).
		Scan(&state.PersonalFreezes, &lastGrant)
	if err != nil && err != sql.ErrNoRows {
		return models.FreezeState{}, fmt.Errorf("failed to get freeze state: %w", err)
	}
	state.LastFreezeGrantDate = timePtr(lastGrant)

	events, err := r.ListEvents(ctx, userID)
	if err != nil {
		return models.FreezeState{}, err
	}
	state.FreezeHistory = events
	return state, nil
}

// ListEvents returns the retained freeze events for a user, oldest first
func (r *FreezeRepository) ListEvents(ctx context.Context, userID int64) ([]models.FreezeEvent, error) {
	query := `
		SELECT event_type, source, occurred_at FROM freeze_events
		WHERE user_id = ? ORDER BY id DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, userID, freeze.MaxHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to query freeze events: %w", err)
	}
	defer rows.Close()

	events := []models.FreezeEvent{}
	for rows.Next() {
		var (
			ev        models.FreezeEvent
			eventType string
			source    string
		)
		if err := rows.Scan(&eventType, &source, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan freeze event: %w", err)
		}
		ev.Type = models.FreezeEventType(eventType)
		ev.Source = models.FreezeSource(source)
		ev.Timestamp = ev.Timestamp.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// ClaimGrant sets the personal balance for this month's grant. The update only matches when
// no grant has been recorded on or after monthStart, so a second caller in the same month gets false.
func (r *FreezeRepository) ClaimGrant(ctx context.Context, userID int64, personal int, now, monthStart time.Time) (bool, error) {
	if err := r.InitFreezeState(ctx, userID); err != nil {
		return false, err
	}
	query := `
		UPDATE freeze_states SET personal_freezes = ?, last_grant_at = ?, updated_at = ?
		WHERE user_id = ? AND (last_grant_at IS NULL OR last_grant_at < ?)
	`
	n, err := r.db.ExecAffected(ctx, query, personal, now.UTC(), utcNow(), userID, monthStart.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to apply freeze grant: %w", err)
	}
	return n == 1, nil
}

// TryConsume spends one personal freeze if any remain
func (r *FreezeRepository) TryConsume(ctx context.Context, userID int64) (bool, error) {
	query := `
		UPDATE freeze_states SET personal_freezes = personal_freezes - 1, updated_at = ?
		WHERE user_id = ? AND personal_freezes > 0
	`
	n, err := r.db.ExecAffected(ctx, query, utcNow(), userID)
	if err != nil {
		return false, fmt.Errorf("failed to consume personal freeze: %w", err)
	}
	return n == 1, nil
}

// AddPersonal credits n personal freezes outside the monthly grant
func (r *FreezeRepository) AddPersonal(ctx context.Context, userID int64, n int) error {
	if n <= 0 {
		return fmt.Errorf("freeze credit must be positive: %d", n)
	}
	if err := r.InitFreezeState(ctx, userID); err != nil {
		return err
	}
	query := "UPDATE freeze_states SET personal_freezes = personal_freezes + ?, updated_at = ? WHERE user_id = ?"
	if _, err := r.db.ExecContext(ctx, query, n, utcNow(), userID); err != nil {
		return fmt.Errorf("failed to credit personal freezes: %w", err)
	}
	return nil
}

// AppendEvent records a freeze event and drops events beyond the retention cap
func (r *FreezeRepository) AppendEvent(ctx context.Context, userID int64, ev models.FreezeEvent) error {
	query := "INSERT INTO freeze_events (user_id, event_type, source, occurred_at) VALUES (?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, userID, string(ev.Type), string(ev.Source), ev.Timestamp.UTC()); err != nil {
		return fmt.Errorf("failed to record freeze event: %w", err)
	}
	return pruneOlder(ctx, r.db, "freeze_events", "id", userID, freeze.MaxHistory)
}

// pruneOlder keeps the newest keep rows of a user in table, ordered by the key column
func pruneOlder(ctx context.Context, db database.DBTX, table, key string, userID int64, keep int) error {
	var cutoff int64
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ? ORDER BY %s DESC LIMIT 1 OFFSET ?", key, table, key)
	err := db.QueryRowContext(ctx, query, userID, keep-1).Scan(&cutoff)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find %s cutoff: %w", table, err)
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND %s < ?", table, key)
	if _, err := db.ExecContext(ctx, del, userID, cutoff); err != nil {
		return fmt.Errorf("failed to prune %s: %w", table, err)
	}
	return nil
}
