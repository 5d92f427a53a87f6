package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"thinkfirst/internal/database"
	"thinkfirst/internal/history"
	"thinkfirst/internal/models"
)

// AttemptRepository stores each user's most recent evaluated attempts
type AttemptRepository struct {
	db database.DBTX
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db database.DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// AppendAttempt inserts rec as the newest attempt and prunes the user's history to history.MaxAttempts.
// Run it inside a transaction to make the insert and prune atomic.
func (r *AttemptRepository) AppendAttempt(ctx context.Context, rec models.AttemptRecord) error {
	evaluation, err := json.Marshal(rec.Evaluation)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation: %w", err)
	}

	query := `
		INSERT INTO attempts (id, user_id, question, attempt, mastery_mode, effort_score, understanding_score,
			copied, unlocked, mastery_achieved, evaluation_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	ev := rec.Evaluation
	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Question,
		rec.Attempt,
		rec.MasteryMode,
		ev.EffortScore,
		ev.UnderstandingScore,
		ev.Copied,
		ev.Unlock,
		ev.MasteryAchieved,
		string(evaluation),
		rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}

	return pruneOlder(ctx, r.db, "attempts", "seq", rec.UserID, history.MaxAttempts)
}

// ListAttempts returns a user's retained attempts, most recent first
func (r *AttemptRepository) ListAttempts(ctx context.Context, userID int64) ([]models.AttemptRecord, error) {
	query := `
		SELECT id, user_id, question, attempt, mastery_mode, evaluation_json, created_at
		FROM attempts WHERE user_id = ? ORDER BY seq DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, userID, history.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []models.AttemptRecord{}
	for rows.Next() {
		var (
			rec        models.AttemptRecord
			evaluation string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Question, &rec.Attempt, &rec.MasteryMode, &evaluation, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		if err := json.Unmarshal([]byte(evaluation), &rec.Evaluation); err != nil {
			return nil, fmt.Errorf("failed to decode evaluation for attempt %s: %w", rec.ID, err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		attempts = append(attempts, rec)
	}
	return attempts, rows.Err()
}

// CountAttempts returns how many attempts are retained for a user
func (r *AttemptRepository) CountAttempts(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attempts WHERE user_id = ?", userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return n, nil
}
