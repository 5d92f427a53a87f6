package repository

import (
	"context"
	"database/sql"
	"fmt"

	"thinkfirst/internal/database"
	"thinkfirst/internal/models"
)

// UserRepository handles database operations for learner accounts
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository. db may be a *database.DB or a *database.Tx.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, name, plan, family_id, grade_level, created_at, updated_at"

// CreateUser inserts a new user and fills in its ID and timestamps
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	now := utcNow()
	query := `
		INSERT INTO users (name, plan, family_id, grade_level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, user.Name, string(user.Plan), nullInt64(user.FamilyID), user.GradeLevel, now, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByID retrieves a user by ID. Returns nil, nil when the user does not exist.
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns every user ordered by ID
func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// ListFamilyMembers returns the users sharing a family pool
func (r *UserRepository) ListFamilyMembers(ctx context.Context, familyID int64) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE family_id = ? ORDER BY id", familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdatePlan changes a user's plan and family membership
func (r *UserRepository) UpdatePlan(ctx context.Context, userID int64, plan models.Plan, familyID *int64) error {
	query := "UPDATE users SET plan = ?, family_id = ?, updated_at = ? WHERE id = ?"
	n, err := r.db.ExecAffected(ctx, query, string(plan), nullInt64(familyID), utcNow(), userID)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user     models.User
		plan     string
		familyID sql.NullInt64
	)
	if err := row.Scan(&user.ID, &user.Name, &plan, &familyID, &user.GradeLevel, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.Plan = models.Plan(plan)
	if familyID.Valid {
		id := familyID.Int64
		user.FamilyID = &id
	}
	return &user, nil
}
