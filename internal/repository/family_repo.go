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

var _ freeze.Pool = (*FamilyRepository)(nil)

// FamilyRepository handles families and their shared freeze pool
type FamilyRepository struct {
	db database.DBTX
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.DBTX) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// CreateFamily inserts a new family with an empty pool
func (r *FamilyRepository) CreateFamily(ctx context.Context, family *models.Family) error {
	now := utcNow()
	query := `
		INSERT INTO families (name, parent_email, pool_freezes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, family.Name, family.ParentEmail, family.PoolFreezes, now, now)
	if err != nil {
		return fmt.Errorf("failed to create family: %w", err)
	}

	family.ID = id
	family.CreatedAt = now
	family.UpdatedAt = now
	return nil
}

// GetFamilyByID retrieves a family by ID. Returns nil, nil when it does not exist.
func (r *FamilyRepository) GetFamilyByID(ctx context.Context, familyID int64) (*models.Family, error) {
	query := `
		SELECT id, name, parent_email, pool_freezes, last_pool_grant_at, created_at, updated_at
		FROM families WHERE id = ?
	`
	var (
		family    models.Family
		lastGrant sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, familyID).Scan(
		&family.ID,
		&family.Name,
		&family.ParentEmail,
		&family.PoolFreezes,
		&lastGrant,
		&family.CreatedAt,
		&family.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	family.LastPoolGrantAt = timePtr(lastGrant)
	return &family, nil
}

// Balance returns the family's pool balance; unknown families have an empty pool
func (r *FamilyRepository) Balance(ctx context.Context, familyID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT pool_freezes FROM families WHERE id = ?", familyID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read pool balance: %w", err)
	}
	return n, nil
}

// TryBorrow takes one freeze from the pool. The guarded update only matches while the
// balance is positive, so exactly one of several concurrent borrowers wins the last freeze.
func (r *FamilyRepository) TryBorrow(ctx context.Context, familyID int64) (bool, error) {
	query := `
		UPDATE families SET pool_freezes = pool_freezes - 1, updated_at = ?
		WHERE id = ? AND pool_freezes > 0
	`
	n, err := r.db.ExecAffected(ctx, query, utcNow(), familyID)
	if err != nil {
		return false, fmt.Errorf("failed to borrow from family pool: %w", err)
	}
	return n == 1, nil
}

// TopUp adds n freezes unless the pool was already topped up on or after monthStart
func (r *FamilyRepository) TopUp(ctx context.Context, familyID int64, n int, now time.Time, monthStart time.Time) (bool, error) {
	query := `
		UPDATE families SET pool_freezes = pool_freezes + ?, last_pool_grant_at = ?, updated_at = ?
		WHERE id = ? AND (last_pool_grant_at IS NULL OR last_pool_grant_at < ?)
	`
	affected, err := r.db.ExecAffected(ctx, query, n, now.UTC(), utcNow(), familyID, monthStart.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to top up family pool: %w", err)
	}
	return affected == 1, nil
}

// ListFamilies returns every family ordered by ID
func (r *FamilyRepository) ListFamilies(ctx context.Context) ([]models.Family, error) {
	query := `
		SELECT id, name, parent_email, pool_freezes, last_pool_grant_at, created_at, updated_at
		FROM families ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var families []models.Family
	for rows.Next() {
		var (
			family    models.Family
			lastGrant sql.NullTime
		)
		if err := rows.Scan(&family.ID, &family.Name, &family.ParentEmail, &family.PoolFreezes, &lastGrant, &family.CreatedAt, &family.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		family.LastPoolGrantAt = timePtr(lastGrant)
		families = append(families, family)
	}
	return families, rows.Err()
}
