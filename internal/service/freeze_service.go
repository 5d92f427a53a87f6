package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/database"
	"thinkfirst/internal/freeze"
	"thinkfirst/internal/models"
	"thinkfirst/internal/repository"
)

// FreezeService reads freeze balances and runs the monthly grant
type FreezeService struct {
	db     *database.DB
	users  *repository.UserRepository
	policy freeze.GrantPolicy
	clock  clock.Clock
	logger *zap.Logger
}

// NewFreezeService creates a new freeze service
func NewFreezeService(db *database.DB, policy freeze.GrantPolicy, clk clock.Clock, logger *zap.Logger) *FreezeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FreezeService{
		db:     db,
		users:  repository.NewUserRepository(db),
		policy: policy,
		clock:  clk,
		logger: logger,
	}
}

// loadFreezeState assembles a user's freeze state: personal balance and history from the
// user's row, pool balance from the family.
func loadFreezeState(ctx context.Context, db database.DBTX, user *models.User) (models.FreezeState, error) {
	state, err := repository.NewFreezeRepository(db).GetFreezeState(ctx, user.ID)
	if err != nil {
		return models.FreezeState{}, err
	}
	if user.InFamily() {
		var pool freeze.Pool = repository.NewFamilyRepository(db)
		balance, err := pool.Balance(ctx, *user.FamilyID)
		if err != nil {
			return models.FreezeState{}, err
		}
		state.FamilyPoolFreezes = balance
	}
	return state, nil
}

func (s *FreezeService) requireUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load user", err)
	}
	if user == nil {
		return nil, NewNotFoundError("user %d not found", userID)
	}
	return user, nil
}

// GetFreezeState returns the user's current freeze balances and history
func (s *FreezeService) GetFreezeState(ctx context.Context, userID int64) (models.FreezeState, error) {
	user, err := s.requireUser(ctx, userID)
	if err != nil {
		return models.FreezeState{}, err
	}
	state, err := loadFreezeState(ctx, s.db, user)
	if err != nil {
		return models.FreezeState{}, NewInternalError("failed to load freeze state", err)
	}
	return state, nil
}

// ApplyMonthlyGrant grants the user's monthly freezes if none were granted this month.
// It returns the resulting state and whether this call performed the grant.
func (s *FreezeService) ApplyMonthlyGrant(ctx context.Context, userID int64) (models.FreezeState, bool, error) {
	user, err := s.requireUser(ctx, userID)
	if err != nil {
		return models.FreezeState{}, false, err
	}
	return s.grant(ctx, s.db, user, s.clock.Now())
}

// grant applies the monthly grant on db, which may be a transaction
func (s *FreezeService) grant(ctx context.Context, db database.DBTX, user *models.User, now time.Time) (models.FreezeState, bool, error) {
	state, err := loadFreezeState(ctx, db, user)
	if err != nil {
		return models.FreezeState{}, false, NewInternalError("failed to load freeze state", err)
	}

	next, due := s.policy.Grant(state, user.Plan, now)
	if !due {
		return state, false, nil
	}

	monthStart := s.policy.Boundary.MonthStart(now)
	granted, err := repository.NewFreezeRepository(db).ClaimGrant(ctx, user.ID, next.PersonalFreezes, now, monthStart)
	if err != nil {
		return models.FreezeState{}, false, NewInternalError("failed to apply freeze grant", err)
	}
	if !granted {
		// a concurrent request granted first
		state, err = loadFreezeState(ctx, db, user)
		if err != nil {
			return models.FreezeState{}, false, NewInternalError("failed to load freeze state", err)
		}
		return state, false, nil
	}

	if user.Plan == models.PlanFamily && user.InFamily() {
		var pool freeze.Pool = repository.NewFamilyRepository(db)
		toppedUp, err := pool.TopUp(ctx, *user.FamilyID, s.policy.FamilyPoolGrant, now, monthStart)
		if err != nil {
			return models.FreezeState{}, false, NewInternalError("failed to top up family pool", err)
		}
		if toppedUp {
			s.logger.Info("Family pool topped up",
				zap.Int64("family_id", *user.FamilyID),
				zap.Int("freezes", s.policy.FamilyPoolGrant))
		}
	}

	s.logger.Info("Monthly freezes granted",
		zap.Int64("user_id", user.ID),
		zap.String("plan", string(user.Plan)),
		zap.Int("personal", next.PersonalFreezes))

	state, err = loadFreezeState(ctx, db, user)
	if err != nil {
		return models.FreezeState{}, false, NewInternalError("failed to load freeze state", err)
	}
	return state, true, nil
}

// GrantSummary reports a bulk grant run
type GrantSummary struct {
	Users   int `json:"users"`
	Granted int `json:"granted"`
	Failed  int `json:"failed"`
}

// GrantAll runs the monthly grant for every user with at most concurrency grants in flight.
// Individual failures are logged and counted; the run continues.
func (s *FreezeService) GrantAll(ctx context.Context, concurrency int) (GrantSummary, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return GrantSummary{}, NewInternalError("failed to list users", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var granted, failed atomic.Int64
	now := s.clock.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range users {
		user := users[i]
		g.Go(func() error {
			_, ok, err := s.grant(gctx, s.db, &user, now)
			if err != nil {
				failed.Add(1)
				s.logger.Error("Monthly grant failed", zap.Int64("user_id", user.ID), zap.Error(err))
				return nil
			}
			if ok {
				granted.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GrantSummary{}, err
	}
	if err := ctx.Err(); err != nil {
		return GrantSummary{}, err
	}

	return GrantSummary{Users: len(users), Granted: int(granted.Load()), Failed: int(failed.Load())}, nil
}

// CreditFreezes adds personal freezes to a user outside the monthly grant
func (s *FreezeService) CreditFreezes(ctx context.Context, userID int64, n int) (models.FreezeState, error) {
	if n <= 0 {
		return models.FreezeState{}, NewValidationError("freeze credit must be positive", nil)
	}
	user, err := s.requireUser(ctx, userID)
	if err != nil {
		return models.FreezeState{}, err
	}
	if err := repository.NewFreezeRepository(s.db).AddPersonal(ctx, userID, n); err != nil {
		return models.FreezeState{}, NewInternalError("failed to credit freezes", err)
	}
	return loadFreezeState(ctx, s.db, user)
}
