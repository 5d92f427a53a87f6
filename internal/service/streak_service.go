package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"thinkfirst/internal/cache"
	"thinkfirst/internal/clock"
	"thinkfirst/internal/database"
	"thinkfirst/internal/freeze"
	"thinkfirst/internal/models"
	"thinkfirst/internal/repository"
	"thinkfirst/internal/streak"
)

// maxStreakAttempts bounds retries when a concurrent request updates the same streak
const maxStreakAttempts = 3

var errStreakConflict = errors.New("streak changed concurrently")

// StreakService reads and advances learner streaks
type StreakService struct {
	db        *database.DB
	users     *repository.UserRepository
	boundary  clock.Boundary
	clock     clock.Clock
	snapshots *cache.Snapshots
	logger    *zap.Logger
}

// NewStreakService creates a new streak service
func NewStreakService(db *database.DB, boundary clock.Boundary, clk clock.Clock, snapshots *cache.Snapshots, logger *zap.Logger) *StreakService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreakService{
		db:        db,
		users:     repository.NewUserRepository(db),
		boundary:  boundary,
		clock:     clk,
		snapshots: snapshots,
		logger:    logger,
	}
}

// GetStreak returns the streak as displayed today: stale streaks read as zero.
// The stored state is never modified by a read.
func (s *StreakService) GetStreak(ctx context.Context, userID int64) (models.StreakState, error) {
	var stored models.StreakState
	if !s.snapshots.Load(ctx, cache.EntityStreak, userID, &stored) {
		gen := s.snapshots.Generation(userID)
		user, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return models.StreakState{}, NewInternalError("failed to load user", err)
		}
		if user == nil {
			return models.StreakState{}, NewNotFoundError("user %d not found", userID)
		}
		stored, err = repository.NewStreakRepository(s.db).GetStreak(ctx, userID)
		if err != nil {
			return models.StreakState{}, NewInternalError("failed to load streak", err)
		}
		s.snapshots.Save(ctx, cache.EntityStreak, userID, stored, gen)
	}
	return streak.Project(stored, s.boundary.Day(s.clock.Now())), nil
}

// RecordUnlock applies one qualifying action for user at the given instant. When a missed
// day is covered by a freeze the freeze is claimed in storage before the streak is written;
// if the claim loses a race that source is treated as empty and the action re-evaluated.
func (s *StreakService) RecordUnlock(ctx context.Context, user *models.User, increment int, at time.Time) (streak.Result, error) {
	today := s.boundary.Day(at)

	var (
		res streak.Result
		err error
	)
	for attempt := 1; attempt <= maxStreakAttempts; attempt++ {
		err = s.db.WithTx(ctx, func(tx *database.Tx) error {
			res, err = s.recordUnlockTx(ctx, tx, user, today, increment, at)
			return err
		})
		if !errors.Is(err, errStreakConflict) {
			break
		}
		s.logger.Debug("Streak update conflicted, retrying",
			zap.Int64("user_id", user.ID),
			zap.Int("attempt", attempt))
	}
	if err != nil {
		if errors.Is(err, errStreakConflict) {
			return streak.Result{}, NewConflictError("streak was updated concurrently, try again", err)
		}
		return streak.Result{}, NewInternalError("failed to update streak", err)
	}

	s.snapshots.Invalidate(ctx, user.ID)
	if res.Rescue != nil {
		s.logger.Info("Freeze used to keep streak",
			zap.Int64("user_id", user.ID),
			zap.String("source", string(res.Rescue.Source)),
			zap.Int("streak", res.Streak.Count))
	}
	return res, nil
}

func (s *StreakService) recordUnlockTx(ctx context.Context, tx *database.Tx, user *models.User, today clock.Day, increment int, at time.Time) (streak.Result, error) {
	streaks := repository.NewStreakRepository(tx)
	freezes := repository.NewFreezeRepository(tx)
	var pool freeze.Pool = repository.NewFamilyRepository(tx)

	current, err := streaks.GetStreak(ctx, user.ID)
	if err != nil {
		return streak.Result{}, err
	}
	fs, err := loadFreezeState(ctx, tx, user)
	if err != nil {
		return streak.Result{}, err
	}

	res := streak.Evaluate(current, fs, today, increment, at)
	for res.Outcome == streak.Rescued {
		var claimed bool
		switch res.Rescue.Source {
		case models.SourcePersonal:
			claimed, err = freezes.TryConsume(ctx, user.ID)
			if !claimed {
				fs.PersonalFreezes = 0
			}
		case models.SourceFamilyPool:
			claimed, err = pool.TryBorrow(ctx, *user.FamilyID)
			if !claimed {
				fs.FamilyPoolFreezes = 0
			}
		default:
			return streak.Result{}, fmt.Errorf("unknown freeze source %q", res.Rescue.Source)
		}
		if err != nil {
			return streak.Result{}, err
		}
		if claimed {
			break
		}
		res = streak.Evaluate(current, fs, today, increment, at)
	}

	if res.Outcome == streak.Unchanged {
		return res, nil
	}

	swapped, err := streaks.CompareAndSwap(ctx, user.ID, current, res.Streak)
	if err != nil {
		return streak.Result{}, err
	}
	if !swapped {
		return streak.Result{}, errStreakConflict
	}

	if res.Rescue != nil {
		if err := freezes.AppendEvent(ctx, user.ID, *res.Rescue); err != nil {
			return streak.Result{}, err
		}
	}
	return res, nil
}
