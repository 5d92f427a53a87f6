package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"thinkfirst/internal/badges"
	"thinkfirst/internal/cache"
	"thinkfirst/internal/clock"
	"thinkfirst/internal/database"
	"thinkfirst/internal/models"
	"thinkfirst/internal/repository"
)

// BadgeList is a user's earned badges alongside the full catalogue
type BadgeList struct {
	Earned  []models.EarnedBadge `json:"earned"`
	Catalog []models.Badge       `json:"catalog"`
}

// BadgeService evaluates and persists badge awards
type BadgeService struct {
	db        *database.DB
	users     *repository.UserRepository
	badgeRepo *repository.BadgeRepository
	evaluator *badges.Evaluator
	clock     clock.Clock
	snapshots *cache.Snapshots
	logger    *zap.Logger
}

// NewBadgeService creates a new badge service
func NewBadgeService(db *database.DB, evaluator *badges.Evaluator, clk clock.Clock, snapshots *cache.Snapshots, logger *zap.Logger) *BadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeService{
		db:        db,
		users:     repository.NewUserRepository(db),
		badgeRepo: repository.NewBadgeRepository(db),
		evaluator: evaluator,
		clock:     clk,
		snapshots: snapshots,
		logger:    logger,
	}
}

func (s *BadgeService) requireUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load user", err)
	}
	if user == nil {
		return nil, NewNotFoundError("user %d not found", userID)
	}
	return user, nil
}

func (s *BadgeService) earned(ctx context.Context, userID int64) ([]models.EarnedBadge, error) {
	var earned []models.EarnedBadge
	if s.snapshots.Load(ctx, cache.EntityBadges, userID, &earned) {
		return earned, nil
	}
	gen := s.snapshots.Generation(userID)
	earned, err := s.badgeRepo.ListEarned(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load earned badges", err)
	}
	s.snapshots.Save(ctx, cache.EntityBadges, userID, earned, gen)
	return earned, nil
}

// List returns the user's earned badges and the catalogue
func (s *BadgeService) List(ctx context.Context, userID int64) (BadgeList, error) {
	if _, err := s.requireUser(ctx, userID); err != nil {
		return BadgeList{}, err
	}
	earned, err := s.earned(ctx, userID)
	if err != nil {
		return BadgeList{}, err
	}
	return BadgeList{Earned: earned, Catalog: s.evaluator.Catalog().All()}, nil
}

// Check re-evaluates every automatic badge against the user's stored state and returns
// the badges this call newly awarded.
func (s *BadgeService) Check(ctx context.Context, userID int64) ([]models.AwardedBadge, error) {
	user, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := repository.NewAttemptRepository(s.db).ListAttempts(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load history", err)
	}
	current, err := repository.NewStreakRepository(s.db).GetStreak(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load streak", err)
	}
	fs, err := loadFreezeState(ctx, s.db, user)
	if err != nil {
		return nil, NewInternalError("failed to load freeze state", err)
	}

	snap := badges.Snapshot{History: history, Streak: current, Freeze: fs}
	return s.evaluateAndPersist(ctx, userID, snap, false)
}

// evaluateAndPersist runs the freeze path (when requested) and the generic path, then
// stores the candidates. Only badges whose row was actually inserted are returned.
func (s *BadgeService) evaluateAndPersist(ctx context.Context, userID int64, snap badges.Snapshot, freezeUsed bool) ([]models.AwardedBadge, error) {
	earnedList, err := s.badgeRepo.ListEarned(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load earned badges", err)
	}
	earned := models.NewEarnedSet(earnedList)
	now := s.clock.Now()

	var candidates []models.AwardedBadge
	if freezeUsed {
		candidates = s.evaluator.CheckFreezeBadges(snap.Freeze, earned, now)
		for _, b := range candidates {
			earned[b.ID] = true
		}
	}
	candidates = append(candidates, s.evaluator.CheckAndAward(snap, earned, now)...)

	return s.persist(ctx, userID, candidates)
}

func (s *BadgeService) persist(ctx context.Context, userID int64, candidates []models.AwardedBadge) ([]models.AwardedBadge, error) {
	awarded := []models.AwardedBadge{}
	if len(candidates) == 0 {
		return awarded, nil
	}
	for _, b := range candidates {
		inserted, err := s.badgeRepo.Award(ctx, userID, b.ID, b.AwardedAt)
		if err != nil {
			return nil, NewInternalError("failed to award badge", err)
		}
		if inserted {
			awarded = append(awarded, b)
		}
	}
	if len(awarded) > 0 {
		s.snapshots.Invalidate(ctx, userID)
		ids := make([]string, len(awarded))
		for i, b := range awarded {
			ids[i] = b.ID
		}
		s.logger.Info("Badges awarded", zap.Int64("user_id", userID), zap.String("badges", strings.Join(ids, ",")))
	}
	return awarded, nil
}

// AwardManual grants a manual or saved_count badge out of band
func (s *BadgeService) AwardManual(ctx context.Context, userID int64, badgeID string) (models.AwardedBadge, error) {
	user, err := s.requireUser(ctx, userID)
	if err != nil {
		return models.AwardedBadge{}, err
	}
	earnedList, err := s.badgeRepo.ListEarned(ctx, userID)
	if err != nil {
		return models.AwardedBadge{}, NewInternalError("failed to load earned badges", err)
	}
	fs, err := loadFreezeState(ctx, s.db, user)
	if err != nil {
		return models.AwardedBadge{}, NewInternalError("failed to load freeze state", err)
	}

	badge, err := s.evaluator.AwardManual(badgeID, fs, models.NewEarnedSet(earnedList), s.clock.Now())
	switch {
	case errors.Is(err, badges.ErrUnknownBadge):
		return models.AwardedBadge{}, NewNotFoundError("badge %q not found", badgeID)
	case errors.Is(err, badges.ErrAlreadyEarned):
		return models.AwardedBadge{}, NewConflictError("badge already earned", err)
	case errors.Is(err, badges.ErrCriteriaNotMet):
		return models.AwardedBadge{}, NewConflictError("badge criteria not met", err)
	case errors.Is(err, badges.ErrNotManual):
		return models.AwardedBadge{}, NewValidationError("badge is awarded automatically", err)
	case err != nil:
		return models.AwardedBadge{}, NewInternalError("failed to award badge", err)
	}

	awarded, err := s.persist(ctx, userID, []models.AwardedBadge{badge})
	if err != nil {
		return models.AwardedBadge{}, err
	}
	if len(awarded) == 0 {
		return models.AwardedBadge{}, NewConflictError("badge already earned", badges.ErrAlreadyEarned)
	}
	return awarded[0], nil
}
