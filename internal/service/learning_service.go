package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thinkfirst/internal/badges"
	"thinkfirst/internal/cache"
	"thinkfirst/internal/clock"
	"thinkfirst/internal/database"
	"thinkfirst/internal/evaluator"
	"thinkfirst/internal/history"
	"thinkfirst/internal/models"
	"thinkfirst/internal/notify"
	"thinkfirst/internal/repository"
	"thinkfirst/internal/streak"
	"thinkfirst/internal/validation"
)

// SubmitRequest is one think-first attempt submitted for evaluation
type SubmitRequest struct {
	UserID      int64  `json:"userId" validate:"required,gt=0"`
	Question    string `json:"question" validate:"notblank,max=4000"`
	Attempt     string `json:"attempt" validate:"notblank,max=8000"`
	MasteryMode bool   `json:"masteryMode"`
	// GradeLevel overrides the learner's stored grade level for this attempt
	GradeLevel string `json:"gradeLevel,omitempty" validate:"max=40"`
}

// SubmitResult is everything the learner sees after an attempt
type SubmitResult struct {
	Record          models.AttemptRecord  `json:"record"`
	Evaluation      models.Evaluation     `json:"evaluation"`
	Streak          models.StreakState    `json:"streak"`
	FreezeUsedToday bool                  `json:"freezeUsedToday"`
	FreezeSource    models.FreezeSource   `json:"freezeSource,omitempty"`
	NewBadges       []models.AwardedBadge `json:"newBadges"`
	Fallback        bool                  `json:"fallback"`
}

// Stats combines whole-history badge stats with the rolling progress window
type Stats struct {
	history.Stats
	Window history.WindowStats `json:"window"`
}

// LearningService runs the attempt flow: evaluate, record, advance the streak, award badges
type LearningService struct {
	db        *database.DB
	users     *repository.UserRepository
	families  *repository.FamilyRepository
	attempts  *repository.AttemptRepository
	settings  *repository.SettingsRepository
	evaluator evaluator.Evaluator
	streaks   *StreakService
	freezes   *FreezeService
	badges    *BadgeService
	notifier  notify.Notifier
	boundary  clock.Boundary
	clock     clock.Clock
	snapshots *cache.Snapshots
	logger    *zap.Logger
}

// LearningDeps are the collaborators of a LearningService
type LearningDeps struct {
	DB        *database.DB
	Evaluator evaluator.Evaluator
	Streaks   *StreakService
	Freezes   *FreezeService
	Badges    *BadgeService
	Notifier  notify.Notifier
	Boundary  clock.Boundary
	Clock     clock.Clock
	Snapshots *cache.Snapshots
	Logger    *zap.Logger
}

// NewLearningService creates a new learning service
func NewLearningService(deps LearningDeps) *LearningService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LearningService{
		db:        deps.DB,
		users:     repository.NewUserRepository(deps.DB),
		families:  repository.NewFamilyRepository(deps.DB),
		attempts:  repository.NewAttemptRepository(deps.DB),
		settings:  repository.NewSettingsRepository(deps.DB),
		evaluator: deps.Evaluator,
		streaks:   deps.Streaks,
		freezes:   deps.Freezes,
		badges:    deps.Badges,
		notifier:  deps.Notifier,
		boundary:  deps.Boundary,
		clock:     deps.Clock,
		snapshots: deps.Snapshots,
		logger:    logger,
	}
}

// SubmitAttempt evaluates an attempt and applies its consequences. Invalid requests are
// rejected before anything is stored. A missing evaluator key is reported to the caller;
// any other evaluator failure is replaced by a fallback evaluation and the flow completes.
func (s *LearningService) SubmitAttempt(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, NewValidationError("invalid attempt", err)
	}

	user, err := s.users.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, NewInternalError("failed to load user", err)
	}
	if user == nil {
		return nil, NewNotFoundError("user %d not found", req.UserID)
	}

	gradeLevel := req.GradeLevel
	if gradeLevel == "" {
		gradeLevel = user.GradeLevel
	}
	ev, err := s.evaluator.Evaluate(ctx, evaluator.Request{
		Question:    req.Question,
		Attempt:     req.Attempt,
		UserID:      user.ID,
		MasteryMode: req.MasteryMode,
		GradeLevel:  gradeLevel,
	})
	if err != nil {
		if errors.Is(err, evaluator.ErrNotConfigured) {
			return nil, NewConfigurationError("The answer checker is not configured. Please ask an administrator to add an API key.", err)
		}
		s.logger.Warn("Evaluator failed, using fallback evaluation",
			zap.Int64("user_id", user.ID),
			zap.Error(err))
		ev = evaluator.Fallback()
	}

	now := s.clock.Now()
	record := models.AttemptRecord{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Question:    req.Question,
		Attempt:     req.Attempt,
		MasteryMode: req.MasteryMode,
		Evaluation:  ev,
		Timestamp:   now,
	}
	var hist []models.AttemptRecord
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		attempts := repository.NewAttemptRepository(tx)
		prev, err := attempts.ListAttempts(ctx, user.ID)
		if err != nil {
			return err
		}
		if err := attempts.AppendAttempt(ctx, record); err != nil {
			return err
		}
		hist = history.Append(prev, record)
		return nil
	})
	if err != nil {
		return nil, NewInternalError("failed to record attempt", err)
	}

	result := &SubmitResult{
		Record:     record,
		Evaluation: ev,
		NewBadges:  []models.AwardedBadge{},
		Fallback:   ev.Fallback,
	}

	var current models.StreakState
	if ev.Unlock {
		if _, _, err := s.freezes.grant(ctx, s.db, user, now); err != nil {
			return nil, err
		}

		res, err := s.streaks.RecordUnlock(ctx, user, streak.Increment(req.MasteryMode, ev.MasteryAchieved), now)
		if err != nil {
			return nil, err
		}
		current = res.Streak
		result.FreezeUsedToday = res.FreezeUsedToday
		if res.Rescue != nil {
			result.FreezeSource = res.Rescue.Source
			if res.Rescue.Source == models.SourceFamilyPool {
				s.notifyPoolBorrowed(ctx, user, res.Freeze.FamilyPoolFreezes)
			}
		}
	} else {
		current, err = repository.NewStreakRepository(s.db).GetStreak(ctx, user.ID)
		if err != nil {
			return nil, NewInternalError("failed to load streak", err)
		}
	}
	result.Streak = streak.Project(current, s.boundary.Day(now))

	fs, err := loadFreezeState(ctx, s.db, user)
	if err != nil {
		return nil, NewInternalError("failed to load freeze state", err)
	}
	awarded, err := s.badges.evaluateAndPersist(ctx, user.ID, badges.Snapshot{History: hist, Streak: result.Streak, Freeze: fs}, result.FreezeUsedToday)
	if err != nil {
		return nil, err
	}
	result.NewBadges = awarded
	s.notifyBadges(ctx, user, awarded)

	s.snapshots.Invalidate(ctx, user.ID)

	s.logger.Info("Attempt evaluated",
		zap.Int64("user_id", user.ID),
		zap.String("attempt_id", record.ID),
		zap.Bool("unlock", ev.Unlock),
		zap.Bool("fallback", ev.Fallback),
		zap.Int("streak", result.Streak.Count),
		zap.Int("new_badges", len(awarded)))

	return result, nil
}

// parentEmail returns the address to notify for user, or "" when there is none
func (s *LearningService) parentEmail(ctx context.Context, user *models.User) string {
	if s.notifier == nil || !s.notifier.Enabled() || !user.InFamily() {
		return ""
	}
	family, err := s.families.GetFamilyByID(ctx, *user.FamilyID)
	if err != nil {
		s.logger.Warn("Failed to load family for notification", zap.Int64("user_id", user.ID), zap.Error(err))
		return ""
	}
	if family == nil {
		return ""
	}
	return family.ParentEmail
}

func (s *LearningService) notificationConfig(ctx context.Context, userID int64) models.NotificationConfig {
	cfg, err := s.settings.GetNotificationConfig(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load notification config", zap.Int64("user_id", userID), zap.Error(err))
		return models.DefaultNotificationConfig()
	}
	return cfg
}

// Notification failures are logged and never fail the attempt.
func (s *LearningService) notifyBadges(ctx context.Context, user *models.User, awarded []models.AwardedBadge) {
	if len(awarded) == 0 {
		return
	}
	to := s.parentEmail(ctx, user)
	if to == "" || !s.notificationConfig(ctx, user.ID).BadgeEmails {
		return
	}
	if err := s.notifier.BadgesEarned(ctx, to, user.Name, awarded); err != nil {
		s.logger.Warn("Failed to send badge email", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

func (s *LearningService) notifyPoolBorrowed(ctx context.Context, user *models.User, remaining int) {
	to := s.parentEmail(ctx, user)
	if to == "" || !s.notificationConfig(ctx, user.ID).PoolEmails {
		return
	}
	if err := s.notifier.PoolBorrowed(ctx, to, user.Name, remaining); err != nil {
		s.logger.Warn("Failed to send pool email", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

// GetHistory returns the user's retained attempts, most recent first
func (s *LearningService) GetHistory(ctx context.Context, userID int64) ([]models.AttemptRecord, error) {
	var hist []models.AttemptRecord
	if s.snapshots.Load(ctx, cache.EntityHistory, userID, &hist) {
		return hist, nil
	}
	gen := s.snapshots.Generation(userID)

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load user", err)
	}
	if user == nil {
		return nil, NewNotFoundError("user %d not found", userID)
	}
	hist, err = s.attempts.ListAttempts(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load history", err)
	}
	s.snapshots.Save(ctx, cache.EntityHistory, userID, hist, gen)
	return hist, nil
}

// GetStats returns whole-history stats and the rolling window of the given length in days
func (s *LearningService) GetStats(ctx context.Context, userID int64, days int) (Stats, error) {
	if days < 0 {
		return Stats{}, NewValidationError("days must not be negative", nil)
	}
	hist, err := s.GetHistory(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Stats:  history.Compute(hist),
		Window: history.Window(hist, s.clock.Now(), days, s.boundary),
	}, nil
}
