package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"thinkfirst/internal/database"
	"thinkfirst/internal/models"
	"thinkfirst/internal/repository"
	"thinkfirst/internal/validation"
)

// CreateUserRequest registers a learner
type CreateUserRequest struct {
	Name       string `json:"name" validate:"notblank,max=100"`
	Plan       string `json:"plan" validate:"required,plan"`
	FamilyID   *int64 `json:"familyId,omitempty" validate:"omitempty,gt=0"`
	GradeLevel string `json:"gradeLevel,omitempty" validate:"max=40"`
}

// CreateFamilyRequest registers a family that shares a freeze pool
type CreateFamilyRequest struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	ParentEmail string `json:"parentEmail,omitempty" validate:"omitempty,email"`
}

// AccountService manages the minimal user and family records the engine needs
type AccountService struct {
	db       *database.DB
	users    *repository.UserRepository
	families *repository.FamilyRepository
	settings *repository.SettingsRepository
	freezes  *FreezeService
	logger   *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(db *database.DB, freezes *FreezeService, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		db:       db,
		users:    repository.NewUserRepository(db),
		families: repository.NewFamilyRepository(db),
		settings: repository.NewSettingsRepository(db),
		freezes:  freezes,
		logger:   logger,
	}
}

// CreateUser stores a learner with empty streak and freeze rows, then applies the
// first monthly grant for their plan.
func (s *AccountService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, NewValidationError("invalid user", err)
	}
	plan := models.Plan(req.Plan)
	if plan == models.PlanFamily && req.FamilyID == nil {
		return nil, NewValidationError("family plan requires a familyId", nil)
	}
	if req.FamilyID != nil {
		family, err := s.families.GetFamilyByID(ctx, *req.FamilyID)
		if err != nil {
			return nil, NewInternalError("failed to load family", err)
		}
		if family == nil {
			return nil, NewNotFoundError("family %d not found", *req.FamilyID)
		}
	}

	user := &models.User{
		Name:       strings.TrimSpace(req.Name),
		Plan:       plan,
		FamilyID:   req.FamilyID,
		GradeLevel: req.GradeLevel,
	}
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := repository.NewUserRepository(tx).CreateUser(ctx, user); err != nil {
			return err
		}
		if err := repository.NewStreakRepository(tx).InitStreak(ctx, user.ID); err != nil {
			return err
		}
		return repository.NewFreezeRepository(tx).InitFreezeState(ctx, user.ID)
	})
	if err != nil {
		return nil, NewInternalError("failed to create user", err)
	}

	if s.freezes != nil {
		if _, _, err := s.freezes.grant(ctx, s.db, user, s.freezes.clock.Now()); err != nil {
			return nil, err
		}
	}

	s.logger.Info("User created",
		zap.Int64("user_id", user.ID),
		zap.String("plan", string(user.Plan)))
	return user, nil
}

// GetUser returns a user by id
func (s *AccountService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load user", err)
	}
	if user == nil {
		return nil, NewNotFoundError("user %d not found", userID)
	}
	return user, nil
}

// CreateFamily stores a new family with an empty pool
func (s *AccountService) CreateFamily(ctx context.Context, req CreateFamilyRequest) (*models.Family, error) {
	if err := validation.Struct(req); err != nil {
		return nil, NewValidationError("invalid family", err)
	}
	family := &models.Family{
		Name:        strings.TrimSpace(req.Name),
		ParentEmail: strings.TrimSpace(req.ParentEmail),
	}
	if err := s.families.CreateFamily(ctx, family); err != nil {
		return nil, NewInternalError("failed to create family", err)
	}
	s.logger.Info("Family created", zap.Int64("family_id", family.ID))
	return family, nil
}

// GetNotificationConfig returns the user's notification preferences
func (s *AccountService) GetNotificationConfig(ctx context.Context, userID int64) (models.NotificationConfig, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return models.NotificationConfig{}, err
	}
	cfg, err := s.settings.GetNotificationConfig(ctx, userID)
	if err != nil {
		return models.NotificationConfig{}, NewInternalError("failed to load notification config", err)
	}
	return cfg, nil
}

// SetNotificationConfig replaces the user's notification preferences
func (s *AccountService) SetNotificationConfig(ctx context.Context, userID int64, cfg models.NotificationConfig) (models.NotificationConfig, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return models.NotificationConfig{}, err
	}
	if err := s.settings.SetNotificationConfig(ctx, userID, cfg); err != nil {
		return models.NotificationConfig{}, NewInternalError("failed to save notification config", err)
	}
	return cfg, nil
}
