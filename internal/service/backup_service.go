package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/database"
	"thinkfirst/internal/models"
	"thinkfirst/internal/repository"
)

// BackupVersion is the format version written into every export
const BackupVersion = "1.0"

// BackupData represents the complete exported state
type BackupData struct {
	Version      string          `json:"version"`
	ExportedAt   time.Time       `json:"exported_at"`
	DatabaseType string          `json:"database_type"`
	Families     []models.Family `json:"families"`
	Users        []UserBackup    `json:"users"`
}

// UserBackup is one learner with all of their engine state
type UserBackup struct {
	models.User
	Streak       models.StreakState        `json:"streak"`
	Freeze       models.FreezeState        `json:"freeze"`
	EarnedBadges []models.EarnedBadge      `json:"earned_badges"`
	Attempts     int                       `json:"attempts"`
	Notify       models.NotificationConfig `json:"notifications"`
}

// BackupService exports a JSON snapshot of users, families, streaks, freezes and badges
type BackupService struct {
	db     *database.DB
	clock  clock.Clock
	logger *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, clk clock.Clock, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{db: db, clock: clk, logger: logger}
}

// Export writes a complete backup to outputPath
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	return file.Close()
}

// ExportToWriter writes a complete backup to w
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	s.logger.Info("Database exported",
		zap.Int("families", len(backup.Families)),
		zap.Int("users", len(backup.Users)))
	return nil
}

// Snapshot collects the backup contents without encoding them
func (s *BackupService) Snapshot(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   s.clock.Now().UTC(),
		DatabaseType: s.db.GetDialect().DriverName(),
	}

	families, err := repository.NewFamilyRepository(s.db).ListFamilies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export families: %w", err)
	}
	backup.Families = families

	users, err := repository.NewUserRepository(s.db).ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}

	streaks := repository.NewStreakRepository(s.db)
	attempts := repository.NewAttemptRepository(s.db)
	earned := repository.NewBadgeRepository(s.db)
	settings := repository.NewSettingsRepository(s.db)

	backup.Users = make([]UserBackup, 0, len(users))
	for i := range users {
		user := &users[i]
		ub := UserBackup{User: *user}

		if ub.Streak, err = streaks.GetStreak(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to export streak of user %d: %w", user.ID, err)
		}
		if ub.Freeze, err = loadFreezeState(ctx, s.db, user); err != nil {
			return nil, fmt.Errorf("failed to export freezes of user %d: %w", user.ID, err)
		}
		if ub.EarnedBadges, err = earned.ListEarned(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to export badges of user %d: %w", user.ID, err)
		}
		if ub.Attempts, err = attempts.CountAttempts(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to export attempts of user %d: %w", user.ID, err)
		}
		if ub.Notify, err = settings.GetNotificationConfig(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to export settings of user %d: %w", user.ID, err)
		}
		backup.Users = append(backup.Users, ub)
	}
	return backup, nil
}
