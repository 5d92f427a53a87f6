package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"thinkfirst/internal/database"
	"thinkfirst/internal/models"
)

type SettingsRepository struct {
	db database.DBTX
}

func NewSettingsRepository(db database.DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSetting retrieves a setting value by key. ok is false when the key is unset.
func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE setting_key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting updates or inserts a setting
func (r *SettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	query := r.db.GetDialect().Upsert("settings",
		[]string{"setting_key", "value", "updated_at"},
		[]string{"setting_key"},
		[]string{"value", "updated_at"})
	if _, err := r.db.ExecContext(ctx, query, key, value, utcNow()); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

func notificationsKey(userID int64) string {
	return fmt.Sprintf("notifications:%d", userID)
}

// GetNotificationConfig returns the stored preferences, or the defaults when none are stored
func (r *SettingsRepository) GetNotificationConfig(ctx context.Context, userID int64) (models.NotificationConfig, error) {
	raw, ok, err := r.GetSetting(ctx, notificationsKey(userID))
	if err != nil {
		return models.NotificationConfig{}, err
	}
	if !ok {
		return models.DefaultNotificationConfig(), nil
	}

	cfg := models.DefaultNotificationConfig()
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return models.NotificationConfig{}, fmt.Errorf("failed to decode notification config: %w", err)
	}
	return cfg, nil
}

// SetNotificationConfig stores a user's preferences
func (r *SettingsRepository) SetNotificationConfig(ctx context.Context, userID int64, cfg models.NotificationConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode notification config: %w", err)
	}
	return r.SetSetting(ctx, notificationsKey(userID), string(raw))
}
