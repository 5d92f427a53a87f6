package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New builds the application logger for an environment name.
// production logs JSON at info level; staging logs JSON at debug; anything else uses the
// human-readable development encoder.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config

	switch strings.ToLower(env) {
	case "production", "prod":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "staging":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
