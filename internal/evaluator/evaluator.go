// Package evaluator calls the external LLM service that scores a learner's think-first attempt.
package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"thinkfirst/internal/models"
)

// ErrNotConfigured is returned when no API key is set. It is never retried.
var ErrNotConfigured = errors.New("evaluator API key is not configured")

// FallbackMessage is shown to the learner when the evaluator could not be reached
const FallbackMessage = "We couldn't check your answer right now. Your attempt was saved; please try again in a moment."

const maxScore = 3

// Request is one attempt to be scored
type Request struct {
	Question    string
	Attempt     string
	UserID      int64
	MasteryMode bool
	GradeLevel  string
}

// Evaluator scores attempts
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (models.Evaluation, error)
}

// Config holds evaluator client settings
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// RetryInitialInterval is the first backoff delay; later delays grow exponentially
	RetryInitialInterval time.Duration
}

// StatusError is a non-2xx response from the evaluator endpoint
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("evaluator returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to an OpenAI-compatible chat completions endpoint
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client. Missing optional settings get defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 500 * time.Millisecond
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Evaluate scores an attempt, retrying transient failures with exponential backoff
func (c *Client) Evaluate(ctx context.Context, req Request) (models.Evaluation, error) {
	if !c.Configured() {
		return models.Evaluation{}, ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req.MasteryMode)},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature:    0.2,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result models.Evaluation
	operation := func() error {
		ev, err := c.post(ctx, body)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Retryable() {
				return backoff.Permanent(err)
			}
			if errors.Is(err, errMalformed) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = ev
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInitialInterval
	b.MaxElapsedTime = c.cfg.Timeout

	start := time.Now()
	err = backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx),
		func(err error, d time.Duration) {
			c.logger.Warn("Evaluator call failed, retrying",
				zap.Int64("user_id", req.UserID),
				zap.Error(err),
				zap.Duration("backoff", d))
		},
	)
	if err != nil {
		c.logger.Error("Evaluator call failed",
			zap.Int64("user_id", req.UserID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return models.Evaluation{}, err
	}

	c.logger.Debug("Attempt evaluated",
		zap.Int64("user_id", req.UserID),
		zap.Bool("unlock", result.Unlock),
		zap.Duration("elapsed", time.Since(start)))
	return Normalize(result, req.MasteryMode), nil
}

var errMalformed = errors.New("malformed evaluator response")

func (c *Client) post(ctx context.Context, body []byte) (models.Evaluation, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("evaluator request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("failed to read evaluator response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Evaluation{}, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 200)}
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return models.Evaluation{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if len(chat.Choices) == 0 {
		return models.Evaluation{}, fmt.Errorf("%w: no choices", errMalformed)
	}

	var ev models.Evaluation
	content := strings.TrimSpace(chat.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &ev); err != nil {
		return models.Evaluation{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return ev, nil
}

// Normalize bounds scores to 0..3 and drops a mastery claim when mastery mode was off
func Normalize(ev models.Evaluation, masteryMode bool) models.Evaluation {
	ev.EffortScore = bound(ev.EffortScore)
	ev.UnderstandingScore = bound(ev.UnderstandingScore)
	if !masteryMode {
		ev.MasteryAchieved = false
	}
	ev.Fallback = false
	return ev
}

// Fallback is the evaluation used when the evaluator failed for a non-configuration reason.
// It never unlocks, so streaks and badges are left untouched.
func Fallback() models.Evaluation {
	return models.Evaluation{
		WhatIsMissing:   FallbackMessage,
		FullExplanation: "",
		Fallback:        true,
	}
}

func bound(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
