package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"thinkfirst/internal/history"
	"thinkfirst/internal/security"
	"thinkfirst/internal/service"
)

// LearningHandler serves attempts, history and streaks
type LearningHandler struct {
	learning *service.LearningService
	streaks  *service.StreakService
	limiter  *security.RateLimiter
	logger   *zap.Logger
}

// NewLearningHandler creates a new learning handler. Evaluations are limited per user by limiter.
func NewLearningHandler(learning *service.LearningService, streaks *service.StreakService, limiter *security.RateLimiter, logger *zap.Logger) *LearningHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LearningHandler{learning: learning, streaks: streaks, limiter: limiter, logger: logger}
}

// Evaluate handles POST /evaluate
func (h *LearningHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req service.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	key := "ip:" + security.GetClientIP(r)
	if req.UserID > 0 {
		key = "user:" + strconv.FormatInt(req.UserID, 10)
	}
	if h.limiter != nil && !h.limiter.Allow(key) {
		w.Header().Set("Retry-After", "60")
		respondWithJSON(w, http.StatusTooManyRequests, errorResponse{Error: ErrTooManyRequests})
		return
	}

	result, err := h.learning.SubmitAttempt(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GetStreak handles GET /streak/{userId}
func (h *LearningHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}
	streak, err := h.streaks.GetStreak(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, streak)
}

// GetHistory handles GET /history/{userId}
func (h *LearningHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}
	hist, err := h.learning.GetHistory(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, hist)
}

// GetStats handles GET /history/{userId}/stats?days=7
func (h *LearningHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}

	days := history.DefaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, h.logger, http.StatusBadRequest, "days must be a number", "", nil)
			return
		}
		days = n
	}

	stats, err := h.learning.GetStats(r.Context(), userID, days)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
