package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"thinkfirst/internal/service"
)

// BadgeHandler serves badge listing, checks and manual awards
type BadgeHandler struct {
	badges *service.BadgeService
	logger *zap.Logger
}

// NewBadgeHandler creates a new badge handler
func NewBadgeHandler(badges *service.BadgeService, logger *zap.Logger) *BadgeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeHandler{badges: badges, logger: logger}
}

type awardRequest struct {
	BadgeID string `json:"badgeId"`
}

// List handles GET /badges/{userId}
func (h *BadgeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}
	list, err := h.badges.List(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// Check handles POST /badges/{userId}/check
func (h *BadgeHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}
	awarded, err := h.badges.Check(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"newBadges": awarded})
}

// Award handles POST /badges/{userId}/award
func (h *BadgeHandler) Award(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}
	var req awardRequest
	if err := decodeJSON(w, r, &req); err != nil || req.BadgeID == "" {
		respondWithError(w, h.logger, http.StatusBadRequest, "badgeId is required", "", nil)
		return
	}

	badge, err := h.badges.AwardManual(r.Context(), userID, req.BadgeID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"awarded": badge})
}
