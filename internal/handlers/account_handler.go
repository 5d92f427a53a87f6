package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"thinkfirst/internal/models"
	"thinkfirst/internal/service"
)

// AccountHandler serves users, families, freezes and notification preferences
type AccountHandler struct {
	accounts *service.AccountService
	freezes  *service.FreezeService
	logger   *zap.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *service.AccountService, freezes *service.FreezeService, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{accounts: accounts, freezes: freezes, logger: logger}
}

// CreateUser handles POST /users
func (h *AccountHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	user, err := h.accounts.CreateUser(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /users/{userId}
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}
	user, err := h.accounts.GetUser(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// CreateFamily handles POST /families
func (h *AccountHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req service.CreateFamilyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	family, err := h.accounts.CreateFamily(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, family)
}

// GetNotifications handles GET /users/{userId}/notifications
func (h *AccountHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}
	cfg, err := h.accounts.GetNotificationConfig(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

// UpdateNotifications handles PUT /users/{userId}/notifications
func (h *AccountHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}
	var cfg models.NotificationConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	saved, err := h.accounts.SetNotificationConfig(r.Context(), userID, cfg)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

// GetFreezes handles GET /freezes/{userId}
func (h *AccountHandler) GetFreezes(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}
	fs, err := h.freezes.GetFreezeState(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, fs)
}

// GrantFreezes handles POST /freezes/{userId}/grant
func (h *AccountHandler) GrantFreezes(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidUserID, "", nil)
		return
	}
	fs, granted, err := h.freezes.ApplyMonthlyGrant(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"freeze": fs, "granted": granted})
}
