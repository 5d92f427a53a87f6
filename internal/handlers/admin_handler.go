package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/security"
	"thinkfirst/internal/service"
)

// HealthChecker is anything the health endpoint pings
type HealthChecker interface {
	Health(ctx context.Context) error
}

// AdminHandler handles admin routes and the health check
type AdminHandler struct {
	backupService *service.BackupService
	freezes       *service.FreezeService
	checks        map[string]HealthChecker
	clock         clock.Clock
	version       string
	logger        *zap.Logger
}

// NewAdminHandler creates a new admin handler. checks are pinged by /healthz.
func NewAdminHandler(backupService *service.BackupService, freezes *service.FreezeService, checks map[string]HealthChecker, clk clock.Clock, version string, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		backupService: backupService,
		freezes:       freezes,
		checks:        checks,
		clock:         clk,
		version:       version,
		logger:        logger,
	}
}

// ExportDatabase exports the database to JSON for download
func (h *AdminHandler) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	timestamp := h.clock.Now().Format("20060102_150405")
	filename := fmt.Sprintf("thinkfirst_backup_%s.json", timestamp)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := h.backupService.ExportToWriter(r.Context(), w); err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, "Failed to export database", "Error exporting database", err)
		return
	}

	subject := ""
	if claims, ok := r.Context().Value(AdminContextKey).(*security.AdminClaims); ok {
		subject = claims.Subject
	}
	h.logger.Info("Database exported", zap.String("admin", subject))
}

// GrantAll handles POST /admin/grants?concurrency=N
func (h *AdminHandler) GrantAll(w http.ResponseWriter, r *http.Request) {
	concurrency := 4
	if raw := r.URL.Query().Get("concurrency"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondWithError(w, h.logger, http.StatusBadRequest, "concurrency must be a positive number", "", nil)
			return
		}
		concurrency = n
	}

	summary, err := h.freezes.GrantAll(r.Context(), concurrency)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// Health handles GET /healthz
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: h.version, Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check.Health(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	respondWithJSON(w, status, resp)
}
