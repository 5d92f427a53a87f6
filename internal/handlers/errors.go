package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"thinkfirst/internal/service"
	"thinkfirst/internal/validation"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields validation.Errors `json:"fields,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		logger.Error(logMsg, zap.Int("status", status), zap.Error(err))
	}
	respondWithJSON(w, status, errorResponse{Error: userMsg})
}

// respondWithServiceError maps a service error to its status. Internal causes are logged
// and never shown to the caller.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		respondWithError(w, logger, http.StatusInternalServerError, ErrInternalServerError, "Unclassified service error", err)
		return
	}

	status := svcErr.StatusCode()
	if svcErr.Kind == service.KindInternal {
		respondWithError(w, logger, status, ErrInternalServerError, svcErr.Message, svcErr.Cause)
		return
	}
	if svcErr.Kind == service.KindConfiguration {
		logger.Warn("Configuration error", zap.String("message", svcErr.Message), zap.Error(svcErr.Cause))
	}
	respondWithJSON(w, status, errorResponse{
		Error:  svcErr.Message,
		Kind:   string(svcErr.Kind),
		Fields: svcErr.Fields,
	})
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
