package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeInvalid(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload", Details: toDetails(err)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var busy *domain.ErrBusy
	var navigation *domain.ErrNavigation
	var external *domain.ErrExternalService
	var invariant *domain.ErrInvariantViolation

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionClosed):
		logger.Debug("session closed")
		writeError(w, http.StatusGone, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   err.Error(),
			Details: map[string]string{validation.Field: validation.Message},
		})
	case errors.As(err, &busy):
		logger.Debug("busy", zap.String("action", busy.Action))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &navigation):
		logger.Debug("navigation rejected", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Warn("collaborator failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &invariant):
		logger.Error("invariant violated", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
