// Package handler serves the coach transcript routes:
//
//	GET  /v1/sessions/{sessionId}/chat   full transcript, oldest first
//	POST /v1/sessions/{sessionId}/chat   {"text": "..."} -> the user message
//
// POST returns as soon as the user message is appended. The coach reply is
// appended later by the session; clients poll GET to pick it up.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/elowen/skin-coach-bfa-go/internal/chat/domain"
	maindomain "github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("chat/handler")

var validate = validator.New()

// SessionFinder resolves a live session by id.
type SessionFinder interface {
	Get(id string) (*session.Session, error)
}

type transcriptResponse struct {
	Messages []domain.Message `json:"messages"`
}

// TranscriptHandler returns the handler for GET /v1/sessions/{sessionId}/chat.
func TranscriptHandler(sessions SessionFinder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/sessions/{id}/chat")
		defer span.End()

		id := chi.URLParam(r, "sessionId")
		span.SetAttributes(attribute.String("session.id", id))

		sess, err := sessions.Get(id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		msgs, err := sess.Transcript(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, transcriptResponse{Messages: msgs})
	}
}

// SendHandler returns the handler for POST /v1/sessions/{sessionId}/chat.
//
// Request:
//
//	{"text": "my cheeks feel tight after cleansing"}
//
// Response (202 Accepted): the appended user message.
func SendHandler(sessions SessionFinder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sessions/{id}/chat")
		defer span.End()

		id := chi.URLParam(r, "sessionId")
		span.SetAttributes(attribute.String("session.id", id))

		var req domain.ChatRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, `invalid request body: expected {"text": "your message"}`)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "text is required and must be at most 2000 characters")
			return
		}

		sess, err := sessions.Get(id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		msg, err := sess.SendChat(ctx, req.Text)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, msg)
	}
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleServiceError maps the errors the chat routes can produce.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *maindomain.ErrNotFound
	var validation *maindomain.ErrValidation

	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, maindomain.ErrSessionClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("chat error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
