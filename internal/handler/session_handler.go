package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/elowen/skin-coach-bfa-go/internal/calendar"
	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/imaging"
	"github.com/elowen/skin-coach-bfa-go/internal/service"
	"github.com/elowen/skin-coach-bfa-go/internal/session"
	"github.com/elowen/skin-coach-bfa-go/internal/wizard"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Request bodies
// ============================================================

type createSessionRequest struct {
	DisplayName string `json:"displayName" validate:"max=64"`
}

type skinTypeRequest struct {
	SkinType string `json:"skinType" validate:"required,skintype"`
}

type concernRequest struct {
	Concern string `json:"concern" validate:"required,concern"`
}

type sensitivityRequest struct {
	Sensitivity *int `json:"sensitivity" validate:"required,min=1,max=5"`
}

type lifestyleRequest struct {
	Factor string `json:"factor" validate:"required,lifestyle"`
}

type currentRoutineRequest struct {
	Text string `json:"text" validate:"max=2000"`
}

type navigateRequest struct {
	View string `json:"view" validate:"required"`
}

// sessionAction runs fn against the session named in the URL.
func sessionAction(sessions *service.Sessions, logger *zap.Logger, name string, fn func(w http.ResponseWriter, r *http.Request, sess *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), name)
		defer span.End()

		id := chi.URLParam(r, "sessionId")
		span.SetAttributes(attribute.String("session.id", id))

		sess, err := sessions.Get(id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		fn(w, r.WithContext(ctx), sess)
	}
}

// ============================================================
// Session lifecycle
// ============================================================

func createSessionHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sessions")
		defer span.End()

		var req createSessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeInvalid(w, err)
			return
		}

		sess, err := sessions.Create(ctx, req.DisplayName)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		st, err := sess.Snapshot(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.Header().Set("Location", "/v1/sessions/"+sess.ID())
		writeJSON(w, http.StatusCreated, st)
	}
}

func getSessionHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return sessionAction(sessions, logger, "GET /v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		st, err := sess.Snapshot(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})
}

func endSessionHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "DELETE /v1/sessions/{id}")
		defer span.End()

		if err := sessions.End(chi.URLParam(r, "sessionId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func signOutHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return sessionAction(sessions, logger, "POST /v1/sessions/{id}/sign-out", func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if err := sess.SignOut(r.Context()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeState(w, r, sess, logger)
	})
}

func writeState(w http.ResponseWriter, r *http.Request, sess *session.Session, logger *zap.Logger) {
	st, err := sess.Snapshot(r.Context())
	if err != nil {
		handleServiceError(w, err, logger)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ============================================================
// Wizard
// ============================================================

// wizardEdit decodes a body of type T and applies it to the wizard.
func wizardEdit[T any](sessions *service.Sessions, logger *zap.Logger, name string, apply func(ctx context.Context, sess *session.Session, req *T) (wizard.State, error)) http.HandlerFunc {
	return sessionAction(sessions, logger, name, func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		var req T
		if err := decodeJSON(w, r, &req); err != nil {
			writeInvalid(w, err)
			return
		}
		st, err := apply(r.Context(), sess, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})
}

func skinTypeHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return wizardEdit(sessions, logger, "POST /wizard/skin-type", func(ctx context.Context, sess *session.Session, req *skinTypeRequest) (wizard.State, error) {
		return sess.SelectSkinType(ctx, domain.SkinType(req.SkinType))
	})
}

func concernHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return wizardEdit(sessions, logger, "POST /wizard/concerns", func(ctx context.Context, sess *session.Session, req *concernRequest) (wizard.State, error) {
		return sess.ToggleConcern(ctx, req.Concern)
	})
}

func sensitivityHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return wizardEdit(sessions, logger, "POST /wizard/sensitivity", func(ctx context.Context, sess *session.Session, req *sensitivityRequest) (wizard.State, error) {
		return sess.SetSensitivity(ctx, *req.Sensitivity)
	})
}

func lifestyleHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return wizardEdit(sessions, logger, "POST /wizard/lifestyle", func(ctx context.Context, sess *session.Session, req *lifestyleRequest) (wizard.State, error) {
		return sess.ToggleLifestyleFactor(ctx, req.Factor)
	})
}

func currentRoutineHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return wizardEdit(sessions, logger, "POST /wizard/current-routine", func(ctx context.Context, sess *session.Session, req *currentRoutineRequest) (wizard.State, error) {
		return sess.SetCurrentRoutine(ctx, strings.TrimSpace(req.Text))
	})
}

func retreatHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return sessionAction(sessions, logger, "POST /wizard/retreat", func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		st, err := sess.RetreatWizard(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})
}

// advanceHandler answers 202 when the advance submitted the assessment.
func advanceHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return sessionAction(sessions, logger, "POST /wizard/advance", func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		st, err := sess.AdvanceWizard(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeAccepted(w, st)
	})
}

func writeAccepted(w http.ResponseWriter, st session.State) {
	status := http.StatusOK
	if st.Busy {
		status = http.StatusAccepted
	}
	writeJSON(w, status, st)
}

// ============================================================
// Capture
// ============================================================

// multipartOverhead is the allowance for form boundaries and headers.
const multipartOverhead = 64 << 10

// submitPhotoHandler accepts a raw image body or a multipart form with a
// "photo" file field. The body is not read unless the session is on the
// capture view and idle.
func submitPhotoHandler(sessions *service.Sessions, maxBytes int, logger *zap.Logger) http.HandlerFunc {
	return sessionAction(sessions, logger, "POST /v1/sessions/{id}/analyses", func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if err := sess.CheckCapture(r.Context()); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		data, err := readPhoto(w, r, maxBytes)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || len(data) > maxBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "photo exceeds the size limit")
			return
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		info, err := imaging.Inspect(data, maxBytes)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		st, err := sess.SubmitPhoto(r.Context(), info.Payload(data))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeAccepted(w, st)
	})
}

func readPhoto(w http.ResponseWriter, r *http.Request, maxBytes int) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(http.MaxBytesReader(w, r.Body, int64(maxBytes)+1))
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes)+multipartOverhead)
	f, _, err := r.FormFile("photo")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, err
		}
		return nil, &domain.ErrValidation{Field: "photo", Message: "multipart field \"photo\" is required"}
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, int64(maxBytes)+1))
}

func skipCaptureHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return sessionAction(sessions, logger, "POST /v1/sessions/{id}/capture/skip", func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		st, err := sess.SkipCapture(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})
}

// ============================================================
// Routine & progress
// ============================================================

func toggleStepHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return sessionAction(sessions, logger, "POST /routine/{period}/steps/{stepId}/toggle", func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		period, err := domain.ParsePeriod(chi.URLParam(r, "period"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		res, err := sess.ToggleStep(r.Context(), period, chi.URLParam(r, "stepId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

func progressHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return sessionAction(sessions, logger, "GET /v1/sessions/{id}/progress", func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		p, err := sess.Progress(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	})
}

func calendarHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return sessionAction(sessions, logger, "GET /v1/sessions/{id}/calendar", func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		doc, err := sess.ExportCalendar(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.Header().Set("Content-Type", calendar.MIMEType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": calendar.FileName}))
		w.WriteHeader(http.StatusOK)
		w.Write(doc)
	})
}

// ============================================================
// Navigation
// ============================================================

func navigateHandler(sessions *service.Sessions, logger *zap.Logger) http.HandlerFunc {
	return sessionAction(sessions, logger, "POST /v1/sessions/{id}/navigate", func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		var req navigateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeInvalid(w, err)
			return
		}
		view, err := domain.ParseView(req.View)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		st, err := sess.Navigate(r.Context(), view)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})
}
