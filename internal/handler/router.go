// Package handler exposes the session engine over HTTP.
package handler

import (
	"net/http"
	"time"

	chathandler "github.com/elowen/skin-coach-bfa-go/internal/chat/handler"
	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/imaging"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/observability"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/resilience"
	"github.com/elowen/skin-coach-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps are the router's dependencies.
type Deps struct {
	Sessions *service.Sessions
	// Guards are reported by /healthz, one entry per collaborator.
	Guards        []*resilience.Guard
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	MaxImageBytes int
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewMetrics()
	}
	if d.MaxImageBytes <= 0 {
		d.MaxImageBytes = imaging.DefaultMaxBytes
	}
	logger := d.Logger

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Guards))
	r.Get("/readyz", readyzHandler(d.Sessions))
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/library", libraryHandler())
		r.Get("/metrics/coach", coachMetricsHandler(d.Metrics))

		r.Post("/sessions", createSessionHandler(d.Sessions, logger))
		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", getSessionHandler(d.Sessions, logger))
			r.Delete("/", endSessionHandler(d.Sessions, logger))

			r.Route("/wizard", func(r chi.Router) {
				r.Post("/skin-type", skinTypeHandler(d.Sessions, logger))
				r.Post("/concerns", concernHandler(d.Sessions, logger))
				r.Post("/sensitivity", sensitivityHandler(d.Sessions, logger))
				r.Post("/lifestyle", lifestyleHandler(d.Sessions, logger))
				r.Post("/current-routine", currentRoutineHandler(d.Sessions, logger))
				r.Post("/advance", advanceHandler(d.Sessions, logger))
				r.Post("/retreat", retreatHandler(d.Sessions, logger))
			})

			r.Post("/analyses", submitPhotoHandler(d.Sessions, d.MaxImageBytes, logger))
			r.Post("/capture/skip", skipCaptureHandler(d.Sessions, logger))
			r.Post("/routine/{period}/steps/{stepId}/toggle", toggleStepHandler(d.Sessions, logger))
			r.Get("/progress", progressHandler(d.Sessions, logger))
			r.Get("/calendar", calendarHandler(d.Sessions, logger))
			r.Post("/navigate", navigateHandler(d.Sessions, logger))
			r.Post("/sign-out", signOutHandler(d.Sessions, logger))

			r.Get("/chat", chathandler.TranscriptHandler(d.Sessions, logger))
			r.Post("/chat", chathandler.SendHandler(d.Sessions, logger))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(guards []*resilience.Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "elowen-api", Status: "healthy", LastChecked: now},
		}
		for _, g := range guards {
			state := g.State()
			status := "healthy"
			switch state {
			case gobreaker.StateHalfOpen:
				status = "degraded"
			case gobreaker.StateOpen:
				status = "unhealthy"
			}
			services = append(services, domain.ServiceHealth{
				Name:        g.Service(),
				Status:      status,
				Detail:      "circuit " + state.String(),
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overallStatus = "degraded"
				break
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overallStatus, Services: services})
	}
}

func readyzHandler(sessions *service.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "sessions": sessions.Len()})
	}
}

func coachMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetCoachSnapshot())
	}
}

type libraryResponse struct {
	Articles []domain.Article    `json:"articles"`
	Tips     []domain.RoutineTip `json:"tips"`
}

func libraryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, libraryResponse{Articles: domain.Library, Tips: domain.RoutineTips})
	}
}
