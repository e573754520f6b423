// Package service holds the application services behind the HTTP API.
package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/cache"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/observability"
	"github.com/elowen/skin-coach-bfa-go/internal/port"
	"github.com/elowen/skin-coach-bfa-go/internal/session"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/sessions")

// MaxDisplayNameLength bounds the greeting name.
const MaxDisplayNameLength = 64

// SessionsConfig configures the registry and every session it creates.
type SessionsConfig struct {
	// IdleTTL ends a session that has not been looked up for this long.
	IdleTTL            time.Duration
	DefaultDisplayName string
	Session            session.Config
}

// Sessions is the registry of live sessions. A session is destroyed when it
// is ended, when it idles past IdleTTL, or when the registry is closed.
type Sessions struct {
	cfg     SessionsConfig
	deps    session.Deps
	cache   port.Cache[*session.Session]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewSessions creates the registry. Close must be called to stop its
// expiry goroutine and close remaining sessions.
func NewSessions(cfg SessionsConfig, deps session.Deps) *Sessions {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.DefaultDisplayName == "" {
		cfg.DefaultDisplayName = "Melissa"
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Sessions{
		cfg:     cfg,
		deps:    deps,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	s.cache = cache.New(cfg.IdleTTL, cache.WithOnEvict(s.evicted))
	return s
}

func (s *Sessions) evicted(id string, sess *session.Session) {
	sess.Close()
	s.metrics.SessionClosed()
	s.logger.Info("session ended", zap.String("session_id", id))
}

// Create starts a new session greeting displayName, or the default name
// when it is blank.
func (s *Sessions) Create(ctx context.Context, displayName string) (*session.Session, error) {
	_, span := tracer.Start(ctx, "Sessions.Create")
	defer span.End()

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = s.cfg.DefaultDisplayName
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return nil, &domain.ErrValidation{Field: "displayName", Message: "display name is too long"}
	}

	cfg := s.cfg.Session
	cfg.DisplayName = name
	id := uuid.NewString()
	sess := session.New(id, cfg, s.deps)

	s.cache.Set(id, sess)
	s.metrics.SessionOpened()
	span.SetAttributes(attribute.String("session.id", id))
	s.logger.Info("session started", zap.String("session_id", id))
	return sess, nil
}

// Get returns a live session and extends its idle deadline.
func (s *Sessions) Get(id string) (*session.Session, error) {
	sess, ok := s.cache.Touch(id)
	s.metrics.IncrSessionLookup(ok)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "session", ID: id}
	}
	return sess, nil
}

// End destroys a session.
func (s *Sessions) End(id string) error {
	if _, ok := s.cache.Get(id); !ok {
		return &domain.ErrNotFound{Resource: "session", ID: id}
	}
	s.cache.Delete(id)
	return nil
}

// Len returns the number of tracked sessions.
func (s *Sessions) Len() int { return s.cache.Len() }

// Close ends every session.
func (s *Sessions) Close() {
	s.cache.Close()
}
