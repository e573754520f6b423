// Package session hosts one user's client state engine.
//
// A Session owns the profile store, the assessment wizard, the navigator and
// the coach transcript. All of them are touched only by the session's event
// loop goroutine: every public method posts a closure to the loop and waits
// for it. Collaborator calls and coach replies run as tasks on their own
// goroutines and post their completion back into the same queue, so the
// loop observes a single ordered stream of mutations.
//
// The busy flag is set on the loop before a collaborator call is dispatched
// and cleared by that call's completion event. While it is set, wizard and
// capture actions and navigation presses fail with ErrBusy. Sign-out clears
// busy but not inFlight: a call it abandoned keeps the collaborator slot
// until its completion arrives and is discarded, so at most one collaborator
// call is in flight per session.
package session

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"

	chatdomain "github.com/elowen/skin-coach-bfa-go/internal/chat/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/observability"
	"github.com/elowen/skin-coach-bfa-go/internal/port"
	"github.com/elowen/skin-coach-bfa-go/internal/store"
	"github.com/elowen/skin-coach-bfa-go/internal/wizard"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("session")

// Config holds per-session tunables.
type Config struct {
	DisplayName         string
	CollaboratorTimeout time.Duration
	CoachReplyDelay     time.Duration
	// Location is the zone used for calendar wall-clock times.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
	// CoachSharesCollaborator serializes coach replies with collaborator
	// calls when the coach agent is the collaborator service itself.
	CoachSharesCollaborator bool
}

// Deps are the session's collaborators.
type Deps struct {
	Collaborator port.Collaborator
	Coach        port.CoachReplier
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// ActionError records the last failed collaborator action so clients can
// show it after the busy indicator clears.
type ActionError struct {
	Action  string    `json:"action"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`

	err error
}

// Unwrap returns the underlying collaborator error.
func (e *ActionError) Unwrap() error { return e.err }

func (e *ActionError) Error() string { return e.Action + ": " + e.Message }

// State is a read-only snapshot of the session.
type State struct {
	SessionID string             `json:"sessionId"`
	View      domain.View        `json:"view"`
	Busy      bool               `json:"busy"`
	Wizard    wizard.State       `json:"wizard"`
	Profile   domain.UserProfile `json:"profile"`
	Progress  store.Progress     `json:"progress"`
	LastError *ActionError       `json:"lastError,omitempty"`
}

// Session is one user's state engine.
type Session struct {
	id      string
	cfg     Config
	collab  port.Collaborator
	coach   port.CoachReplier
	metrics *observability.Metrics
	logger  *zap.Logger

	events    chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	life      context.Context
	stopLife  context.CancelFunc
	tasks     sync.WaitGroup
	// callSlot admits one outbound collaborator request at a time.
	callSlot chan struct{}

	// loop-owned
	store          *store.ProfileStore
	wizard         *wizard.Wizard
	nav            *Navigator
	transcript     []chatdomain.Message
	busy           bool
	inFlight       bool
	pendingReplies int
	generation     uint64
	lastErr        *ActionError
	idleWaiters    []chan struct{}
	entropy        io.Reader
}

// New creates a session and starts its event loop. Close must be called to
// stop it.
func New(id string, cfg Config, deps Deps) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}

	life, stop := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		cfg:      cfg,
		collab:   deps.Collaborator,
		coach:    deps.Coach,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With(zap.String("session_id", id)),
		events:   make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		life:     life,
		stopLife: stop,
		store:    store.New(cfg.DisplayName),
		wizard:   wizard.New(),
		nav:      NewNavigator(),
		entropy:  ulid.Monotonic(rand.Reader, 0),
		callSlot: make(chan struct{}, 1),
	}
	s.transcript = []chatdomain.Message{s.greeting()}

	go s.run()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.events:
			fn()
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case s.events <- func() { defer close(finished); fn() }:
	case <-s.quit:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-s.done:
		return domain.ErrSessionClosed
	}
}

// post delivers a task completion to the loop. It is dropped once the
// session is closed.
func (s *Session) post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.quit:
	}
}

// spawn runs a task goroutine tracked for Close.
func (s *Session) spawn(fn func()) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		fn()
	}()
}

// taskContext detaches a task from the caller's cancellation, keeping its
// values (trace span), and bounds it by timeout and the session lifetime.
func (s *Session) taskContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		stop := context.AfterFunc(s.life, cancel)
		return ctx, func() { stop(); cancel() }
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.life, cancel)
	return ctx, func() { stop(); cancel() }
}

// acquireSlot waits for the session's collaborator slot. Task goroutines
// call it; the loop never blocks on it.
func (s *Session) acquireSlot(ctx context.Context) (release func(), err error) {
	select {
	case s.callSlot <- struct{}{}:
		return func() { <-s.callSlot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the loop and waits for in-flight tasks to observe it.
// Completions that arrive later are discarded.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.stopLife()
		close(s.quit)
		<-s.done
		s.tasks.Wait()
		s.logger.Debug("session closed")
	})
}

// Done is closed once the loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot(ctx context.Context) (State, error) {
	var st State
	err := s.do(ctx, func() { st = s.snapshot() })
	return st, err
}

func (s *Session) snapshot() State {
	return State{
		SessionID: s.id,
		View:      s.nav.Current(),
		Busy:      s.busy || s.inFlight,
		Wizard:    s.wizard.State(),
		Profile:   s.store.Profile(),
		Progress:  s.store.Progress(),
		LastError: s.lastErr,
	}
}

// WaitIdle blocks until no collaborator call or coach reply is in flight.
func (s *Session) WaitIdle(ctx context.Context) error {
	ch := make(chan struct{})
	err := s.do(ctx, func() {
		if s.idle() {
			close(ch)
			return
		}
		s.idleWaiters = append(s.idleWaiters, ch)
	})
	if err != nil {
		return err
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return domain.ErrSessionClosed
	}
}

func (s *Session) idle() bool {
	return !s.busy && !s.inFlight && s.pendingReplies == 0
}

func (s *Session) notifyIdle() {
	if !s.idle() {
		return
	}
	for _, ch := range s.idleWaiters {
		close(ch)
	}
	s.idleWaiters = nil
}

// beginCall sets the busy flag for a collaborator call, or rejects the
// action if one is already in flight, including one abandoned by sign-out.
func (s *Session) beginCall(action string) (uint64, error) {
	if s.busy || s.inFlight {
		s.metrics.IncrBusyRejection(action)
		return 0, &domain.ErrBusy{Action: action}
	}
	s.busy = true
	s.inFlight = true
	s.lastErr = nil
	s.metrics.IncrCollaboratorCall(action)
	return s.generation, nil
}

// endCall clears the busy flag. It runs for every completion of the current
// generation, success or failure.
func (s *Session) endCall() {
	s.busy = false
	s.notifyIdle()
}

// settleCall releases the collaborator slot. Every completion runs it first,
// stale or not.
func (s *Session) settleCall(gen uint64, action string) (stale bool) {
	s.inFlight = false
	if s.stale(gen, action) {
		s.notifyIdle()
		return true
	}
	return false
}

// checkNotBusy rejects user actions that would race an in-flight call.
func (s *Session) checkNotBusy(action string) error {
	if s.busy {
		s.metrics.IncrBusyRejection(action)
		return &domain.ErrBusy{Action: action}
	}
	return nil
}

// stale reports whether a completion belongs to a generation that ended
// with a sign-out.
func (s *Session) stale(gen uint64, action string) bool {
	if gen == s.generation {
		return false
	}
	s.logger.Debug("discarding late completion",
		zap.String("action", action),
		zap.Uint64("generation", gen),
		zap.Uint64("current_generation", s.generation),
	)
	return true
}

// fail records a collaborator failure. The store is left untouched.
func (s *Session) fail(action string, err error) {
	s.metrics.IncrCollaboratorError(action)
	s.lastErr = &ActionError{Action: action, Message: err.Error(), At: s.cfg.Now(), err: err}
	s.logger.Warn("collaborator call failed", zap.String("action", action), zap.Error(err))
}

// violated reports a programming error. DPanic panics in development builds.
func (s *Session) violated(action string, err error) {
	s.lastErr = &ActionError{Action: action, Message: err.Error(), At: s.cfg.Now(), err: err}
	s.logger.DPanic("invariant violated", zap.String("action", action), zap.Error(err))
}

// SignOut resets the profile, wizard, navigator and transcript. Any
// in-flight completion is discarded when it arrives; until then new
// collaborator calls are rejected with ErrBusy.
func (s *Session) SignOut(ctx context.Context) error {
	return s.do(ctx, func() {
		s.generation++
		s.store.Reset()
		s.wizard.Restart()
		s.nav.Reset()
		s.transcript = []chatdomain.Message{s.greeting()}
		s.busy = false
		s.pendingReplies = 0
		s.lastErr = nil
		s.notifyIdle()
		s.logger.Info("signed out", zap.Uint64("generation", s.generation))
	})
}
