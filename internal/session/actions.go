package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elowen/skin-coach-bfa-go/internal/calendar"
	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/store"
	"github.com/elowen/skin-coach-bfa-go/internal/wizard"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	actionAdvance  = "advance_wizard"
	actionWizard   = "edit_wizard"
	actionCapture  = "submit_photo"
	actionSkip     = "skip_capture"
	actionNavigate = "navigate"
)

// ============================================================
// Wizard
// ============================================================

// editWizard applies fn to the wizard if the session is on onboarding and idle.
func (s *Session) editWizard(ctx context.Context, fn func(w *wizard.Wizard)) (wizard.State, error) {
	var (
		st  wizard.State
		err error
	)
	doErr := s.do(ctx, func() {
		if err = s.checkNotBusy(actionWizard); err != nil {
			return
		}
		if err = s.nav.Require(domain.ViewOnboarding, "the assessment"); err != nil {
			return
		}
		fn(s.wizard)
		st = s.wizard.State()
	})
	if doErr != nil {
		return wizard.State{}, doErr
	}
	return st, err
}

// SelectSkinType sets the draft skin type.
func (s *Session) SelectSkinType(ctx context.Context, t domain.SkinType) (wizard.State, error) {
	return s.editWizard(ctx, func(w *wizard.Wizard) { w.SelectSkinType(t) })
}

// ToggleConcern toggles a concern in the draft.
func (s *Session) ToggleConcern(ctx context.Context, c string) (wizard.State, error) {
	return s.editWizard(ctx, func(w *wizard.Wizard) { w.ToggleConcern(c) })
}

// SetSensitivity sets the draft sensitivity (clamped).
func (s *Session) SetSensitivity(ctx context.Context, v int) (wizard.State, error) {
	return s.editWizard(ctx, func(w *wizard.Wizard) { w.SetSensitivity(v) })
}

// ToggleLifestyleFactor toggles a lifestyle factor in the draft.
func (s *Session) ToggleLifestyleFactor(ctx context.Context, f string) (wizard.State, error) {
	return s.editWizard(ctx, func(w *wizard.Wizard) { w.ToggleLifestyleFactor(f) })
}

// SetCurrentRoutine stores the user's free-text description of their routine.
func (s *Session) SetCurrentRoutine(ctx context.Context, text string) (wizard.State, error) {
	return s.editWizard(ctx, func(w *wizard.Wizard) { w.SetCurrentRoutine(text) })
}

// RetreatWizard moves back one step.
func (s *Session) RetreatWizard(ctx context.Context) (wizard.State, error) {
	return s.editWizard(ctx, func(w *wizard.Wizard) { w.Retreat() })
}

// AdvanceWizard moves forward one step. On the last step it submits the
// draft to the collaborator and returns with busy set; the routine is
// committed (and the view moves to capture) when the call completes.
func (s *Session) AdvanceWizard(ctx context.Context) (State, error) {
	var (
		st  State
		err error
	)
	doErr := s.do(ctx, func() {
		if err = s.checkNotBusy(actionAdvance); err != nil {
			return
		}
		if err = s.nav.Require(domain.ViewOnboarding, "the assessment"); err != nil {
			return
		}

		draft, submit := s.wizard.Advance()
		if submit {
			var gen uint64
			if gen, err = s.beginCall(actionAdvance); err != nil {
				return
			}
			s.dispatchRoutine(ctx, gen, draft)
		}
		st = s.snapshot()
	})
	if doErr != nil {
		return State{}, doErr
	}
	return st, err
}

func (s *Session) dispatchRoutine(parent context.Context, gen uint64, draft domain.Assessment) {
	ctx, cancel := s.taskContext(parent, s.cfg.CollaboratorTimeout)
	s.spawn(func() {
		defer cancel()
		ctx, span := tracer.Start(ctx, "Session.GenerateRoutine")
		defer span.End()
		span.SetAttributes(
			attribute.String("session.id", s.id),
			attribute.String("assessment.skin_type", string(draft.SkinType)),
		)

		var routine *domain.DailyRoutine
		release, err := s.acquireSlot(ctx)
		if err == nil {
			start := time.Now()
			routine, err = s.collab.GenerateRoutine(ctx, draft)
			s.metrics.RecordRequestDuration("generate_routine", time.Since(start))
			release()
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		s.post(func() { s.completeRoutine(gen, draft, routine, err) })
	})
}

func (s *Session) completeRoutine(gen uint64, draft domain.Assessment, routine *domain.DailyRoutine, err error) {
	if s.settleCall(gen, actionAdvance) {
		return
	}
	defer s.endCall()

	if err == nil && routine == nil {
		err = &domain.ErrExternalService{Service: "collaborator", Err: errors.New("empty routine response")}
	}
	if err == nil {
		if wfErr := routine.CheckWellFormed(); wfErr != nil {
			err = &domain.ErrExternalService{Service: "collaborator", Err: fmt.Errorf("malformed routine: %w", wfErr)}
		}
	}
	if err != nil {
		s.fail(actionAdvance, err)
		return
	}

	if err := s.store.CommitRoutine(draft, *routine); err != nil {
		s.violated(actionAdvance, err)
		return
	}
	s.metrics.IncrRoutineGenerated()
	s.nav.RoutineReady()
	s.logger.Info("routine committed",
		zap.Int("am_steps", len(routine.AM)),
		zap.Int("pm_steps", len(routine.PM)),
	)
}

// ============================================================
// Capture
// ============================================================

// SubmitPhoto sends a photo for analysis. The bytes are copied here and the
// copy is the only buffer the collaborator sees. On success the analysis is
// prepended to the history and the view moves to home.
func (s *Session) SubmitPhoto(ctx context.Context, img domain.ImagePayload) (State, error) {
	img.Data = bytes.Clone(img.Data)

	var (
		st  State
		err error
	)
	doErr := s.do(ctx, func() {
		if err = s.nav.Require(domain.ViewCapture, "photo capture"); err != nil {
			return
		}
		var gen uint64
		if gen, err = s.beginCall(actionCapture); err != nil {
			return
		}
		s.dispatchAnalysis(ctx, gen, img)
		st = s.snapshot()
	})
	if doErr != nil {
		return State{}, doErr
	}
	return st, err
}

// CheckCapture reports whether SubmitPhoto would be accepted right now, so
// callers can refuse an upload before reading it. SubmitPhoto checks again.
func (s *Session) CheckCapture(ctx context.Context) error {
	var err error
	doErr := s.do(ctx, func() {
		if err = s.nav.Require(domain.ViewCapture, "photo capture"); err != nil {
			return
		}
		if s.busy || s.inFlight {
			s.metrics.IncrBusyRejection(actionCapture)
			err = &domain.ErrBusy{Action: actionCapture}
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (s *Session) dispatchAnalysis(parent context.Context, gen uint64, img domain.ImagePayload) {
	ctx, cancel := s.taskContext(parent, s.cfg.CollaboratorTimeout)
	s.spawn(func() {
		defer cancel()
		ctx, span := tracer.Start(ctx, "Session.AnalyzeImage")
		defer span.End()
		span.SetAttributes(
			attribute.String("session.id", s.id),
			attribute.String("image.ref", img.Ref),
			attribute.Int("image.bytes", len(img.Data)),
		)

		var result *domain.AnalysisResult
		release, err := s.acquireSlot(ctx)
		if err == nil {
			start := time.Now()
			result, err = s.collab.AnalyzeImage(ctx, img)
			s.metrics.RecordRequestDuration("analyze_image", time.Since(start))
			release()
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		s.post(func() { s.completeAnalysis(gen, img.Ref, result, err) })
	})
}

func (s *Session) completeAnalysis(gen uint64, ref string, result *domain.AnalysisResult, err error) {
	if s.settleCall(gen, actionCapture) {
		return
	}
	defer s.endCall()

	if err == nil && result == nil {
		err = &domain.ErrExternalService{Service: "collaborator", Err: errors.New("empty analysis response")}
	}
	if err != nil {
		s.fail(actionCapture, err)
		return
	}

	now := s.cfg.Now()
	metrics, summary, note := result.Resolve()
	a := domain.SkinAnalysis{
		ID:         ulid.MustNew(ulid.Timestamp(now), s.entropy).String(),
		CapturedAt: now,
		ImageRef:   ref,
		Metrics:    metrics,
		Summary:    summary,
		CoachNote:  note,
	}
	if err := s.store.AppendAnalysis(a); err != nil {
		s.violated(actionCapture, err)
		return
	}
	s.metrics.IncrAnalysisCaptured()
	s.nav.AnalysisSaved()
	s.logger.Info("analysis saved", zap.String("analysis_id", a.ID))
}

// SkipCapture leaves capture for home without an analysis.
func (s *Session) SkipCapture(ctx context.Context) (State, error) {
	var (
		st  State
		err error
	)
	doErr := s.do(ctx, func() {
		if err = s.checkNotBusy(actionSkip); err != nil {
			return
		}
		if err = s.nav.Skip(); err != nil {
			return
		}
		st = s.snapshot()
	})
	if doErr != nil {
		return State{}, doErr
	}
	return st, err
}

// ============================================================
// Navigation
// ============================================================

// Navigate handles a user navigation press. Going to onboarding restarts
// the wizard for a retake; the existing plan stays until a new routine is
// committed.
func (s *Session) Navigate(ctx context.Context, to domain.View) (State, error) {
	var (
		st  State
		err error
	)
	doErr := s.do(ctx, func() {
		if err = s.checkNotBusy(actionNavigate); err != nil {
			return
		}
		if err = s.nav.Press(to, s.store.HasRoutine()); err != nil {
			return
		}
		if to == domain.ViewOnboarding {
			s.wizard.Restart()
		}
		st = s.snapshot()
	})
	if doErr != nil {
		return State{}, doErr
	}
	return st, err
}

// ============================================================
// Routine
// ============================================================

// ToggleStepResult is the outcome of a step toggle.
type ToggleStepResult struct {
	Toggled  bool           `json:"toggled"`
	Progress store.Progress `json:"progress"`
}

// ToggleStep flips a step's completion. A stale id is not an error: it is
// reported as Toggled=false with the store unchanged.
func (s *Session) ToggleStep(ctx context.Context, p domain.Period, id string) (ToggleStepResult, error) {
	var res ToggleStepResult
	err := s.do(ctx, func() {
		res.Toggled = s.store.ToggleStep(p, id)
		res.Progress = s.store.Progress()
		s.metrics.IncrStepToggle(string(p), res.Toggled)
		if !res.Toggled {
			s.logger.Debug("toggle ignored for unknown step", zap.String("period", string(p)), zap.String("step_id", id))
		}
	})
	return res, err
}

// Progress returns the completion metrics.
func (s *Session) Progress(ctx context.Context) (store.Progress, error) {
	var p store.Progress
	err := s.do(ctx, func() { p = s.store.Progress() })
	return p, err
}

// ExportCalendar renders the routine as an iCalendar document using the
// configured zone for wall-clock times.
func (s *Session) ExportCalendar(ctx context.Context) ([]byte, error) {
	var (
		routine domain.DailyRoutine
		ok      bool
	)
	if err := s.do(ctx, func() { routine, ok = s.store.Routine() }); err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "routine", ID: s.id}
	}

	doc := calendar.Encode(routine, s.cfg.Now().In(s.cfg.Location))
	s.metrics.IncrCalendarExport()
	return doc, nil
}
