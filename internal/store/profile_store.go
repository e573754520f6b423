// Package store holds the session's UserProfile aggregate.
//
// The store is the single source of truth for the assessment, the routine and
// the analysis history. Every write is atomic: a method either applies all of
// its changes or returns an error with the store untouched. The store is not
// goroutine-safe; it is owned by the session event loop.
package store

import (
	"fmt"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"
)

// ProfileStore owns one UserProfile.
type ProfileStore struct {
	displayName string
	subscribed  bool

	// nil until the first successful routine commit
	plan     *domain.Ready
	analyses []domain.SkinAnalysis
	ids      map[string]struct{}
}

// New creates a store with empty defaults.
func New(displayName string) *ProfileStore {
	return &ProfileStore{
		displayName: displayName,
		ids:         make(map[string]struct{}),
	}
}

// Reset returns the store to its initial state, keeping the display name.
func (s *ProfileStore) Reset() {
	s.plan = nil
	s.analyses = nil
	s.subscribed = false
	s.ids = make(map[string]struct{})
}

// CommitRoutine sets the assessment and its routine together. Completion flags
// start cleared. A routine that breaks the id contract is rejected.
func (s *ProfileStore) CommitRoutine(a domain.Assessment, r domain.DailyRoutine) error {
	if !a.SkinType.Valid() {
		return &domain.ErrInvariantViolation{
			Invariant: "commit-routine",
			Detail:    fmt.Sprintf("assessment has unknown skin type %q", a.SkinType),
		}
	}
	if err := r.CheckWellFormed(); err != nil {
		return &domain.ErrInvariantViolation{Invariant: "commit-routine", Detail: err.Error()}
	}

	routine := r.Clone()
	for i := range routine.AM {
		routine.AM[i].IsCompleted = false
	}
	for i := range routine.PM {
		routine.PM[i].IsCompleted = false
	}

	s.plan = &domain.Ready{Assessment: a.Clone(), Routine: routine}
	return nil
}

// AppendAnalysis prepends a to the history. A duplicate id is a programming error.
func (s *ProfileStore) AppendAnalysis(a domain.SkinAnalysis) error {
	if a.ID == "" {
		return &domain.ErrInvariantViolation{Invariant: "append-analysis", Detail: "analysis has no id"}
	}
	if _, dup := s.ids[a.ID]; dup {
		return &domain.ErrInvariantViolation{
			Invariant: "append-analysis",
			Detail:    fmt.Sprintf("duplicate analysis id %q", a.ID),
		}
	}

	next := make([]domain.SkinAnalysis, 0, len(s.analyses)+1)
	next = append(next, a)
	next = append(next, s.analyses...)
	s.analyses = next
	s.ids[a.ID] = struct{}{}
	return nil
}

// ToggleStep flips IsCompleted for the step with id in period p. It reports
// whether a step was found; an unknown id (for example a stale id after the
// routine was regenerated) leaves the store unchanged.
func (s *ProfileStore) ToggleStep(p domain.Period, id string) bool {
	if s.plan == nil {
		return false
	}
	steps := s.plan.Routine.AM
	if p == domain.PeriodPM {
		steps = s.plan.Routine.PM
	}
	for i := range steps {
		if steps[i].ID == id {
			steps[i].IsCompleted = !steps[i].IsCompleted
			return true
		}
	}
	return false
}

// HasRoutine reports whether the plan is Ready.
func (s *ProfileStore) HasRoutine() bool {
	return s.plan != nil
}

// CompletedCount is the number of completed steps in p.
func (s *ProfileStore) CompletedCount(p domain.Period) int {
	if s.plan == nil {
		return 0
	}
	n := 0
	for _, st := range s.plan.Routine.Steps(p) {
		if st.IsCompleted {
			n++
		}
	}
	return n
}

// TotalSteps is the number of steps in p.
func (s *ProfileStore) TotalSteps(p domain.Period) int {
	if s.plan == nil {
		return 0
	}
	return len(s.plan.Routine.Steps(p))
}

// ProgressRatio is completed/total over both halves, or 0 when there are no steps.
func (s *ProfileStore) ProgressRatio() float64 {
	total := s.TotalSteps(domain.PeriodAM) + s.TotalSteps(domain.PeriodPM)
	if total == 0 {
		return 0
	}
	done := s.CompletedCount(domain.PeriodAM) + s.CompletedCount(domain.PeriodPM)
	return float64(done) / float64(total)
}

// Progress summarises completion for both halves.
type Progress struct {
	CompletedAM int     `json:"completedAm"`
	TotalAM     int     `json:"totalAm"`
	CompletedPM int     `json:"completedPm"`
	TotalPM     int     `json:"totalPm"`
	Ratio       float64 `json:"ratio"`
}

// Progress returns the derived completion metrics.
func (s *ProfileStore) Progress() Progress {
	return Progress{
		CompletedAM: s.CompletedCount(domain.PeriodAM),
		TotalAM:     s.TotalSteps(domain.PeriodAM),
		CompletedPM: s.CompletedCount(domain.PeriodPM),
		TotalPM:     s.TotalSteps(domain.PeriodPM),
		Ratio:       s.ProgressRatio(),
	}
}

// Routine returns a copy of the routine if the plan is Ready.
func (s *ProfileStore) Routine() (domain.DailyRoutine, bool) {
	if s.plan == nil {
		return domain.DailyRoutine{}, false
	}
	return s.plan.Routine.Clone(), true
}

// LatestAnalysis returns the newest analysis, if any.
func (s *ProfileStore) LatestAnalysis() (domain.SkinAnalysis, bool) {
	if len(s.analyses) == 0 {
		return domain.SkinAnalysis{}, false
	}
	return s.analyses[0], true
}

// Profile returns a deep copy of the aggregate.
func (s *ProfileStore) Profile() domain.UserProfile {
	p := domain.UserProfile{
		DisplayName: s.displayName,
		Plan:        domain.NotStarted{},
		Analyses:    append([]domain.SkinAnalysis{}, s.analyses...),
		Subscribed:  s.subscribed,
	}
	if s.plan != nil {
		p.Plan = domain.Ready{
			Assessment: s.plan.Assessment.Clone(),
			Routine:    s.plan.Routine.Clone(),
		}
	}
	return p
}
