// Package wizard implements the three-step onboarding assessment.
//
//	Step 0: skin type (single choice, default Normal)
//	Step 1: concerns (multi choice, zero or more)
//	Step 2: sensitivity slider (1-5, default 3) and lifestyle factors
//
// The wizard only builds the draft. Submitting it to the collaborator is the
// owning session's job: Advance on the last step hands back a copy of the
// draft and stays where it is, so a failed call can be retried by advancing
// again.
package wizard

import (
	"slices"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"
)

// LastStep is the index of the final wizard step.
const LastStep = 2

// Wizard is the assessment state machine. It is not safe for concurrent use.
type Wizard struct {
	step  int
	draft domain.Assessment
}

// State is a read-only view of the wizard.
type State struct {
	Step  int               `json:"step"`
	Last  bool              `json:"last"`
	Draft domain.Assessment `json:"draft"`
}

// New returns a wizard on step 0 with the default draft.
func New() *Wizard {
	return &Wizard{draft: domain.NewAssessment()}
}

// Restart rewinds to step 0 with a fresh draft.
func (w *Wizard) Restart() {
	w.step = 0
	w.draft = domain.NewAssessment()
}

// State returns a copy of the current step and draft.
func (w *Wizard) State() State {
	return State{Step: w.step, Last: w.step == LastStep, Draft: w.draft.Clone()}
}

// SelectSkinType sets the skin type. Unknown values are ignored.
func (w *Wizard) SelectSkinType(t domain.SkinType) {
	if t.Valid() {
		w.draft.SkinType = t
	}
}

// ToggleConcern adds or removes c from the concern set.
func (w *Wizard) ToggleConcern(c string) {
	w.draft.Concerns = toggle(w.draft.Concerns, c)
}

// ToggleLifestyleFactor adds or removes f from the lifestyle set.
func (w *Wizard) ToggleLifestyleFactor(f string) {
	w.draft.Lifestyle = toggle(w.draft.Lifestyle, f)
}

// SetSensitivity sets the slider value, clamped to [1,5].
func (w *Wizard) SetSensitivity(n int) {
	w.draft.Sensitivity = min(max(n, domain.MinSensitivity), domain.MaxSensitivity)
}

// SetCurrentRoutine records the free-text description of the user's routine.
func (w *Wizard) SetCurrentRoutine(s string) {
	w.draft.CurrentRoutine = s
}

// Advance moves to the next step. On the last step it returns a copy of the
// draft and true, meaning the caller should submit it.
func (w *Wizard) Advance() (domain.Assessment, bool) {
	if w.step < LastStep {
		w.step++
		return domain.Assessment{}, false
	}
	return w.draft.Clone(), true
}

// Retreat moves back one step; no-op on step 0.
func (w *Wizard) Retreat() {
	if w.step > 0 {
		w.step--
	}
}

func toggle(set []string, v string) []string {
	if v == "" {
		return set
	}
	if i := slices.Index(set, v); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1)
	}
	return append(slices.Clone(set), v)
}
