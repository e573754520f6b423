package domain

import "fmt"

// ============================================================
// Routine
// ============================================================

// Period identifies a routine half.
type Period string

const (
	PeriodAM Period = "am"
	PeriodPM Period = "pm"
)

// ParsePeriod validates a raw period string.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodAM, PeriodPM:
		return Period(s), nil
	}
	return "", &ErrValidation{Field: "period", Message: fmt.Sprintf("unknown period %q", s)}
}

// Known step categories. The collaborator returns free-form strings, so a
// step's Category is display text and may hold values outside this list.
const (
	CategoryCleanser    = "cleanser"
	CategoryToner       = "toner"
	CategorySerum       = "serum"
	CategoryMoisturizer = "moisturizer"
	CategorySPF         = "spf"
	CategoryTreatment   = "treatment"
)

// Recommendation is a product suggestion attached to a routine step.
// HydrationImpact is untrusted display text ("High", "Medium", "Low" in practice).
type Recommendation struct {
	ProductName     string `json:"productName"`
	Description     string `json:"description"`
	ReferenceURL    string `json:"referenceUrl"`
	HydrationImpact string `json:"hydrationImpact"`
}

// RoutineStep is one step of a routine half. IsCompleted is the only field
// mutated after creation.
type RoutineStep struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Category        string           `json:"category"`
	Description     string           `json:"description"`
	Rationale       string           `json:"rationale"`
	ProductGuidance string           `json:"productGuidance"`
	IsCompleted     bool             `json:"isCompleted"`
	Recommendations []Recommendation `json:"recommendations"`
}

// DailyRoutine holds both halves in execution order.
type DailyRoutine struct {
	AM []RoutineStep `json:"am"`
	PM []RoutineStep `json:"pm"`
}

// Steps returns the half for p.
func (r *DailyRoutine) Steps(p Period) []RoutineStep {
	if p == PeriodPM {
		return r.PM
	}
	return r.AM
}

// Clone deep-copies the routine, preserving order.
func (r DailyRoutine) Clone() DailyRoutine {
	return DailyRoutine{AM: cloneSteps(r.AM), PM: cloneSteps(r.PM)}
}

func cloneSteps(in []RoutineStep) []RoutineStep {
	out := make([]RoutineStep, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Recommendations = append([]Recommendation{}, s.Recommendations...)
	}
	return out
}

// CheckWellFormed verifies the collaborator contract: both halves non-empty,
// every step carries a non-empty id unique within its half.
func (r *DailyRoutine) CheckWellFormed() error {
	for _, p := range []Period{PeriodAM, PeriodPM} {
		steps := r.Steps(p)
		if len(steps) == 0 {
			return fmt.Errorf("%s routine is empty", p)
		}
		seen := make(map[string]struct{}, len(steps))
		for i, s := range steps {
			if s.ID == "" {
				return fmt.Errorf("%s step %d has no id", p, i)
			}
			if _, dup := seen[s.ID]; dup {
				return fmt.Errorf("%s step id %q is duplicated", p, s.ID)
			}
			seen[s.ID] = struct{}{}
		}
	}
	return nil
}

// RoutineTip is a static guidance card shown alongside the routine.
type RoutineTip struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// RoutineTips are the protocol notes shown under the routine.
var RoutineTips = []RoutineTip{
	{
		Title: "Patch test",
		Body:  "Prior to full integration, apply actives to a controlled zone for 48 hours to mitigate widespread inflammatory responses.",
	},
	{
		Title: "Layering",
		Body:  "Follow a low-to-high viscosity path: start with aqueous solutions and end with occlusive barriers to maximize transdermal absorption.",
	},
	{
		Title: "Daily SPF",
		Body:  "Broad-spectrum UV filters are critical even in indirect light settings to prevent oxidative stress and hyperpigmentation progression.",
	},
}
