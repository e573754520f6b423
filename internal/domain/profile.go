package domain

import "encoding/json"

// ============================================================
// Profile (root aggregate)
// ============================================================

// Plan is the assessment/routine pair. It is either NotStarted or Ready;
// an assessment never exists without its routine and vice versa.
type Plan interface {
	planState() string
}

// NotStarted means no assessment has been processed yet.
type NotStarted struct{}

func (NotStarted) planState() string { return "not_started" }

// Ready carries the latest processed assessment and the routine derived from it.
type Ready struct {
	Assessment Assessment
	Routine    DailyRoutine
}

func (Ready) planState() string { return "ready" }

// PlanStatus returns the wire name of p's variant.
func PlanStatus(p Plan) string {
	if p == nil {
		return NotStarted{}.planState()
	}
	return p.planState()
}

// UserProfile is the session's root aggregate. Analyses are newest first.
type UserProfile struct {
	DisplayName string
	Plan        Plan
	Analyses    []SkinAnalysis
	Subscribed  bool
}

// ReadyPlan returns the Ready variant if the plan has one.
func (p *UserProfile) ReadyPlan() (Ready, bool) {
	r, ok := p.Plan.(Ready)
	return r, ok
}

type profileJSON struct {
	DisplayName string         `json:"displayName"`
	PlanStatus  string         `json:"planStatus"`
	Assessment  *Assessment    `json:"assessment,omitempty"`
	Routine     *DailyRoutine  `json:"routine,omitempty"`
	Analyses    []SkinAnalysis `json:"analyses"`
	Subscribed  bool           `json:"subscribed"`
}

// MarshalJSON flattens the plan variant for API clients.
func (p UserProfile) MarshalJSON() ([]byte, error) {
	out := profileJSON{
		DisplayName: p.DisplayName,
		PlanStatus:  PlanStatus(p.Plan),
		Analyses:    p.Analyses,
		Subscribed:  p.Subscribed,
	}
	if out.Analyses == nil {
		out.Analyses = []SkinAnalysis{}
	}
	if r, ok := p.Plan.(Ready); ok {
		out.Assessment = &r.Assessment
		out.Routine = &r.Routine
	}
	return json.Marshal(out)
}
