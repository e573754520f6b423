package domain

import "time"

// ============================================================
// Skin analysis
// ============================================================

// SkinMetrics are the four photo scores, each in [0,100].
type SkinMetrics struct {
	Hydration float64 `json:"hydration"`
	Clarity   float64 `json:"clarity"`
	Texture   float64 `json:"texture"`
	Redness   float64 `json:"redness"`
}

// Defaults applied when the collaborator omits a field.
var (
	DefaultMetrics = SkinMetrics{Hydration: 60, Clarity: 70, Texture: 65, Redness: 40}

	DefaultSummary   = "Healthy baseline captured."
	DefaultCoachNote = "Great first photo! Consistency is key."
)

// SkinAnalysis is one immutable photo analysis.
type SkinAnalysis struct {
	ID         string      `json:"id"`
	CapturedAt time.Time   `json:"capturedAt"`
	ImageRef   string      `json:"imageRef"`
	Metrics    SkinMetrics `json:"metrics"`
	Summary    string      `json:"summary"`
	CoachNote  string      `json:"coachNote"`
}

// ImagePayload is a captured photo handed to the collaborator.
type ImagePayload struct {
	Data     []byte
	MIMEType string
	Ref      string
}

// PartialMetrics is the collaborator's view of metrics, where any field may be absent.
type PartialMetrics struct {
	Hydration *float64 `json:"hydration,omitempty"`
	Clarity   *float64 `json:"clarity,omitempty"`
	Texture   *float64 `json:"texture,omitempty"`
	Redness   *float64 `json:"redness,omitempty"`
}

// AnalysisResult is the raw collaborator response for a photo.
type AnalysisResult struct {
	Metrics   *PartialMetrics `json:"metrics,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	CoachNote string          `json:"coachNote,omitempty"`
}

// Resolve fills missing fields with the documented defaults and clamps
// present scores into [0,100].
func (r *AnalysisResult) Resolve() (SkinMetrics, string, string) {
	m := DefaultMetrics
	if r.Metrics != nil {
		pick(&m.Hydration, r.Metrics.Hydration)
		pick(&m.Clarity, r.Metrics.Clarity)
		pick(&m.Texture, r.Metrics.Texture)
		pick(&m.Redness, r.Metrics.Redness)
	}

	summary, note := r.Summary, r.CoachNote
	if summary == "" {
		summary = DefaultSummary
	}
	if note == "" {
		note = DefaultCoachNote
	}
	return m, summary, note
}

func pick(dst *float64, v *float64) {
	if v == nil {
		return
	}
	*dst = min(max(*v, 0), 100)
}
