// Package domain defines the core entities of the Elowen skin coach.
// These models are independent of external services and represent the
// canonical data structures used throughout the engine.
package domain

import "slices"

// ============================================================
// Assessment
// ============================================================

// SkinType is the base skin classification chosen in the first wizard step.
type SkinType string

const (
	SkinOily        SkinType = "Oily"
	SkinDry         SkinType = "Dry"
	SkinCombination SkinType = "Combination"
	SkinNormal      SkinType = "Normal"
	SkinSensitive   SkinType = "Sensitive"
)

// SkinTypes lists the selectable skin types in presentation order.
var SkinTypes = []SkinType{SkinDry, SkinOily, SkinCombination, SkinNormal, SkinSensitive}

// Valid reports whether t is one of the known skin types.
func (t SkinType) Valid() bool {
	return slices.Contains(SkinTypes, t)
}

// Concern and lifestyle catalogues offered by the wizard.
var (
	Concerns = []string{"Acne", "Aging", "Redness", "Dark Spots", "Dryness", "Texture"}

	LifestyleFactors = []string{
		"High Stress", "Poor Sleep", "Sun Exposure",
		"Urban Pollution", "Frequent Travel", "Active Lifestyle",
	}
)

// Sensitivity bounds and wizard defaults.
const (
	MinSensitivity     = 1
	MaxSensitivity     = 5
	DefaultSensitivity = 3
	DefaultSkinType    = SkinNormal
)

// Assessment is the completed onboarding questionnaire.
// Concerns and Lifestyle behave as insertion-ordered sets.
type Assessment struct {
	SkinType       SkinType `json:"skinType"`
	Concerns       []string `json:"concerns"`
	Sensitivity    int      `json:"sensitivity"`
	Lifestyle      []string `json:"lifestyle"`
	CurrentRoutine string   `json:"currentRoutine"`
}

// NewAssessment returns a draft with the wizard defaults.
func NewAssessment() Assessment {
	return Assessment{
		SkinType:    DefaultSkinType,
		Concerns:    []string{},
		Sensitivity: DefaultSensitivity,
		Lifestyle:   []string{},
	}
}

// Clone returns a deep copy so a submitted assessment never aliases the draft.
func (a Assessment) Clone() Assessment {
	out := a
	out.Concerns = append([]string{}, a.Concerns...)
	out.Lifestyle = append([]string{}, a.Lifestyle...)
	return out
}
