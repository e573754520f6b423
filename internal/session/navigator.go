package session

import "github.com/elowen/skin-coach-bfa-go/internal/domain"

// Navigator is the view state machine. It starts on onboarding and has no
// terminal state. It is owned by the session loop.
type Navigator struct {
	view domain.View
}

// NewNavigator returns a navigator on the initial view.
func NewNavigator() *Navigator {
	return &Navigator{view: domain.ViewOnboarding}
}

// Current returns the active view.
func (n *Navigator) Current() domain.View {
	return n.view
}

// Press handles a user navigation press. Onboarding is always reachable
// (it starts a retake); every other view needs a Ready plan.
func (n *Navigator) Press(to domain.View, planReady bool) error {
	if to != domain.ViewOnboarding && !planReady {
		return &domain.ErrNavigation{From: n.view, To: to, Reason: "no routine has been generated yet"}
	}
	n.view = to
	return nil
}

// RoutineReady is the forced transition after a routine is committed.
func (n *Navigator) RoutineReady() {
	n.view = domain.ViewCapture
}

// AnalysisSaved is the forced transition after an analysis is appended.
func (n *Navigator) AnalysisSaved() {
	n.view = domain.ViewHome
}

// Skip leaves the capture view without an analysis.
func (n *Navigator) Skip() error {
	if n.view != domain.ViewCapture {
		return &domain.ErrNavigation{From: n.view, To: domain.ViewHome, Reason: "skip is only available on capture"}
	}
	n.view = domain.ViewHome
	return nil
}

// Require fails unless the active view is v.
func (n *Navigator) Require(v domain.View, action string) error {
	if n.view != v {
		return &domain.ErrNavigation{From: n.view, To: v, Reason: action + " is only available on " + string(v)}
	}
	return nil
}

// Reset returns to the initial view.
func (n *Navigator) Reset() {
	n.view = domain.ViewOnboarding
}
