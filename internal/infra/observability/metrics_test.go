package observability_test

import (
	"testing"

	"github.com/elowen/skin-coach-bfa-go/internal/infra/observability"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_CoachSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.IncrCollaboratorCall("generate_routine")
	m.IncrCollaboratorCall("analyze_image")
	m.IncrCollaboratorCall("analyze_image")
	m.IncrCollaboratorCall("coach")
	m.IncrCollaboratorError("analyze_image")
	m.RecordTokens(300, 100)
	m.IncrBusyRejection("advance_wizard")
	m.IncrBusyRejection("submit_photo")
	m.IncrRoutineGenerated()
	m.IncrAnalysisCaptured()
	m.IncrCalendarExport()
	m.IncrSessionLookup(true)
	m.IncrSessionLookup(true)
	m.IncrSessionLookup(true)
	m.IncrSessionLookup(false)

	snap := m.GetCoachSnapshot()

	assert.EqualValues(t, 1, snap.ActiveSessions)
	assert.EqualValues(t, 4, snap.CollaboratorCalls)
	assert.EqualValues(t, 1, snap.CollaboratorErrors)
	assert.InDelta(t, 0.25, snap.ErrorRate, 1e-9)
	assert.InDelta(t, 100.0, snap.AvgTokensPerCall, 1e-9)
	assert.EqualValues(t, 2, snap.BusyRejections)
	assert.EqualValues(t, 1, snap.RoutinesGenerated)
	assert.EqualValues(t, 1, snap.AnalysesCaptured)
	assert.EqualValues(t, 1, snap.CalendarExports)
	assert.InDelta(t, 0.75, snap.SessionLookupHitRate, 1e-9)
	assert.Equal(t, "all_time", snap.Period)
}

func TestMetrics_EmptySnapshotHasNoNaN(t *testing.T) {
	snap := observability.NewMetrics().GetCoachSnapshot()

	assert.Zero(t, snap.ErrorRate)
	assert.Zero(t, snap.AvgTokensPerCall)
	assert.Zero(t, snap.SessionLookupHitRate)
}

func TestMetrics_RegistryGathers(t *testing.T) {
	m := observability.NewMetrics()
	m.IncrStepToggle("am", true)
	m.IncrStepToggle("pm", false)
	m.IncrChatMessage("user")

	families, err := m.Registry.Gather()
	assert.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["elowen_step_toggles_total"])
	assert.True(t, names["elowen_chat_messages_total"])
}
