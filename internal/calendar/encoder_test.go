package calendar_test

import (
	"strings"
	"testing"
	"time"

	"github.com/elowen/skin-coach-bfa-go/internal/calendar"
	"github.com/elowen/skin-coach-bfa-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRoutine() domain.DailyRoutine {
	return domain.DailyRoutine{
		AM: []domain.RoutineStep{
			{ID: "am1", Name: "Cleanse", Description: "Gentle gel cleanser"},
			{ID: "am2", Name: "SPF", Description: "Broad spectrum, SPF 50; reapply at noon"},
		},
		PM: []domain.RoutineStep{
			{ID: "pm1", Name: "Double cleanse", Description: "Oil then water based"},
			{ID: "pm2", Name: "Retinoid", Description: "Pea-sized amount"},
		},
	}
}

// property returns the unfolded value of every line starting with prefix.
func property(lines []string, prefix string) []string {
	var out []string
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			out = append(out, strings.TrimPrefix(l, prefix))
		}
	}
	return out
}

func TestEncode_Structure(t *testing.T) {
	now := time.Date(2026, 10, 16, 14, 30, 5, 0, time.UTC)
	lines := calendar.Unfold(calendar.Encode(sampleRoutine(), now))

	assert.Equal(t, "BEGIN:VCALENDAR", lines[0])
	assert.Equal(t, "END:VCALENDAR", lines[len(lines)-1])
	assert.Contains(t, lines, "VERSION:2.0")
	assert.Contains(t, lines, "PRODID:-//Elowen Skincare//NONSGML v1.0//EN")
	assert.Len(t, property(lines, "BEGIN:VEVENT"), 2)
	assert.Len(t, property(lines, "END:VEVENT"), 2)
	assert.Equal(t, []string{"FREQ=DAILY", "FREQ=DAILY"}, property(lines, "RRULE:"))
	assert.Empty(t, property(lines, "UNTIL"), "events recur forever")
	assert.Equal(t, []string{"Elowen Morning Routine", "Elowen Evening Routine"}, property(lines, "SUMMARY:"))
}

func TestEncode_Timestamps(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2026, 10, 16, 22, 15, 0, 123_000_000, loc) // 03:15 UTC next day
	lines := calendar.Unfold(calendar.Encode(sampleRoutine(), now))

	assert.Equal(t, []string{"20261017T031500Z", "20261017T031500Z"}, property(lines, "DTSTAMP:"))
	assert.Equal(t,
		[]string{"20261016T080000", "20261016T210000"},
		property(lines, "DTSTART;VALUE=DATE-TIME:"),
		"start uses local wall-clock date and time",
	)

	ms := "1792206900123"
	assert.Equal(t,
		[]string{"morningroutine-" + ms + "@elowen.ai", "eveningroutine-" + ms + "@elowen.ai"},
		property(lines, "UID:"),
	)
}

func TestEncode_DescriptionKeepsStepOrderAndEscapes(t *testing.T) {
	lines := calendar.Unfold(calendar.Encode(sampleRoutine(), time.Unix(0, 0).UTC()))

	desc := property(lines, "DESCRIPTION:")
	require.Len(t, desc, 2)
	assert.Equal(t, `Cleanse: Gentle gel cleanser\nSPF: Broad spectrum\, SPF 50\; reapply at noon`, desc[0])
	assert.Equal(t, `Double cleanse: Oil then water based\nRetinoid: Pea-sized amount`, desc[1])
}

func TestEncode_UsesCRLFAndFoldsLongLines(t *testing.T) {
	r := sampleRoutine()
	r.AM[0].Description = strings.Repeat("hydrating ceramide émulsion ", 12)

	doc := string(calendar.Encode(r, time.Unix(0, 0).UTC()))

	assert.NotContains(t, strings.ReplaceAll(doc, "\r\n", ""), "\n", "only CRLF line breaks")
	for _, line := range strings.Split(strings.TrimSuffix(doc, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 75, "line too long: %q", line)
		assert.True(t, strings.ToValidUTF8(line, "?") == line, "fold split a rune: %q", line)
	}

	desc := property(calendar.Unfold([]byte(doc)), "DESCRIPTION:")
	assert.True(t, strings.HasPrefix(desc[0], "Cleanse: "+r.AM[0].Description))
}

func TestEncode_DiffersOnlyInTimestampFields(t *testing.T) {
	r := sampleRoutine()
	a := calendar.Unfold(calendar.Encode(r, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)))
	b := calendar.Unfold(calendar.Encode(r, time.Date(2026, 3, 9, 17, 45, 12, 0, time.UTC)))

	require.Equal(t, len(a), len(b))
	timestampPrefixes := []string{"UID:", "DTSTAMP:", "DTSTART;"}
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		derived := false
		for _, p := range timestampPrefixes {
			if strings.HasPrefix(a[i], p) && strings.HasPrefix(b[i], p) {
				derived = true
			}
		}
		assert.True(t, derived, "line %d differs outside timestamp fields: %q vs %q", i, a[i], b[i])
	}
	assert.Equal(t, property(a, "DESCRIPTION:"), property(b, "DESCRIPTION:"))
	assert.NotEqual(t, property(a, "UID:"), property(b, "UID:"))
}

func TestEncode_Deterministic(t *testing.T) {
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, calendar.Encode(sampleRoutine(), now), calendar.Encode(sampleRoutine(), now))
}

func TestEncode_MorningEventMentionsCleanse(t *testing.T) {
	r := domain.DailyRoutine{
		AM: []domain.RoutineStep{{ID: "1", Name: "Cleanse", Description: "Lukewarm water"}},
		PM: []domain.RoutineStep{{ID: "2", Name: "Moisturize", Description: "Rich cream"}},
	}
	doc := string(calendar.Encode(r, time.Now()))

	assert.Contains(t, doc, "SUMMARY:Elowen Morning Routine")
	lines := calendar.Unfold([]byte(doc))
	assert.Contains(t, property(lines, "DESCRIPTION:")[0], "Cleanse")
}

func TestEncode_CarriageReturnsBecomeEscapedNewlines(t *testing.T) {
	r := sampleRoutine()
	r.AM = []domain.RoutineStep{{ID: "am1", Name: "Serum", Description: "Pat in\r\nthen wait\rone minute"}}

	desc := property(calendar.Unfold(calendar.Encode(r, time.Unix(0, 0).UTC())), "DESCRIPTION:")
	require.Len(t, desc, 2)
	assert.Equal(t, `Serum: Pat in\nthen wait\none minute`, desc[0])
	assert.Equal(t, "Serum: Pat in\nthen wait\none minute", calendar.Description(r.AM))
}

func TestDescription_EmptyHalf(t *testing.T) {
	assert.Equal(t, "", calendar.Description(nil))
}
