// Package calendar serializes a routine into an iCalendar (RFC 5545) document
// with one daily recurring event per routine half.
package calendar

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"

	ics "github.com/arran4/golang-ical"
)

// Export file metadata.
const (
	MIMEType = "text/calendar"
	FileName = "elowen-skincare-routine.ics"

	ProdID    = "-//Elowen Skincare//NONSGML v1.0//EN"
	UIDDomain = "elowen.ai"
)

const (
	// floating local time: no zone suffix, read in the viewer's zone
	floatingDateTime = "20060102T150405"
	crlf             = "\r\n"
	foldPrefix       = " "
)

// event is one routine half scheduled at a fixed local wall-clock time.
type event struct {
	title  string
	hour   int
	period domain.Period
}

var events = []event{
	{title: "Morning Routine", hour: 8, period: domain.PeriodAM},
	{title: "Evening Routine", hour: 21, period: domain.PeriodPM},
}

// Encode renders r as a calendar document. now drives DTSTAMP, the UID suffix
// and the DTSTART date; the wall-clock start times are read in now's location.
// Everything else depends only on r.
func Encode(r domain.DailyRoutine, now time.Time) []byte {
	cal := ics.NewCalendar()
	cal.SetProductId(ProdID)
	cal.SetCalscale("GREGORIAN")

	for _, ev := range events {
		start := time.Date(now.Year(), now.Month(), now.Day(), ev.hour, 0, 0, 0, now.Location())

		vevent := cal.AddEvent(uid(ev.title, now))
		vevent.SetDtStampTime(now)
		vevent.SetProperty(ics.ComponentPropertyDtStart, start.Format(floatingDateTime),
			ics.WithValue(string(ics.ValueDataTypeDateTime)))
		vevent.AddRrule("FREQ=DAILY")
		vevent.SetSummary("Elowen " + ev.title)
		vevent.SetDescription(Description(r.Steps(ev.period)))
	}

	return []byte(cal.Serialize())
}

// Description joins "{name}: {description}" for every step, in stored order.
// Carriage returns inside step text are normalized to plain line breaks.
func Description(steps []domain.RoutineStep) string {
	lines := make([]string, len(steps))
	for i, s := range steps {
		lines[i] = s.Name + ": " + s.Description
	}
	return newlines.Replace(strings.Join(lines, "\n"))
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// uid combines the normalized title with the encoding instant in milliseconds.
func uid(title string, now time.Time) string {
	norm := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, title)
	return norm + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "@" + UIDDomain
}

// Unfold reverses line folding and splits a document into content lines.
func Unfold(doc []byte) []string {
	s := strings.ReplaceAll(string(doc), crlf+foldPrefix, "")
	s = strings.TrimSuffix(s, crlf)
	return strings.Split(s, crlf)
}
