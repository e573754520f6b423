package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routineFixture = `{
  "am": [{"id": "a1", "name": "Cleanse", "description": "Gentle gel"}],
  "pm": [{"id": "p1", "name": "Moisturize", "description": "Barrier cream"}]
}`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExport_Stdout(t *testing.T) {
	dir := t.TempDir()
	routine := filepath.Join(dir, "routine.json")
	require.NoError(t, os.WriteFile(routine, []byte(routineFixture), 0o600))

	out, err := runCLI(t, "export", "--routine", routine, "--at", "2026-10-16T13:15:00Z", "--tz", "America/New_York")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, out, "DTSTAMP:20261016T131500Z")
	assert.Contains(t, out, "DTSTART;VALUE=DATE-TIME:20261016T080000")
	assert.Contains(t, out, "DTSTART;VALUE=DATE-TIME:20261016T210000")
	assert.Contains(t, out, "DESCRIPTION:Cleanse: Gentle gel")
}

func TestExport_File(t *testing.T) {
	dir := t.TempDir()
	routine := filepath.Join(dir, "routine.json")
	out := filepath.Join(dir, "routine.ics")
	require.NoError(t, os.WriteFile(routine, []byte(routineFixture), 0o600))

	_, err := runCLI(t, "export", "--routine", routine, "--out", out, "--at", "2026-10-16T13:15:00Z", "--tz", "UTC")
	require.NoError(t, err)

	doc, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "END:VCALENDAR\r\n")
}

func TestExport_Errors(t *testing.T) {
	dir := t.TempDir()
	routine := filepath.Join(dir, "routine.json")
	require.NoError(t, os.WriteFile(routine, []byte(routineFixture), 0o600))
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"am": [`), 0o600))

	tests := []struct {
		name string
		args []string
	}{
		{"missing flag", []string{"export"}},
		{"missing file", []string{"export", "--routine", filepath.Join(dir, "nope.json")}},
		{"bad json", []string{"export", "--routine", broken}},
		{"bad zone", []string{"export", "--routine", routine, "--tz", "Nowhere/Town"}},
		{"bad instant", []string{"export", "--routine", routine, "--at", "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
