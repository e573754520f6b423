package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/elowen/skin-coach-bfa-go/internal/calendar"
	"github.com/elowen/skin-coach-bfa-go/internal/domain"

	"github.com/spf13/cobra"
)

type exportOptions struct {
	routinePath string
	outPath     string
	at          string
	tz          string
}

func newExportCmd() *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a routine JSON file as an iCalendar document",
		Long: `Reads a routine ({"am": [...], "pm": [...]}) and writes the
calendar document with a daily 08:00 morning and 21:00 evening event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.routinePath, "routine", "", "routine JSON file")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "output .ics file (default stdout)")
	cmd.Flags().StringVar(&opts.at, "at", "", "export instant, RFC 3339 (default now)")
	cmd.Flags().StringVar(&opts.tz, "tz", "", "IANA zone for event start times (default local)")
	_ = cmd.MarkFlagRequired("routine")
	return cmd
}

func runExport(opts exportOptions, stdout io.Writer) error {
	raw, err := os.ReadFile(opts.routinePath)
	if err != nil {
		return fmt.Errorf("read routine: %w", err)
	}
	var routine domain.DailyRoutine
	if err := json.Unmarshal(raw, &routine); err != nil {
		return fmt.Errorf("parse routine: %w", err)
	}

	loc := time.Local
	if opts.tz != "" {
		if loc, err = time.LoadLocation(opts.tz); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	now := time.Now()
	if opts.at != "" {
		if now, err = time.Parse(time.RFC3339, opts.at); err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}

	doc := calendar.Encode(routine, now.In(loc))
	if opts.outPath == "" {
		_, err = stdout.Write(doc)
		return err
	}
	return os.WriteFile(opts.outPath, doc, 0o644)
}
