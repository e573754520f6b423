// Command elowen runs the Elowen skin coach API and its offline tools.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata" // CALENDAR_TIMEZONE and --tz in images without zoneinfo

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "elowen",
		Short:         "Elowen skin coach engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newExportCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "elowen:", err)
		os.Exit(1)
	}
}
