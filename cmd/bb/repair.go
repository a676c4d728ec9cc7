package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/beadboard/beadboard/internal/repair"
)

func newRepairCmd() *cobra.Command {
	var (
		configPath string
		apply      bool
	)

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Scan the store for malformed records",
		Long:  "Scans every record for repairable defects: legacy status names, timestamps without a timezone offset, assignees missing the @ prefix, and missing titles. Dry run by default; use --apply to persist the fixes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(cmd, configPath, apply)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beadboard.yaml", "path to beadboard config file")
	cmd.Flags().BoolVar(&apply, "apply", false, "persist repairs instead of reporting them")
	return cmd
}

func runRepair(cmd *cobra.Command, configPath string, apply bool) error {
	_, st, err := openStore(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var summary repair.Summary
	if apply {
		summary, err = st.ApplyRepairs(ctx)
	} else {
		summary, err = st.ScanRepairs(ctx)
	}
	if err != nil {
		return err
	}

	printRepairSummary(cmd.OutOrStdout(), summary, apply)

	if len(summary.Errors) > 0 {
		return fmt.Errorf("%d record(s) could not be processed", len(summary.Errors))
	}
	return nil
}

func printRepairSummary(out io.Writer, summary repair.Summary, applied bool) {
	// Pipe-friendly: one record per line when not on a terminal.
	tty := term.IsTerminal(int(os.Stdout.Fd()))

	if tty {
		fmt.Fprintf(out, "Scanned %d records\n\n", summary.TotalIssuesScanned)
	}

	for _, r := range summary.Repairs {
		if tty {
			fmt.Fprintf(out, "  %s  %-12s %q → %q\n      %s\n", r.IssueID, r.Field, r.OldValue, r.NewValue, r.Description)
		} else {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.IssueID, r.Field, r.OldValue, r.NewValue)
		}
	}
	for _, e := range summary.Errors {
		fmt.Fprintf(out, "ERROR: %s\n", e)
	}

	verb := "need repair"
	if applied {
		verb = "repaired"
	}
	if tty {
		fmt.Fprintf(out, "\n%d of %d records %s\n", summary.IssuesRepaired, summary.TotalIssuesScanned, verb)
	}
	if !applied && summary.IssuesRepaired > 0 && tty {
		fmt.Fprintln(out, "Run again with --apply to persist these fixes.")
	}
}
