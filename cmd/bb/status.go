package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/beadboard/beadboard/internal/config"
	"github.com/beadboard/beadboard/internal/staleness"
	"github.com/beadboard/beadboard/internal/store"
)

func newStatusCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show board status",
		Long:  "Displays bead counts per status, the change counter, and any stale beads. Use --watch for auto-refresh.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath, watch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beadboard.yaml", "path to beadboard config file")
	cmd.Flags().BoolVar(&watch, "watch", false, "auto-refresh every 5 seconds")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string, watch bool) error {
	cfg, st, err := openStore(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	for {
		if watch {
			// Clear screen.
			fmt.Fprint(out, "\033[2J\033[H")
		}

		if err := printStatus(ctx, out, cfg, st); err != nil {
			return err
		}

		if !watch {
			return nil
		}
		time.Sleep(5 * time.Second)
	}
}

func printStatus(ctx context.Context, out io.Writer, cfg *config.Config, st *store.Store) error {
	counts, err := st.StatusCounts(ctx)
	if err != nil {
		return err
	}
	version, err := st.Version(ctx)
	if err != nil {
		return err
	}
	findings, err := st.StaleFindings(ctx, thresholdsFromConfig(cfg))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Beadboard Status")
	fmt.Fprintln(out, "================")
	fmt.Fprintf(out, "Change counter: %d\n\n", version)

	total := 0
	for _, c := range counts {
		fmt.Fprintf(out, "  %-12s %4d\n", c.Status, c.Count)
		total += c.Count
	}
	fmt.Fprintf(out, "  %-12s %4d\n", "total", total)

	if len(findings) > 0 {
		fmt.Fprintf(out, "\nStale beads (%d):\n", len(findings))
		for _, f := range findings {
			marker := "!"
			if f.Level == staleness.LevelCritical {
				marker = "!!"
			}
			fmt.Fprintf(out, "  %-2s %s %q in %s\n", marker, f.Bead.ID, f.Bead.Title, f.Bead.Status)
		}
	}
	return nil
}
