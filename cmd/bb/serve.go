package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/beadboard/beadboard/internal/config"
	"github.com/beadboard/beadboard/internal/dashboard"
	"github.com/beadboard/beadboard/internal/logging"
	"github.com/beadboard/beadboard/internal/notify"
	"github.com/beadboard/beadboard/internal/notify/discord"
	"github.com/beadboard/beadboard/internal/notify/slack"
	"github.com/beadboard/beadboard/internal/prcheck"
	"github.com/beadboard/beadboard/internal/store"
	"github.com/beadboard/beadboard/internal/stream"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		Long:  "Serves the board's JSON API and SSE stream over the configured beads store, with the staleness scanner and store-file watcher running alongside.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beadboard.yaml", "path to beadboard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, st, err := openStore(configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, term.IsTerminal(int(os.Stdout.Fd())))
	log := logging.Component("serve")

	if port <= 0 {
		port = cfg.Dashboard.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	mgr := stream.NewManager(st, stream.Options{
		PollInterval:      cfg.PollInterval(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
		SweepInterval:     cfg.SweepInterval(),
		StaleAfter:        cfg.StaleAfter(),
		EventBatchLimit:   cfg.Stream.EventBatchLimit,
	})
	if err := mgr.Start(); err != nil {
		return err
	}
	defer mgr.Stop()

	// Staleness scan on the configured schedule, alerts fanned out to any
	// configured chat adapters.
	router := notify.NewRouter(buildAdapters(cfg, log)...)
	thresholds := thresholdsFromConfig(cfg)
	scanner := cron.New()
	_, err = scanner.AddFunc(cfg.Staleness.ScanCron, func() {
		findings, err := st.StaleFindings(ctx, thresholds)
		if err != nil {
			log.Warn().Err(err).Msg("staleness scan failed")
			return
		}
		if len(findings) > 0 {
			log.Info().Int("count", len(findings)).Msg("stale beads flagged")
		}
		router.Publish(ctx, findings)
	})
	if err != nil {
		return fmt.Errorf("schedule staleness scan: %w", err)
	}
	scanner.Start()
	defer scanner.Stop()

	g, ctx := errgroup.WithContext(ctx)

	// The bd CLI can replace the sqlite file wholesale (checkout, sync);
	// pollers watching the old inode would go quiet without this.
	if cfg.Store.Driver == "sqlite" {
		watcher, err := store.WatchFile(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("watch store file: %w", err)
		}
		g.Go(func() error {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return nil
				case _, ok := <-watcher.Changes():
					if !ok {
						return nil
					}
					log.Info().Str("path", cfg.Store.Path).Msg("store file replaced, refreshing subscriptions")
					mgr.Invalidate()
				}
			}
		})
	}

	g.Go(func() error {
		return dashboard.Start(ctx, dashboard.StartOpts{
			Store:      st,
			Manager:    mgr,
			Checker:    buildChecker(cfg),
			Thresholds: thresholds,
			Port:       port,
			RetryMS:    cfg.Dashboard.RetryMS,
			Out:        cmd.OutOrStdout(),
		})
	})

	return g.Wait()
}

// buildAdapters creates the alert adapters that have credentials
// configured. A misconfigured adapter is logged and skipped rather than
// failing startup; alerts are best effort.
func buildAdapters(cfg *config.Config, log zerolog.Logger) []notify.Adapter {
	var adapters []notify.Adapter
	if cfg.Notify.Slack.BotToken != "" {
		a, err := slack.New(slack.AdapterOpts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.Channel,
		})
		if err != nil {
			log.Warn().Err(err).Msg("slack adapter disabled")
		} else {
			adapters = append(adapters, a)
		}
	}
	if cfg.Notify.Discord.Token != "" {
		a, err := discord.New(discord.AdapterOpts{
			BotToken:  cfg.Notify.Discord.Token,
			ChannelID: cfg.Notify.Discord.Channel,
		})
		if err != nil {
			log.Warn().Err(err).Msg("discord adapter disabled")
		} else {
			adapters = append(adapters, a)
		}
	}
	return adapters
}

// buildChecker enables PR lookups. An empty token still works against
// github.com, just rate limited harder.
func buildChecker(cfg *config.Config) *prcheck.Checker {
	return prcheck.NewChecker(cfg.GitHub.Token)
}
