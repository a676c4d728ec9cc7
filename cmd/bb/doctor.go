package main

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/beadboard/beadboard/internal/config"
	"github.com/beadboard/beadboard/internal/db"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and store health",
		Long:  "Runs diagnostic checks: config, bd binary, store connection, schema tables, the change counter, and alert credentials.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beadboard.yaml", "path to beadboard config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Beadboard Doctor")
	fmt.Fprintln(out, "================")

	var results []checkResult

	cfg, cfgResult := checkConfig(configPath)
	results = append(results, cfgResult)

	results = append(results, checkBDBinary())

	var handle *gorm.DB
	if cfg != nil {
		var storeResult checkResult
		handle, storeResult = checkStore(cfg)
		results = append(results, storeResult)
	} else {
		results = append(results, checkResult{"Store", "FAIL", "skipped (no config)"})
	}

	if handle != nil {
		results = append(results, checkSchema(handle))
		results = append(results, checkCounter(handle))
	} else {
		results = append(results, checkResult{"Schema", "FAIL", "skipped (no store)"})
		results = append(results, checkResult{"Change counter", "FAIL", "skipped (no store)"})
	}

	if cfg != nil {
		results = append(results, checkCredentials(cfg)...)
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{"Config file", "FAIL", fmt.Sprintf("%s: %v", path, err)}
	}
	return cfg, checkResult{"Config file", "PASS", path}
}

// checkBDBinary looks for the bd CLI. The dashboard works without it, but a
// store nothing writes to makes for a quiet board.
func checkBDBinary() checkResult {
	path, err := exec.LookPath("bd")
	if err != nil {
		return checkResult{"bd CLI", "WARN", "not found in PATH (store will only change via external syncs)"}
	}
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return checkResult{"bd CLI", "PASS", "found (version unknown)"}
	}
	version := strings.TrimSpace(strings.Split(string(out), "\n")[0])
	return checkResult{"bd CLI", "PASS", version}
}

func checkStore(cfg *config.Config) (*gorm.DB, checkResult) {
	handle, err := db.Open(cfg.Store)
	if err != nil {
		return nil, checkResult{"Store", "FAIL", err.Error()}
	}
	sqlDB, err := handle.DB()
	if err != nil {
		return nil, checkResult{"Store", "FAIL", fmt.Sprintf("get sql.DB: %v", err)}
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, checkResult{"Store", "FAIL", fmt.Sprintf("ping failed: %v", err)}
	}

	target := cfg.Store.Path
	if cfg.Store.Driver == "mysql" {
		target = fmt.Sprintf("%s:%d/%s", cfg.Store.Host, cfg.Store.Port, cfg.Store.Database)
	}
	return handle, checkResult{"Store", "PASS", fmt.Sprintf("%s (%s)", target, cfg.Store.Driver)}
}

func checkSchema(handle *gorm.DB) checkResult {
	var missing []string
	for _, m := range db.AllModels() {
		if !handle.Migrator().HasTable(m) {
			missing = append(missing, fmt.Sprintf("%T", m))
		}
	}
	total := len(db.AllModels())
	if len(missing) == 0 {
		return checkResult{"Schema", "PASS", fmt.Sprintf("%d/%d tables present", total, total)}
	}
	return checkResult{"Schema", "FAIL", fmt.Sprintf("missing tables: %s (is this a bd-initialized store?)", strings.Join(missing, ", "))}
}

func checkCounter(handle *gorm.DB) checkResult {
	v, err := db.DataVersion(handle)
	if err != nil {
		return checkResult{"Change counter", "FAIL", err.Error()}
	}
	return checkResult{"Change counter", "PASS", fmt.Sprintf("reads %d", v)}
}

func checkCredentials(cfg *config.Config) []checkResult {
	var results []checkResult

	if cfg.GitHub.Token == "" {
		results = append(results, checkResult{"GitHub token", "WARN", "not set (PR lookups will be rate limited)"})
	} else {
		results = append(results, checkResult{"GitHub token", "PASS", "configured"})
	}

	switch {
	case cfg.Notify.Slack.BotToken != "":
		results = append(results, checkResult{"Alerts", "PASS", "slack configured"})
	case cfg.Notify.Discord.Token != "":
		results = append(results, checkResult{"Alerts", "PASS", "discord configured"})
	default:
		results = append(results, checkResult{"Alerts", "WARN", "no chat adapter configured, stale beads only surface in the API"})
	}

	return results
}
