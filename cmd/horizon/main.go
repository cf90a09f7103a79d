// Command horizon is the capacity-expansion planning CLI: it solves
// run configurations, converts input databases, manages the output
// database schema, renders reports, and serves results over HTTP.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meridian-energy/horizon.plan/internal/log"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "horizon",
	Short: "Energy system capacity expansion planning",
	Long: `horizon builds and solves least-cost capacity expansion plans for
energy systems: deterministic, myopic, stochastic (scenario tree),
modeling-to-generate-alternatives, and multi-objective runs.

Results land in a SQLite output database that the report and serve
commands read.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console or json)")
	rootCmd.AddCommand(runCmd, convertCmd, migrateCmd, reportCmd, serveCmd, versionCmd)
}

// configureLogging applies the global logging flags. When logDir is
// non-empty the log also goes to horizon.log inside it.
func configureLogging(logDir string) {
	cfg := log.Config{Level: logLevel, Format: logFormat}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err == nil {
			path := filepath.Join(logDir, "horizon.log")
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				cfg.Output = io.MultiWriter(os.Stderr, f)
			}
		}
	}
	log.Configure(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "horizon:", err)
		os.Exit(1)
	}
}
