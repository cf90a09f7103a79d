package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridian-energy/horizon.plan/internal/api"
	"github.com/meridian-energy/horizon.plan/internal/log"
	"github.com/meridian-energy/horizon.plan/internal/store"
)

var (
	serveListen string
	serveDB     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve saved results over HTTP",
	Long: `serve exposes the output database: a JSON API under /api, chart
pages under /charts, Prometheus metrics at /metrics, and debug tooling
(live SQL, backups) under /debug.

Flags override the HORIZON_LISTEN and HORIZON_OUTPUT_DB environment
variables.`,
	RunE: serveResults,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides HORIZON_LISTEN)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "path to the output database (overrides HORIZON_OUTPUT_DB)")
}

func serveResults(cmd *cobra.Command, args []string) error {
	configureLogging("")
	cfg, err := api.FromEnv()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	if serveDB != "" {
		cfg.OutputDB = serveDB
	}

	st, err := store.Open(cfg.OutputDB)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.MigrateUp(); err != nil {
		return err
	}

	server := api.NewServer(st, cfg)
	mux, err := server.ServeMux()
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.WithComponent("serve")
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Listen).Str("db", cfg.OutputDB).Msg("serving results")
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info().Msg("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
