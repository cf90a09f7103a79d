package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-energy/horizon.plan/internal/config"
	"github.com/meridian-energy/horizon.plan/internal/run"
	"github.com/meridian-energy/horizon.plan/internal/store"
	"github.com/meridian-energy/horizon.plan/internal/version"
)

var runCmd = &cobra.Command{
	Use:   "run <config-file>",
	Short: "Solve the model described by a run configuration file",
	Long: `run parses a run configuration file, converts any database
inputs, builds the linear program, solves it in the configured mode,
and persists results to the output database and file artifacts.`,
	Args: cobra.ExactArgs(1),
	RunE: runModel,
}

func runModel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Parse(args[0])
	if err != nil {
		return err
	}
	if cfg.Version {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return nil
	}
	if cfg.HowToCite {
		fmt.Fprintln(cmd.OutOrStdout(), version.Citation)
		return nil
	}
	configureLogging(cfg.PathToLogs)
	fmt.Fprint(cmd.OutOrStdout(), cfg.String())

	var st *store.Store
	if cfg.Output != "" {
		st, err = store.Open(cfg.Output)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.MigrateUp(); err != nil {
			return err
		}
	}
	return run.New(cfg, st).Run(cmd.Context())
}
