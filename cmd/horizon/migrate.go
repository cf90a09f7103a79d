package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/meridian-energy/horizon.plan/internal/store"
)

var migrateDB string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the output database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *store.Store) error { return s.MigrateUp() })
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *store.Store) error { return s.MigrateDown() })
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *store.Store) error {
			version, dirty, err := s.MigrateVersion()
			if err != nil {
				return err
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (%s)\n", migrateDB, version, state)
			return nil
		})
	},
}

var migrateToCmd = &cobra.Command{
	Use:   "to <version>",
	Short: "Migrate to a specific schema version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withStore(func(s *store.Store) error { return s.MigrateTo(uint(v)) })
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force the recorded schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withStore(func(s *store.Store) error { return s.MigrateForce(v) })
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDB, "db", "horizon.db", "path to the output database")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd, migrateToCmd, migrateForceCmd)
}

func withStore(fn func(*store.Store) error) error {
	configureLogging("")
	s, err := store.Open(migrateDB)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
