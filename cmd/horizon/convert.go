package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meridian-energy/horizon.plan/internal/dat"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.db> [output.dat]",
	Short: "Convert a SQLite input database to dat format",
	Long: `convert exports the model sets and parameters stored in a SQLite
input database as a dat file. When no output path is given the file is
written next to the database.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: convertDatabase,
}

func convertDatabase(cmd *cobra.Command, args []string) error {
	configureLogging("")
	dbPath := args[0]
	datPath := strings.TrimSuffix(dbPath, filepath.Ext(dbPath)) + ".dat"
	if len(args) == 2 {
		datPath = args[1]
	}
	if err := dat.ConvertDatabase(cmd.Context(), dbPath, datPath); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "wrote", datPath)
	return nil
}
