package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-energy/horizon.plan/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}
