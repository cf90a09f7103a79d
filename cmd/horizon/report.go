package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-energy/horizon.plan/internal/report"
	"github.com/meridian-energy/horizon.plan/internal/store"
)

var (
	reportDB     string
	reportOut    string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report <scenario>",
	Short: "Render saved results as charts, plots, or CSV",
	Long: `report reads one scenario's results from the output database and
renders them: an interactive HTML chart page, a static PNG capacity
plot, or a directory of CSV exports.`,
	Args: cobra.ExactArgs(1),
	RunE: renderReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDB, "db", "horizon.db", "path to the output database")
	reportCmd.Flags().StringVar(&reportOut, "out", ".", "output directory")
	reportCmd.Flags().StringVar(&reportFormat, "format", "html", "report format (html, png, csv)")
}

func renderReport(cmd *cobra.Command, args []string) error {
	configureLogging("")
	scenario := args[0]
	s, err := store.Open(reportDB)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	switch reportFormat {
	case "html":
		path, err := report.WriteHTML(ctx, s, scenario, reportOut)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
	case "png":
		path, err := report.WritePNG(ctx, s, scenario, reportOut)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
	case "csv":
		if err := report.WriteCSV(ctx, s, scenario, reportOut); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote CSV files to", reportOut)
	default:
		return fmt.Errorf("unknown report format %q (want html, png, or csv)", reportFormat)
	}
	return nil
}
