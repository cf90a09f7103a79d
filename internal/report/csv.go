package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/google/renameio/v2"

	"github.com/meridian-energy/horizon.plan/internal/store"
)

// WriteCSV exports one scenario's rows from every populated Output_*
// table into dir, one CSV file per table.
func WriteCSV(ctx context.Context, st *store.Store, scenario, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create csv dir: %w", err)
	}
	results := st.Results()

	caps, err := results.Capacity(ctx, scenario)
	if err != nil {
		return err
	}
	var rows [][]string
	for _, r := range caps {
		rows = append(rows, []string{r.Scenario, r.Sector, r.Region, r.Tech, itoa(r.Vintage), ftoa(r.Capacity)})
	}
	if err := writeCSVFile(dir, "Output_V_Capacity.csv",
		[]string{"scenario", "sector", "region", "tech", "vintage", "capacity"}, rows); err != nil {
		return err
	}

	byPeriod, err := results.CapacityByPeriod(ctx, scenario)
	if err != nil {
		return err
	}
	rows = nil
	for _, r := range byPeriod {
		rows = append(rows, []string{r.Scenario, r.Sector, r.Region, itoa(r.Period), r.Tech, ftoa(r.Capacity)})
	}
	if err := writeCSVFile(dir, "Output_CapacityByPeriodAndTech.csv",
		[]string{"scenario", "sector", "region", "t_periods", "tech", "capacity"}, rows); err != nil {
		return err
	}

	for _, f := range []struct {
		file  string
		value string
		query func(context.Context, string) ([]store.FlowRow, error)
	}{
		{"Output_VFlow_Out.csv", "vflow_out", results.FlowsOut},
		{"Output_VFlow_In.csv", "vflow_in", results.FlowsIn},
		{"Output_Curtailment.csv", "curtailment", results.Curtailment},
	} {
		flows, err := f.query(ctx, scenario)
		if err != nil {
			return err
		}
		rows = nil
		for _, r := range flows {
			rows = append(rows, []string{r.Scenario, r.Sector, r.Region, itoa(r.Period), r.Season, r.TimeOfDay,
				r.Input, r.Tech, itoa(r.Vintage), r.Output, ftoa(r.Value)})
		}
		header := []string{"scenario", "sector", "region", "t_periods", "t_season", "t_day",
			"input_comm", "tech", "vintage", "output_comm", f.value}
		if err := writeCSVFile(dir, f.file, header, rows); err != nil {
			return err
		}
	}

	costs, err := results.Costs(ctx, scenario)
	if err != nil {
		return err
	}
	rows = nil
	for _, r := range costs {
		rows = append(rows, []string{r.Scenario, r.Region, itoa(r.Period), ftoa(r.Cost)})
	}
	if err := writeCSVFile(dir, "Output_Costs.csv",
		[]string{"scenario", "region", "t_periods", "cost"}, rows); err != nil {
		return err
	}

	emis, err := results.Emissions(ctx, scenario)
	if err != nil {
		return err
	}
	rows = nil
	for _, r := range emis {
		rows = append(rows, []string{r.Scenario, r.Region, itoa(r.Period), ftoa(r.Emissions)})
	}
	if err := writeCSVFile(dir, "Output_Emissions.csv",
		[]string{"scenario", "region", "t_periods", "emissions"}, rows); err != nil {
		return err
	}

	obj, err := results.Objective(ctx, scenario)
	if err == nil {
		rows = [][]string{{obj.Scenario, obj.Name, ftoa(obj.Value)}}
		if err := writeCSVFile(dir, "Output_Objective.csv",
			[]string{"scenario", "objective_name", "total_system_cost"}, rows); err != nil {
			return err
		}
	}

	duals, err := st.Duals().Get(ctx, scenario)
	if err != nil {
		return err
	}
	if len(duals) > 0 {
		names := make([]string, 0, len(duals))
		for name := range duals {
			names = append(names, name)
		}
		sort.Strings(names)
		rows = nil
		for _, name := range names {
			rows = append(rows, []string{scenario, name, ftoa(duals[name])})
		}
		if err := writeCSVFile(dir, "Output_Duals.csv",
			[]string{"scenario", "constraint_name", "dual"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVFile(dir, name string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

func itoa(v int) string { return strconv.Itoa(v) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
