package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/meridian-energy/horizon.plan/internal/store"
)

// WritePNG draws the capacity trajectory (one line per technology,
// regions summed) as a PNG in dir, returning the written path. It is
// the headless fallback for environments without a browser.
func WritePNG(ctx context.Context, st *store.Store, scenario, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create plot dir: %w", err)
	}
	rows, err := st.Results().CapacityByPeriod(ctx, scenario)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("report: no capacity rows for scenario %q", scenario)
	}

	byTech := make(map[string]map[int]float64)
	for _, r := range rows {
		if byTech[r.Tech] == nil {
			byTech[r.Tech] = make(map[int]float64)
		}
		byTech[r.Tech][r.Period] += r.Capacity
	}

	p := plot.New()
	p.Title.Text = "Capacity trajectory: " + scenario
	p.X.Label.Text = "period"
	p.Y.Label.Text = "capacity"
	p.Legend.Top = true

	techs := make([]string, 0, len(byTech))
	for t := range byTech {
		techs = append(techs, t)
	}
	sort.Strings(techs)
	for i, tech := range techs {
		periods := make([]int, 0, len(byTech[tech]))
		for per := range byTech[tech] {
			periods = append(periods, per)
		}
		sort.Ints(periods)
		pts := make(plotter.XYs, 0, len(periods))
		for _, per := range periods {
			pts = append(pts, plotter.XY{X: float64(per), Y: byTech[tech][per]})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("report: plot %s: %w", tech, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(tech, line)
	}

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return "", fmt.Errorf("report: render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", err
	}
	path := filepath.Join(dir, stampedName(scenario, ".png"))
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}
