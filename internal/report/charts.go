package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/renameio/v2"

	"github.com/meridian-energy/horizon.plan/internal/store"
)

// Page assembles a scenario's result charts into one go-echarts page:
// stacked capacity by period, new builds by vintage, cost breakdown,
// and an emissions line.
func Page(ctx context.Context, st *store.Store, scenario string) (*components.Page, error) {
	results := st.Results()

	byPeriod, err := results.CapacityByPeriod(ctx, scenario)
	if err != nil {
		return nil, err
	}
	caps, err := results.Capacity(ctx, scenario)
	if err != nil {
		return nil, err
	}
	costs, err := results.Costs(ctx, scenario)
	if err != nil {
		return nil, err
	}
	emis, err := results.Emissions(ctx, scenario)
	if err != nil {
		return nil, err
	}

	page := components.NewPage()
	page.PageTitle = "Horizon results: " + scenario
	page.AddCharts(
		capacityStackChart(scenario, byPeriod),
		newBuildsChart(scenario, caps),
		costChart(scenario, costs),
		emissionsChart(scenario, emis),
	)
	return page, nil
}

// WriteHTML renders a scenario's result charts into one self-contained
// HTML page in dir, returning the written path.
func WriteHTML(ctx context.Context, st *store.Store, scenario, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create report dir: %w", err)
	}
	page, err := Page(ctx, st, scenario)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return "", fmt.Errorf("report: render charts: %w", err)
	}
	path := filepath.Join(dir, stampedName(scenario, ".html"))
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}

// capacityStackChart is the stacked capacity-by-period bar: one series
// per technology, periods on the x axis, regions summed.
func capacityStackChart(scenario string, rows []store.CapacityByPeriodRow) *charts.Bar {
	periods := periodAxis(len(rows), func(i int) int { return rows[i].Period })
	byTech := make(map[string]map[int]float64)
	for _, r := range rows {
		if byTech[r.Tech] == nil {
			byTech[r.Tech] = make(map[int]float64)
		}
		byTech[r.Tech][r.Period] += r.Capacity
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Available capacity by period", Subtitle: "scenario " + scenario}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)
	bar.SetXAxis(axisLabels(periods))
	for _, tech := range sortedKeys(byTech) {
		data := make([]opts.BarData, len(periods))
		for i, p := range periods {
			data[i] = opts.BarData{Value: byTech[tech][p]}
		}
		bar.AddSeries(tech, data, charts.WithBarChartOpts(opts.BarChart{Stack: "capacity"}))
	}
	return bar
}

// newBuildsChart shows capacity additions by build vintage.
func newBuildsChart(scenario string, rows []store.CapacityRow) *charts.Bar {
	vintages := periodAxis(len(rows), func(i int) int { return rows[i].Vintage })
	byTech := make(map[string]map[int]float64)
	for _, r := range rows {
		if byTech[r.Tech] == nil {
			byTech[r.Tech] = make(map[int]float64)
		}
		byTech[r.Tech][r.Vintage] += r.Capacity
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Capacity by build vintage", Subtitle: "scenario " + scenario}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)
	bar.SetXAxis(axisLabels(vintages))
	for _, tech := range sortedKeys(byTech) {
		data := make([]opts.BarData, len(vintages))
		for i, v := range vintages {
			data[i] = opts.BarData{Value: byTech[tech][v]}
		}
		bar.AddSeries(tech, data, charts.WithBarChartOpts(opts.BarChart{Stack: "builds"}))
	}
	return bar
}

// costChart breaks the discounted system cost down by region and period.
func costChart(scenario string, rows []store.CostRow) *charts.Bar {
	periods := periodAxis(len(rows), func(i int) int { return rows[i].Period })
	byRegion := make(map[string]map[int]float64)
	for _, r := range rows {
		if byRegion[r.Region] == nil {
			byRegion[r.Region] = make(map[int]float64)
		}
		byRegion[r.Region][r.Period] += r.Cost
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Discounted cost by period", Subtitle: "scenario " + scenario}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)
	bar.SetXAxis(axisLabels(periods))
	for _, region := range sortedKeys(byRegion) {
		data := make([]opts.BarData, len(periods))
		for i, p := range periods {
			data[i] = opts.BarData{Value: byRegion[region][p]}
		}
		bar.AddSeries(region, data, charts.WithBarChartOpts(opts.BarChart{Stack: "cost"}))
	}
	return bar
}

// emissionsChart plots emissions over the horizon, one line per region.
func emissionsChart(scenario string, rows []store.EmissionRow) *charts.Line {
	periods := periodAxis(len(rows), func(i int) int { return rows[i].Period })
	byRegion := make(map[string]map[int]float64)
	for _, r := range rows {
		if byRegion[r.Region] == nil {
			byRegion[r.Region] = make(map[int]float64)
		}
		byRegion[r.Region][r.Period] += r.Emissions
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Emissions by period", Subtitle: "scenario " + scenario}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)
	line.SetXAxis(axisLabels(periods))
	for _, region := range sortedKeys(byRegion) {
		data := make([]opts.LineData, len(periods))
		for i, p := range periods {
			data[i] = opts.LineData{Value: byRegion[region][p]}
		}
		line.AddSeries(region, data)
	}
	return line
}

// periodAxis collects the sorted distinct periods appearing in n rows.
func periodAxis(n int, at func(i int) int) []int {
	seen := make(map[int]bool)
	var out []int
	for i := 0; i < n; i++ {
		p := at(i)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

func axisLabels(periods []int) []string {
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = strconv.Itoa(p)
	}
	return out
}

func sortedKeys(m map[string]map[int]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
