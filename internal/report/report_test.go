package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-energy/horizon.plan/internal/store"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.MigrateUp())

	set := &store.ResultSet{
		Scenario: "base",
		Capacity: []store.CapacityRow{
			{Region: "R1", Tech: "power", Vintage: 2025, Capacity: 10},
			{Region: "R1", Tech: "wind", Vintage: 2030, Capacity: 4},
		},
		CapacityByPeriod: []store.CapacityByPeriodRow{
			{Region: "R1", Period: 2025, Tech: "power", Capacity: 10},
			{Region: "R1", Period: 2030, Tech: "power", Capacity: 10},
			{Region: "R1", Period: 2030, Tech: "wind", Capacity: 4},
		},
		FlowsOut: []store.FlowRow{
			{Region: "R1", Period: 2025, Season: "year", TimeOfDay: "day",
				Input: "fuel", Tech: "power", Vintage: 2025, Output: "dem", Value: 5},
		},
		Costs:     []store.CostRow{{Region: "R1", Period: 2025, Cost: 129.5}},
		Emissions: []store.EmissionRow{{Region: "R1", Period: 2025, Emissions: 2.5}},
		Objective: 129.5,
	}
	require.NoError(t, s.Results().Save(context.Background(), set))
	return s
}

func TestWriteText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")
	set := &store.ResultSet{
		Scenario:  "base",
		Objective: 129.5,
		Capacity:  []store.CapacityRow{{Region: "R1", Tech: "power", Vintage: 2025, Capacity: 10}},
	}
	require.NoError(t, WriteText(path, set))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "Scenario: base")
	assert.Contains(t, text, "129.5")
	assert.Contains(t, text, "power")
}

func TestWriteCSV(t *testing.T) {
	s := seedStore(t)
	dir := filepath.Join(t.TempDir(), "csv")
	require.NoError(t, WriteCSV(context.Background(), s, "base", dir))

	f, err := os.Open(filepath.Join(dir, "Output_V_Capacity.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + two rows
	assert.Equal(t, []string{"scenario", "sector", "region", "tech", "vintage", "capacity"}, records[0])
	assert.Equal(t, "power", records[1][3])
	assert.Equal(t, "10", records[1][5])

	for _, name := range []string{
		"Output_CapacityByPeriodAndTech.csv",
		"Output_VFlow_Out.csv",
		"Output_Costs.csv",
		"Output_Emissions.csv",
		"Output_Objective.csv",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	// No duals were saved, so no duals file appears.
	_, err = os.Stat(filepath.Join(dir, "Output_Duals.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteHTML(t *testing.T) {
	s := seedStore(t)
	dir := t.TempDir()
	path, err := WriteHTML(context.Background(), s, "base", dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "base_"))
	assert.True(t, strings.HasSuffix(path, ".html"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, "Available capacity by period")
	assert.Contains(t, html, "Emissions by period")
	assert.Contains(t, html, "wind")
}

func TestWritePNG(t *testing.T) {
	s := seedStore(t)
	dir := t.TempDir()
	path, err := WritePNG(context.Background(), s, "base", dir)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWritePNGNoRows(t *testing.T) {
	s := seedStore(t)
	_, err := WritePNG(context.Background(), s, "missing", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no capacity rows")
}
