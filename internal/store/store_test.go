package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.MigrateUp())
	return s
}

func sampleResults(scenario string) *ResultSet {
	return &ResultSet{
		Scenario: scenario,
		Capacity: []CapacityRow{
			{Region: "R1", Tech: "power", Vintage: 2025, Capacity: 10},
		},
		CapacityByPeriod: []CapacityByPeriodRow{
			{Region: "R1", Period: 2025, Tech: "power", Capacity: 10},
		},
		FlowsOut: []FlowRow{
			{Region: "R1", Period: 2025, Season: "year", TimeOfDay: "day",
				Input: "fuel", Tech: "power", Vintage: 2025, Output: "dem", Value: 5},
		},
		Costs:     []CostRow{{Region: "R1", Period: 2025, Cost: 129.5}},
		Emissions: []EmissionRow{{Region: "R1", Period: 2025, Emissions: 2.5}},
		Objective: 129.5,
	}
}

func TestMigrateLifecycle(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer s.Close()

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, s.MigrateUp())
	// A second up is a no-op, not an error.
	require.NoError(t, s.MigrateUp())

	version, dirty, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	var n int
	require.NoError(t, s.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name LIKE 'Output_%'`).Scan(&n))
	assert.Equal(t, 9, n)

	require.NoError(t, s.MigrateDown())
	require.NoError(t, s.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name LIKE 'Output_%'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestRunLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	runs := s.Runs()

	run, err := runs.Create(ctx, "base", "deterministic", "--input data.dat")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, StatusPending, run.Status)

	require.NoError(t, runs.Start(ctx, run.ID))
	got, err := runs.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.False(t, got.Objective.Valid)

	require.NoError(t, runs.Complete(ctx, run.ID, 1495.05))
	got, err = runs.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	require.True(t, got.Objective.Valid)
	assert.InDelta(t, 1495.05, got.Objective.Float64, 1e-9)
	assert.False(t, got.CreatedAt.IsZero())

	list, err := runs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, run.ID, list[0].ID)
}

func TestRunFail(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	runs := s.Runs()

	run, err := runs.Create(ctx, "base", "deterministic", "")
	require.NoError(t, err)
	require.NoError(t, runs.Fail(ctx, run.ID, assert.AnError))

	got, err := runs.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	require.True(t, got.Error.Valid)
	assert.Contains(t, got.Error.String, assert.AnError.Error())
}

func TestRunNotFound(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.Runs().Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.Runs().Start(ctx, "nope"), ErrRunNotFound)
}

func TestResultsSaveAndQuery(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	results := s.Results()

	require.NoError(t, results.Save(ctx, sampleResults("base")))

	names, err := results.Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, names)

	caps, err := results.Capacity(ctx, "base")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "power", caps[0].Tech)
	assert.Equal(t, 2025, caps[0].Vintage)
	assert.InDelta(t, 10.0, caps[0].Capacity, 1e-12)

	flows, err := results.FlowsOut(ctx, "base")
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "day", flows[0].TimeOfDay)
	assert.InDelta(t, 5.0, flows[0].Value, 1e-12)

	obj, err := results.Objective(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, "TotalCost", obj.Name)
	assert.InDelta(t, 129.5, obj.Value, 1e-12)
}

func TestResultsReplaceScenario(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	results := s.Results()

	require.NoError(t, results.Save(ctx, sampleResults("base")))

	// Saving the same scenario again replaces its rows wholesale.
	updated := sampleResults("base")
	updated.Capacity[0].Capacity = 20
	updated.FlowsOut = nil
	require.NoError(t, results.Save(ctx, updated))

	caps, err := results.Capacity(ctx, "base")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.InDelta(t, 20.0, caps[0].Capacity, 1e-12)

	flows, err := results.FlowsOut(ctx, "base")
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestResultsScenariosIsolated(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	results := s.Results()

	require.NoError(t, results.Save(ctx, sampleResults("base")))
	require.NoError(t, results.Save(ctx, sampleResults("alt")))

	names, err := results.Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alt", "base"}, names)

	require.NoError(t, results.PurgeScenario(ctx, "base"))

	names, err = results.Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alt"}, names)

	caps, err := results.Capacity(ctx, "alt")
	require.NoError(t, err)
	assert.Len(t, caps, 1)
}

func TestDuals(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	duals := s.Duals()

	want := map[string]float64{
		"Demand(R1,2025,year,day,dem)":   269.0,
		"Demand(R1,2025,year,night,dem)": 269.0,
	}
	require.NoError(t, duals.Save(ctx, "base", want))

	got, err := duals.Get(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Missing scenarios come back empty, not as an error.
	got, err = duals.Get(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotTo(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Results().Save(ctx, sampleResults("base")))

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, s.SnapshotTo(ctx, dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	snap, err := Open(dest)
	require.NoError(t, err)
	defer snap.Close()
	names, err := snap.Results().Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, names)
}

func TestMigrationsDirOverride(t *testing.T) {
	dir := t.TempDir()
	up := `CREATE TABLE custom (id INTEGER PRIMARY KEY);`
	down := `DROP TABLE custom;`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_custom.up.sql"), []byte(up), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_custom.down.sql"), []byte(down), 0o644))

	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer s.Close()
	s.MigrationsDir = dir

	require.NoError(t, s.MigrateUp())
	var n int
	require.NoError(t, s.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE name = 'custom'`).Scan(&n))
	assert.Equal(t, 1, n)
}
