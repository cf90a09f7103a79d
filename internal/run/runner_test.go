package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-energy/horizon.plan/internal/config"
	"github.com/meridian-energy/horizon.plan/internal/dat"
	"github.com/meridian-energy/horizon.plan/internal/store"
)

const baseData = `
data ;

set time_exist := 2020 ;
set time_future := 2025 2030 2035 ;
set time_season := year ;
set time_of_day := day night ;
set regions := R1 ;

set tech_resource := extract ;
set tech_production := power ;

set commodity_physical := ethos fuel ;
set commodity_demand := dem ;
set commodity_emissions := co2 ;

param SegFrac :=
	year day 0.5
	year night 0.5 ;

param Efficiency :=
	R1 ethos extract 2025 fuel 1.0
	R1 fuel power 2025 dem 0.5 ;

param Demand :=
	R1 2025 dem 10
	R1 2030 dem 10 ;

param CostInvest :=
	R1 power 2025 100 ;

param CostVariable :=
	R1 2025 extract 2025 1
	R1 2030 extract 2025 1 ;

param EmissionActivity :=
	R1 co2 ethos extract 2025 fuel 0.5 ;
`

// baseObjective is the optimum of baseData: invested power capacity 10
// plus extraction variable costs over both periods.
const baseObjective = 100*0.12950457496545667*10*10 + 1.0*5*20 + 1.0*5*20

const treeYAML = `
stages:
  - name: s1
    periods: [2025]
  - name: s2
    periods: [2030]
root:
  name: root
  children:
    - name: low
      probability: 0.5
      data: |
        param Demand := R1 2030 dem 10 ;
    - name: high
      probability: 0.5
      data: |
        param Demand := R1 2030 dem 20 ;
scenarios:
  - name: L
    leaf: low
  - name: H
    leaf: high
`

// newRun writes the data and config files into a temp dir, opens a
// migrated store, and returns the runner.
func newRun(t *testing.T, extraConfig string, extraFiles map[string]string) (*Runner, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.dat"), []byte(baseData), 0o644))
	for name, content := range extraFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	conf := "--input base.dat\n--scenario base\n--path_to_data " + dir + "\n" + extraConfig
	confPath := filepath.Join(dir, "run.cfg")
	require.NoError(t, os.WriteFile(confPath, []byte(conf), 0o644))
	cfg, err := config.Parse(confPath)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(dir, "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.MigrateUp())

	return New(cfg, st), st
}

func lastRun(t *testing.T, st *store.Store) store.Run {
	t.Helper()
	runs, err := st.Runs().List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	return runs[0]
}

func TestRunDeterministic(t *testing.T) {
	r, st := newRun(t, "", nil)
	ctx := context.Background()
	require.NoError(t, r.Run(ctx))

	run := lastRun(t, st)
	assert.Equal(t, "deterministic", run.Mode)
	assert.Equal(t, store.StatusComplete, run.Status)
	require.True(t, run.Objective.Valid)
	assert.InDelta(t, baseObjective, run.Objective.Float64, 1e-6)

	caps, err := st.Results().Capacity(ctx, "base")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "power", caps[0].Tech)
	assert.InDelta(t, 10.0, caps[0].Capacity, 1e-6)

	emis, err := st.Results().Emissions(ctx, "base")
	require.NoError(t, err)
	require.Len(t, emis, 2)
	assert.InDelta(t, 10.0, emis[0].Emissions, 1e-6)

	obj, err := st.Results().Objective(ctx, "base")
	require.NoError(t, err)
	assert.InDelta(t, baseObjective, obj.Value, 1e-6)
}

func TestRunDeterministicDuals(t *testing.T) {
	r, st := newRun(t, "--saveDUALS\n", nil)
	ctx := context.Background()
	require.NoError(t, r.Run(ctx))

	duals, err := st.Duals().Get(ctx, "base")
	require.NoError(t, err)
	assert.NotEmpty(t, duals)
}

func TestRunDeterministicArtifacts(t *testing.T) {
	r, _ := newRun(t, "--saveTEXTFILE\n--saveCSV\n--keep_lp_file\n", nil)
	ctx := context.Background()
	require.NoError(t, r.Run(ctx))

	dir := r.cfg.PathToData
	for _, name := range []string{"base_summary.txt", "base.lp"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(dir, "base_csv", "Output_V_Capacity.csv"))
	assert.NoError(t, err)
}

func TestRunStochastic(t *testing.T) {
	r, st := newRun(t, "--input tree.yaml\n", map[string]string{"tree.yaml": treeYAML})
	ctx := context.Background()
	require.NoError(t, r.Run(ctx))

	run := lastRun(t, st)
	assert.Equal(t, "stochastic", run.Mode)
	require.True(t, run.Objective.Valid)
	// Expected cost: shared first-stage capacity covers the high branch.
	invest := 100 * 0.12950457496545667 * 10 * 20
	expected := invest + 1.0*5*20 + 0.5*(1.0*5*20) + 0.5*(1.0*5*40)
	assert.InDelta(t, expected, run.Objective.Float64, 1e-6)

	names, err := st.Results().Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"base.H", "base.L"}, names)

	// Each scenario reports its own (not expected) cost.
	low, err := st.Results().Objective(ctx, "base.L")
	require.NoError(t, err)
	high, err := st.Results().Objective(ctx, "base.H")
	require.NoError(t, err)
	assert.InDelta(t, invest+100+100, low.Value, 1e-6)
	assert.InDelta(t, invest+100+200, high.Value, 1e-6)
}

func TestRunMyopic(t *testing.T) {
	r, st := newRun(t, "--myopic\n--myopic_periods 1\n", nil)
	ctx := context.Background()
	require.NoError(t, r.Run(ctx))

	run := lastRun(t, st)
	assert.Equal(t, "myopic", run.Mode)
	require.True(t, run.Objective.Valid)
	// With flat demand the window-by-window total matches the full
	// horizon: all capacity is built in the first window and carried.
	assert.InDelta(t, baseObjective, run.Objective.Float64, 1e-6)

	caps, err := st.Results().Capacity(ctx, "base")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, 2025, caps[0].Vintage)
	assert.InDelta(t, 10.0, caps[0].Capacity, 1e-6)

	byPeriod, err := st.Results().CapacityByPeriod(ctx, "base")
	require.NoError(t, err)
	periods := make(map[int]bool)
	for _, row := range byPeriod {
		periods[row.Period] = true
	}
	assert.True(t, periods[2025])
	assert.True(t, periods[2030])
}

func TestRunMyopicSnapshots(t *testing.T) {
	r, st := newRun(t, "--myopic\n--myopic_periods 1\n--keep_myopic_databases\n", nil)
	r.cfg.Output = st.Path()
	ctx := context.Background()
	require.NoError(t, r.Run(ctx))

	for _, p := range []int{2025, 2030} {
		_, err := os.Stat(fmt.Sprintf("%s.myopic_%d.db", st.Path(), p))
		assert.NoError(t, err)
	}
}

func TestRunMGA(t *testing.T) {
	r, st := newRun(t, "--mga { slack=0.5 iteration=2 method=integer }\n", nil)
	ctx := context.Background()
	require.NoError(t, r.Run(ctx))

	run := lastRun(t, st)
	assert.Equal(t, "mga", run.Mode)
	require.True(t, run.Objective.Valid)
	assert.InDelta(t, baseObjective, run.Objective.Float64, 1e-6)

	names, err := st.Results().Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "base_mga_0", "base_mga_1"}, names)

	// Every alternative stays within the cost slack.
	for _, name := range names[1:] {
		obj, err := st.Results().Objective(ctx, name)
		require.NoError(t, err)
		assert.LessOrEqual(t, obj.Value, 1.5*baseObjective+1e-6)
	}
}

func TestRunMOO(t *testing.T) {
	r, st := newRun(t, "--moo { f1=cost f2=emissions c=0.1 ncaps=2 }\n", nil)
	ctx := context.Background()
	require.NoError(t, r.Run(ctx))

	run := lastRun(t, st)
	assert.Equal(t, "moo", run.Mode)

	names, err := st.Results().Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"base_moo_0", "base_moo_1"}, names)

	// Demand fixes extraction, so every cap solves to the same cost.
	for _, name := range names {
		obj, err := st.Results().Objective(ctx, name)
		require.NoError(t, err)
		assert.InDelta(t, baseObjective, obj.Value, 1e-6)
	}
}

func TestIsStructureFile(t *testing.T) {
	dir := t.TempDir()
	tree := filepath.Join(dir, "tree.dat")
	require.NoError(t, os.WriteFile(tree, []byte("set Stages := s1 ;\n"), 0o644))
	data := filepath.Join(dir, "base.dat")
	require.NoError(t, os.WriteFile(data, []byte(baseData), 0o644))

	assert.True(t, isStructureFile(tree))
	assert.True(t, isStructureFile("anything.yaml"))
	assert.False(t, isStructureFile(data))
}

func TestWindowData(t *testing.T) {
	base, err := dat.Parse(baseData)
	require.NoError(t, err)

	w, err := windowData(base, []int{2020}, []int{2025}, []int{2030}, 2035)
	require.NoError(t, err)
	assert.Equal(t, []string{"2020", "2025"}, w.Sets["time_exist"])
	assert.Equal(t, []string{"2030", "2035"}, w.Sets["time_future"])
	// The source file stays untouched.
	assert.Equal(t, []string{"2025", "2030", "2035"}, base.Sets["time_future"])
}
