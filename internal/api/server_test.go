package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-energy/horizon.plan/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.MigrateUp())

	ctx := context.Background()
	set := &store.ResultSet{
		Scenario: "base",
		Capacity: []store.CapacityRow{
			{Region: "R1", Tech: "power", Vintage: 2025, Capacity: 10},
		},
		CapacityByPeriod: []store.CapacityByPeriodRow{
			{Region: "R1", Period: 2025, Tech: "power", Capacity: 10},
			{Region: "R1", Period: 2030, Tech: "power", Capacity: 10},
		},
		FlowsOut: []store.FlowRow{
			{Region: "R1", Period: 2025, Season: "year", TimeOfDay: "day",
				Input: "fuel", Tech: "power", Vintage: 2025, Output: "dem", Value: 3.6},
		},
		Costs:     []store.CostRow{{Region: "R1", Period: 2025, Cost: 129.5}},
		Emissions: []store.EmissionRow{{Region: "R1", Period: 2025, Emissions: 2.5}},
		Objective: 129.5,
	}
	require.NoError(t, st.Results().Save(ctx, set))
	require.NoError(t, st.Duals().Save(ctx, "base", map[string]float64{"Demand_R1_2025_year_day_dem": 1.5}))

	run, err := st.Runs().Create(ctx, "base", "deterministic", "--input base.dat")
	require.NoError(t, err)
	require.NoError(t, st.Runs().Start(ctx, run.ID))
	require.NoError(t, st.Runs().Complete(ctx, run.ID, 129.5))

	cfg := Config{Listen: ":0", CapacityUnits: "MW", ActivityUnits: "TWh"}
	return NewServer(st, cfg), st
}

// get performs one request against the assembled route table and
// decodes the JSON body into out when it is non-nil.
func get(t *testing.T, s *Server, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	mux, err := s.ServeMux()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	s.LoggingMiddleware(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	var body map[string]string
	rec := get(t, s, "/healthz", &body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRunsEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	var runs []runView
	rec := get(t, s, "/api/runs", &runs)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runs, 1)
	assert.Equal(t, "base", runs[0].Scenario)
	assert.Equal(t, store.StatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].Objective)
	assert.InDelta(t, 129.5, *runs[0].Objective, 1e-9)

	var run runView
	rec = get(t, s, "/api/runs/"+runs[0].ID, &run)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, runs[0].ID, run.ID)

	rec = get(t, s, "/api/runs/no-such-run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenarios(t *testing.T) {
	s, _ := newTestServer(t)
	var body struct {
		Scenarios []string `json:"scenarios"`
	}
	rec := get(t, s, "/api/scenarios", &body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"base"}, body.Scenarios)
}

func TestCapacityConvertsUnits(t *testing.T) {
	s, _ := newTestServer(t)
	var body struct {
		Units    string              `json:"units"`
		Capacity []store.CapacityRow `json:"capacity"`
	}
	rec := get(t, s, "/api/capacity?scenario=base", &body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MW", body.Units)
	require.Len(t, body.Capacity, 1)
	assert.InDelta(t, 10000.0, body.Capacity[0].Capacity, 1e-9)
}

func TestCapacityByPeriod(t *testing.T) {
	s, _ := newTestServer(t)
	var body struct {
		Capacity []store.CapacityByPeriodRow `json:"capacity"`
	}
	rec := get(t, s, "/api/capacity?scenario=base&by=period", &body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body.Capacity, 2)
}

func TestCapacityMissingScenario(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/api/capacity", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlowsConvertsUnits(t *testing.T) {
	s, _ := newTestServer(t)
	var body struct {
		Units string          `json:"units"`
		Flows []store.FlowRow `json:"flows"`
	}
	rec := get(t, s, "/api/flows?scenario=base", &body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TWh", body.Units)
	require.Len(t, body.Flows, 1)
	assert.InDelta(t, 1.0, body.Flows[0].Value, 1e-9)

	rec = get(t, s, "/api/flows?scenario=base&direction=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCostsAndEmissions(t *testing.T) {
	s, _ := newTestServer(t)

	var costs struct {
		Costs []store.CostRow `json:"costs"`
	}
	rec := get(t, s, "/api/costs?scenario=base", &costs)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, costs.Costs, 1)
	assert.InDelta(t, 129.5, costs.Costs[0].Cost, 1e-9)

	var emis struct {
		Emissions []store.EmissionRow `json:"emissions"`
	}
	rec = get(t, s, "/api/emissions?scenario=base", &emis)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, emis.Emissions, 1)
}

func TestDuals(t *testing.T) {
	s, _ := newTestServer(t)

	var body struct {
		Duals map[string]float64 `json:"duals"`
	}
	rec := get(t, s, "/api/duals?scenario=base", &body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1.5, body.Duals["Demand_R1_2025_year_day_dem"], 1e-9)

	rec = get(t, s, "/api/duals?scenario=other", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChartsPage(t *testing.T) {
	s, _ := newTestServer(t)
	mux, err := s.ServeMux()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/base", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Available capacity by period")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	mux, err := s.ServeMux()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/runs/{id}", routeLabel("/api/runs/abc"))
	assert.Equal(t, "/charts/{scenario}", routeLabel("/charts/base"))
	assert.Equal(t, "/api/capacity", routeLabel("/api/capacity"))
	assert.Equal(t, "/debug", routeLabel("/debug/tailsql/"))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("HORIZON_LISTEN", ":9191")
	t.Setenv("HORIZON_CAPACITY_UNITS", "MW")
	t.Setenv("HORIZON_ACTIVITY_UNITS", "PJ")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.Listen)
	assert.Equal(t, "MW", cfg.CapacityUnits)

	t.Setenv("HORIZON_CAPACITY_UNITS", "furlongs")
	_, err = FromEnv()
	require.Error(t, err)
}
