// Package api serves planning results over HTTP: a JSON API over the
// output database, rendered chart pages, Prometheus metrics, and the
// debug surface (live SQL, backups).
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/meridian-energy/horizon.plan/internal/log"
	"github.com/meridian-energy/horizon.plan/internal/report"
	"github.com/meridian-energy/horizon.plan/internal/store"
	"github.com/meridian-energy/horizon.plan/internal/units"
	"github.com/meridian-energy/horizon.plan/internal/version"
)

// Server answers HTTP requests against one output database.
type Server struct {
	store  *store.Store
	cfg    Config
	logger zerolog.Logger
}

// NewServer returns a Server reading from st, converting units per cfg.
func NewServer(st *store.Store, cfg Config) *Server {
	return &Server{
		store:  st,
		cfg:    cfg,
		logger: log.WithComponent("api"),
	}
}

// ServeMux builds the route table. Callers wrap the result in
// LoggingMiddleware.
func (s *Server) ServeMux() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID)
	mux.HandleFunc("/api/scenarios", s.handleScenarios)
	mux.HandleFunc("/api/capacity", s.handleCapacity)
	mux.HandleFunc("/api/flows", s.handleFlows)
	mux.HandleFunc("/api/costs", s.handleCosts)
	mux.HandleFunc("/api/emissions", s.handleEmissions)
	mux.HandleFunc("/api/duals", s.handleDuals)
	mux.HandleFunc("/charts/", s.handleCharts)

	if err := s.store.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	return mux, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "version": version.Version})
}

// runView flattens the nullable run columns for JSON.
type runView struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	Mode      string    `json:"mode"`
	Status    string    `json:"status"`
	Objective *float64  `json:"objective,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func viewRun(run *store.Run) runView {
	v := runView{
		ID:        run.ID,
		Scenario:  run.Scenario,
		Mode:      run.Mode,
		Status:    run.Status,
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
	if run.Objective.Valid {
		obj := run.Objective.Float64
		v.Objective = &obj
	}
	if run.Error.Valid {
		v.Error = run.Error.String
	}
	return v
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runs, err := s.store.Runs().List(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]runView, len(runs))
	for i := range runs {
		views[i] = viewRun(&runs[i])
	}
	writeJSON(w, views)
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := s.store.Runs().Get(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, viewRun(run))
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	names, err := s.store.Results().Scenarios(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"scenarios": names})
}

// scenarioParam enforces GET and a non-empty ?scenario= parameter,
// writing the error response itself when either fails.
func scenarioParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return "", false
	}
	scenario := r.URL.Query().Get("scenario")
	if scenario == "" {
		writeJSONError(w, http.StatusBadRequest, "missing scenario parameter")
		return "", false
	}
	return scenario, true
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	scenario, ok := scenarioParam(w, r)
	if !ok {
		return
	}
	results := s.store.Results()

	if r.URL.Query().Get("by") == "period" {
		rows, err := results.CapacityByPeriod(r.Context(), scenario)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for i := range rows {
			rows[i].Capacity = units.ConvertCapacity(rows[i].Capacity, s.cfg.CapacityUnits)
		}
		writeJSON(w, map[string]any{"scenario": scenario, "units": s.cfg.CapacityUnits, "capacity": rows})
		return
	}

	rows, err := results.Capacity(r.Context(), scenario)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for i := range rows {
		rows[i].Capacity = units.ConvertCapacity(rows[i].Capacity, s.cfg.CapacityUnits)
	}
	writeJSON(w, map[string]any{"scenario": scenario, "units": s.cfg.CapacityUnits, "capacity": rows})
}

func (s *Server) handleFlows(w http.ResponseWriter, r *http.Request) {
	scenario, ok := scenarioParam(w, r)
	if !ok {
		return
	}
	results := s.store.Results()

	var (
		rows []store.FlowRow
		err  error
	)
	switch dir := r.URL.Query().Get("direction"); dir {
	case "", "out":
		rows, err = results.FlowsOut(r.Context(), scenario)
	case "in":
		rows, err = results.FlowsIn(r.Context(), scenario)
	case "curtailment":
		rows, err = results.Curtailment(r.Context(), scenario)
	default:
		writeJSONError(w, http.StatusBadRequest, "direction must be out, in, or curtailment")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for i := range rows {
		rows[i].Value = units.ConvertActivity(rows[i].Value, s.cfg.ActivityUnits)
	}
	writeJSON(w, map[string]any{"scenario": scenario, "units": s.cfg.ActivityUnits, "flows": rows})
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	scenario, ok := scenarioParam(w, r)
	if !ok {
		return
	}
	rows, err := s.store.Results().Costs(r.Context(), scenario)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"scenario": scenario, "costs": rows})
}

func (s *Server) handleEmissions(w http.ResponseWriter, r *http.Request) {
	scenario, ok := scenarioParam(w, r)
	if !ok {
		return
	}
	rows, err := s.store.Results().Emissions(r.Context(), scenario)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"scenario": scenario, "emissions": rows})
}

func (s *Server) handleDuals(w http.ResponseWriter, r *http.Request) {
	scenario, ok := scenarioParam(w, r)
	if !ok {
		return
	}
	duals, err := s.store.Duals().Get(r.Context(), scenario)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(duals) == 0 {
		writeJSONError(w, http.StatusNotFound, "no duals saved for scenario "+scenario)
		return
	}
	writeJSON(w, map[string]any{"scenario": scenario, "duals": duals})
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	scenario := strings.TrimPrefix(r.URL.Path, "/charts/")
	if scenario == "" || strings.Contains(scenario, "/") {
		writeJSONError(w, http.StatusNotFound, "unknown chart page")
		return
	}

	obj, err := s.store.Results().Objective(r.Context(), scenario)
	if err != nil || obj == nil {
		writeJSONError(w, http.StatusNotFound, "no results for scenario "+scenario)
		return
	}
	page, err := report.Page(r.Context(), s.store, scenario)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(w); err != nil {
		s.logger.Error().Err(err).Str("scenario", scenario).Msg("render chart page")
	}
}
