// Package run orchestrates a solve from a parsed configuration: input
// conversion, model load, mode dispatch (deterministic, stochastic,
// myopic, MGA, MOO), result persistence, and artifact writing.
package run

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/meridian-energy/horizon.plan/internal/config"
	"github.com/meridian-energy/horizon.plan/internal/dat"
	"github.com/meridian-energy/horizon.plan/internal/log"
	"github.com/meridian-energy/horizon.plan/internal/lp"
	"github.com/meridian-energy/horizon.plan/internal/metrics"
	"github.com/meridian-energy/horizon.plan/internal/model"
	"github.com/meridian-energy/horizon.plan/internal/report"
	"github.com/meridian-energy/horizon.plan/internal/store"
)

// Runner executes one configured run end to end. Store may be nil when
// the config names no output database; results then go to file artifacts
// only.
type Runner struct {
	cfg    *config.Config
	store  *store.Store
	logger zerolog.Logger
}

// New returns a runner over the given config and (optional) store.
func New(cfg *config.Config, st *store.Store) *Runner {
	return &Runner{cfg: cfg, store: st, logger: log.WithComponent("run")}
}

// Run converts inputs, dispatches on mode, and records the run
// lifecycle. The returned error is also recorded on the run row.
func (r *Runner) Run(ctx context.Context) error {
	inputs, structPath, err := r.prepareInputs(ctx)
	if err != nil {
		return err
	}
	data, err := dat.ParseFiles(inputs)
	if err != nil {
		return err
	}

	mode := r.mode(structPath)
	var runID string
	if r.store != nil {
		run, err := r.store.Runs().Create(ctx, r.cfg.Scenario, mode, r.cfg.String())
		if err != nil {
			return err
		}
		runID = run.ID
		if err := r.store.Runs().Start(ctx, runID); err != nil {
			return err
		}
	}
	r.logger.Info().
		Str("scenario", r.cfg.Scenario).
		Str("mode", mode).
		Str("run_id", runID).
		Msg("run started")

	var objective float64
	switch mode {
	case "myopic":
		objective, err = r.runMyopic(ctx, data)
	case "mga":
		objective, err = r.runMGA(ctx, data)
	case "moo":
		objective, err = r.runMOO(ctx, data)
	case "stochastic":
		objective, err = r.runStochastic(ctx, data, structPath)
	default:
		objective, err = r.runDeterministic(ctx, data)
	}

	if r.store != nil {
		if err != nil {
			if ferr := r.store.Runs().Fail(ctx, runID, err); ferr != nil {
				r.logger.Warn().Err(ferr).Msg("failed to record run error")
			}
		} else if cerr := r.store.Runs().Complete(ctx, runID, objective); cerr != nil {
			r.logger.Warn().Err(cerr).Msg("failed to record run completion")
		}
	}
	if err != nil {
		return err
	}
	r.logger.Info().
		Str("scenario", r.cfg.Scenario).
		Float64("objective", objective).
		Msg("run complete")
	return nil
}

func (r *Runner) mode(structPath string) string {
	switch {
	case r.cfg.Myopic:
		return "myopic"
	case r.cfg.MGA != nil:
		return "mga"
	case r.cfg.MOO != nil:
		return "moo"
	case structPath != "":
		return "stochastic"
	}
	return "deterministic"
}

// prepareInputs converts database inputs to dat files (written next to
// the database) and splits off a scenario-structure file when one is
// named.
func (r *Runner) prepareInputs(ctx context.Context) (inputs []string, structPath string, err error) {
	for _, in := range r.cfg.Inputs {
		switch {
		case isDatabasePath(in):
			datPath := strings.TrimSuffix(in, filepath.Ext(in)) + ".dat"
			r.logger.Info().Str("db", in).Str("dat", datPath).Msg("converting input database")
			if err := dat.ConvertDatabase(ctx, in, datPath); err != nil {
				return nil, "", err
			}
			inputs = append(inputs, datPath)
		case isStructureFile(in):
			if structPath != "" {
				return nil, "", fmt.Errorf("run: multiple scenario structure files: %s and %s", structPath, in)
			}
			structPath = in
		default:
			inputs = append(inputs, in)
		}
	}
	if len(inputs) == 0 {
		return nil, "", fmt.Errorf("run: no model data among the inputs")
	}
	return inputs, structPath, nil
}

func isDatabasePath(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// isStructureFile recognizes scenario trees: YAML by extension, the
// dat-style format by its Stages set.
func isStructureFile(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return true
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		return false
	}
	return strings.Contains(string(raw), "set Stages")
}

func (r *Runner) runDeterministic(ctx context.Context, data *dat.File) (float64, error) {
	m, err := model.Load(data)
	if err != nil {
		return 0, err
	}
	inst, err := m.Build(r.cfg.Scenario, nil)
	if err != nil {
		return 0, err
	}
	metrics.RecordProblemSize(inst.P.NumVariables(), inst.P.NumConstraints())
	if err := r.writeLPFile(inst.P); err != nil {
		return 0, err
	}

	sol, duals, err := r.solve(ctx, "deterministic", inst.P, r.cfg.SaveDuals)
	if err != nil {
		return 0, err
	}
	set := collectResults(r.cfg.Scenario, inst, sol)
	if err := r.persist(ctx, set, duals); err != nil {
		return 0, err
	}
	return sol.Objective, nil
}

// solve runs the problem, recording timing and outcome metrics. Duals
// are skipped (with a warning) for mixed-integer problems, where they
// are undefined.
func (r *Runner) solve(ctx context.Context, mode string, p *lp.Problem, withDuals bool) (*lp.Solution, map[string]float64, error) {
	start := time.Now()
	var (
		sol   *lp.Solution
		duals map[string]float64
		err   error
	)
	if withDuals && p.HasIntegers() {
		r.logger.Warn().Str("problem", p.Name).Msg("duals are undefined for mixed-integer problems; skipping")
		withDuals = false
	}
	if withDuals {
		sol, duals, err = p.SolveWithDuals(ctx)
	} else {
		sol, err = p.Solve(ctx)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordSolve(mode, outcome, time.Since(start))
	if err != nil {
		return nil, nil, fmt.Errorf("solve %s: %w", p.Name, err)
	}
	r.logger.Info().
		Str("problem", p.Name).
		Float64("objective", sol.Objective).
		Dur("elapsed", time.Since(start)).
		Msg("solved")
	return sol, duals, nil
}

// persist saves a scenario's results to the store and writes the
// configured file artifacts.
func (r *Runner) persist(ctx context.Context, set *store.ResultSet, duals map[string]float64) error {
	if r.store != nil {
		if err := r.store.Results().Save(ctx, set); err != nil {
			return err
		}
		recordRowMetrics(set)
		if len(duals) > 0 {
			if err := r.store.Duals().Save(ctx, set.Scenario, duals); err != nil {
				return err
			}
			metrics.RecordResultRows("Output_Duals", len(duals))
		}
	}
	if r.cfg.SaveTextFile {
		path := filepath.Join(r.artifactDir(), set.Scenario+"_summary.txt")
		if err := report.WriteText(path, set); err != nil {
			return err
		}
	}
	if r.cfg.SaveCSV {
		if r.store == nil {
			r.logger.Warn().Msg("--saveCSV requires an output database; skipping")
		} else {
			dir := filepath.Join(r.artifactDir(), set.Scenario+"_csv")
			if err := report.WriteCSV(ctx, r.store, set.Scenario, dir); err != nil {
				return err
			}
		}
	}
	return nil
}

func recordRowMetrics(set *store.ResultSet) {
	metrics.RecordResultRows("Output_V_Capacity", len(set.Capacity))
	metrics.RecordResultRows("Output_CapacityByPeriodAndTech", len(set.CapacityByPeriod))
	metrics.RecordResultRows("Output_VFlow_Out", len(set.FlowsOut))
	metrics.RecordResultRows("Output_VFlow_In", len(set.FlowsIn))
	metrics.RecordResultRows("Output_Curtailment", len(set.Curtailment))
	metrics.RecordResultRows("Output_Costs", len(set.Costs))
	metrics.RecordResultRows("Output_Emissions", len(set.Emissions))
}

// artifactDir is where LP files, text summaries, and CSV exports land:
// --path_to_data when set, else next to the output database, else the
// working directory.
func (r *Runner) artifactDir() string {
	dir := "."
	if r.cfg.PathToData != "" {
		dir = r.cfg.PathToData
	} else if r.cfg.Output != "" {
		dir = filepath.Dir(r.cfg.Output)
	}
	os.MkdirAll(dir, 0o755)
	return dir
}

func (r *Runner) writeLPFile(p *lp.Problem) error {
	if !r.cfg.KeepLPFile {
		return nil
	}
	var b bytes.Buffer
	if err := p.WriteLP(&b); err != nil {
		return err
	}
	path := filepath.Join(r.artifactDir(), p.Name+".lp")
	if err := renameio.WriteFile(path, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write LP file %s: %w", path, err)
	}
	r.logger.Info().Str("path", path).Msg("wrote LP file")
	return nil
}
