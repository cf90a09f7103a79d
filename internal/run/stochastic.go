package run

import (
	"context"

	"github.com/meridian-energy/horizon.plan/internal/dat"
	"github.com/meridian-energy/horizon.plan/internal/metrics"
	"github.com/meridian-energy/horizon.plan/internal/scenario"
)

// runStochastic assembles the extensive form over the scenario tree and
// solves it as one problem. Results persist per scenario under
// "<run scenario>.<tree scenario>" keys; the run objective is the
// probability-weighted expected cost.
func (r *Runner) runStochastic(ctx context.Context, data *dat.File, structPath string) (float64, error) {
	tree, err := scenario.Load(structPath)
	if err != nil {
		return 0, err
	}
	ef, err := scenario.BuildEF(ctx, tree, data, r.cfg.Scenario, r.cfg.Threads)
	if err != nil {
		return 0, err
	}
	metrics.RecordProblemSize(ef.Problem.NumVariables(), ef.Problem.NumConstraints())
	if err := r.writeLPFile(ef.Problem); err != nil {
		return 0, err
	}

	sol, duals, err := r.solve(ctx, "stochastic", ef.Problem, r.cfg.SaveDuals)
	if err != nil {
		return 0, err
	}

	for _, si := range ef.Instances {
		name := r.cfg.Scenario + "." + si.Scenario.Name
		set := collectResults(name, si.Inst, sol)
		if err := r.persist(ctx, set, nil); err != nil {
			return 0, err
		}
	}
	// Duals carry node-qualified names; they save once under the run
	// scenario rather than per tree scenario.
	if len(duals) > 0 && r.store != nil {
		if err := r.store.Duals().Save(ctx, r.cfg.Scenario, duals); err != nil {
			return 0, err
		}
	}
	return sol.Objective, nil
}
