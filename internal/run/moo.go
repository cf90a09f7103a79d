package run

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-energy/horizon.plan/internal/config"
	"github.com/meridian-energy/horizon.plan/internal/dat"
	"github.com/meridian-energy/horizon.plan/internal/lp"
	"github.com/meridian-energy/horizon.plan/internal/metrics"
	"github.com/meridian-energy/horizon.plan/internal/model"
)

// runMOO sweeps the cost-vs-emissions tradeoff with an epsilon
// constraint: anchor solves find the minimum-cost and minimum-emissions
// extremes, then --moo ncaps evenly spaced emission caps between them
// each get their own solve. The c parameter blends normalized emissions
// into the cost objective as a tie-breaker.
func (r *Runner) runMOO(ctx context.Context, data *dat.File) (float64, error) {
	m, err := model.Load(data)
	if err != nil {
		return 0, err
	}

	// The two anchors are independent problems; they solve in parallel.
	costInst, err := m.Build(r.cfg.Scenario+"_anchor_cost", nil)
	if err != nil {
		return 0, err
	}
	emisInst, err := m.Build(r.cfg.Scenario+"_anchor_emissions", nil)
	if err != nil {
		return 0, err
	}
	emisInst.P.ResetObjective()
	for _, t := range emisInst.TotalEmissions {
		emisInst.P.AddObjective(t.Var, t.Coef)
	}

	var costSol, emisSol *lp.Solution
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		costSol, _, err = r.solve(gctx, "moo", costInst.P, false)
		return err
	})
	g.Go(func() error {
		var err error
		emisSol, _, err = r.solve(gctx, "moo", emisInst.P, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("moo anchors: %w", err)
	}

	minCost := costSol.Objective
	emisAtMinCost := evalTerms(costInst.TotalEmissions, costSol)
	minEmis := evalTerms(emisInst.TotalEmissions, emisSol)
	r.logger.Info().
		Float64("min_cost", minCost).
		Float64("emissions_at_min_cost", emisAtMinCost).
		Float64("min_emissions", minEmis).
		Msg("moo anchors solved")

	// Sweep instance: blended objective plus a mutable emission cap.
	inst, err := m.Build(r.cfg.Scenario, nil)
	if err != nil {
		return 0, err
	}
	metrics.RecordProblemSize(inst.P.NumVariables(), inst.P.NumConstraints())

	c := r.cfg.MOO.C
	if r.cfg.MOO.F1 == config.ObjectiveEmissions {
		// f1 names the primary objective; emissions-first swaps the
		// blend weights.
		c = 1 - c
	}
	costScale := math.Max(math.Abs(minCost), 1)
	emisScale := math.Max(math.Abs(emisAtMinCost), 1)
	inst.P.ResetObjective()
	for _, t := range inst.TotalCost {
		inst.P.AddObjective(t.Var, (1-c)*t.Coef/costScale)
	}
	for _, t := range inst.TotalEmissions {
		inst.P.AddObjective(t.Var, c*t.Coef/emisScale)
	}

	capRow := inst.P.AddConstraint("EmissionSweepCap", lp.LE, emisAtMinCost)
	for _, t := range inst.TotalEmissions {
		capRow.Add(t.Var, t.Coef)
	}

	ncaps := r.cfg.MOO.NCaps
	for i := 0; r.cfg.NextMOO(); i++ {
		capRow.RHS = sweepCap(minEmis, emisAtMinCost, i, ncaps)

		sol, _, err := r.solve(ctx, "moo", inst.P, false)
		if err != nil {
			return 0, fmt.Errorf("moo cap %d: %w", i, err)
		}
		set := collectResults(r.cfg.Scenario, inst, sol)
		set.ObjectiveName = "MOO"
		if err := r.persist(ctx, set, nil); err != nil {
			return 0, err
		}
		r.logger.Info().
			Str("scenario", r.cfg.Scenario).
			Float64("emission_cap", capRow.RHS).
			Float64("cost", set.Objective).
			Float64("emissions", evalTerms(inst.TotalEmissions, sol)).
			Msg("moo cap solved")
	}
	return minCost, nil
}

// sweepCap returns the i-th of n evenly spaced caps from the
// minimum-emissions anchor up to the emissions of the cost optimum.
func sweepCap(lo, hi float64, i, n int) float64 {
	if n <= 1 {
		return (lo + hi) / 2
	}
	return lo + (hi-lo)*float64(i)/float64(n-1)
}
