package run

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/meridian-energy/horizon.plan/internal/config"
	"github.com/meridian-energy/horizon.plan/internal/dat"
	"github.com/meridian-energy/horizon.plan/internal/lp"
	"github.com/meridian-energy/horizon.plan/internal/metrics"
	"github.com/meridian-energy/horizon.plan/internal/model"
)

// mgaSeed fixes the random weighting method, so repeated runs of the
// same config explore the same alternatives.
const mgaSeed = 20090827

// runMGA solves the base scenario, then generates near-optimal
// alternatives: each iteration minimizes a weighted activity objective
// subject to total cost staying within the slack of the base optimum.
func (r *Runner) runMGA(ctx context.Context, data *dat.File) (float64, error) {
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

	sol, duals, err := r.solve(ctx, "mga", inst.P, r.cfg.SaveDuals)
	if err != nil {
		return 0, err
	}
	zstar := sol.Objective
	if err := r.persist(ctx, collectResults(r.cfg.Scenario, inst, sol), duals); err != nil {
		return 0, err
	}

	slack := inst.P.AddConstraint("MGACostSlack", lp.LE, (1+r.cfg.MGA.Slack)*zstar)
	for _, t := range inst.TotalCost {
		slack.Add(t.Var, t.Coef)
	}

	baseShares := activityShares(inst, sol)
	used := make(map[string]bool)
	markUsed(inst, sol, used)
	rng := rand.New(rand.NewSource(mgaSeed))

	for iter := 0; r.cfg.NextMGA(); iter++ {
		weights := mgaWeights(r.cfg.MGA.Method, inst, baseShares, used, rng)

		inst.P.ResetObjective()
		for _, tech := range sortedTechs(inst) {
			w := weights[tech]
			if w == 0 {
				continue
			}
			for _, t := range inst.Activity[tech] {
				inst.P.AddObjective(t.Var, w*t.Coef)
			}
		}

		sol, _, err = r.solve(ctx, "mga", inst.P, false)
		if err != nil {
			return 0, fmt.Errorf("mga iteration %d: %w", iter, err)
		}
		markUsed(inst, sol, used)

		set := collectResults(r.cfg.Scenario, inst, sol)
		set.ObjectiveName = "MGA"
		if err := r.persist(ctx, set, nil); err != nil {
			return 0, err
		}
		r.logger.Info().
			Str("scenario", r.cfg.Scenario).
			Int("iteration", iter).
			Float64("cost", set.Objective).
			Msg("mga alternative solved")
	}
	return zstar, nil
}

// mgaWeights assigns one weight per technology for the next iteration's
// activity objective.
func mgaWeights(method string, inst *model.Instance, baseShares map[string]float64, used map[string]bool, rng *rand.Rand) map[string]float64 {
	weights := make(map[string]float64, len(inst.Activity))
	for _, tech := range sortedTechs(inst) {
		switch method {
		case config.MGAInteger:
			// Penalize every tech any prior solution relied on,
			// steering toward structurally different mixes.
			if used[tech] {
				weights[tech] = 1
			}
		case config.MGARandom:
			weights[tech] = rng.Float64()
		case config.MGANormalized:
			// Penalize in proportion to the base solution's reliance.
			weights[tech] = baseShares[tech]
		}
	}
	return weights
}

// activityShares computes each tech's share of total activity in a
// solution.
func activityShares(inst *model.Instance, sol *lp.Solution) map[string]float64 {
	act := make(map[string]float64, len(inst.Activity))
	var total float64
	for tech, terms := range inst.Activity {
		v := evalTerms(terms, sol)
		act[tech] = v
		total += v
	}
	if total <= 0 {
		return act
	}
	for tech := range act {
		act[tech] /= total
	}
	return act
}

func markUsed(inst *model.Instance, sol *lp.Solution, used map[string]bool) {
	for tech, terms := range inst.Activity {
		if evalTerms(terms, sol) > valueTol {
			used[tech] = true
		}
	}
}

func sortedTechs(inst *model.Instance) []string {
	techs := make([]string, 0, len(inst.Activity))
	for tech := range inst.Activity {
		techs = append(techs, tech)
	}
	sort.Strings(techs)
	return techs
}
