package scenario

import (
	"context"
	"fmt"

	"github.com/meridian-energy/horizon.plan/internal/dat"
	"github.com/meridian-energy/horizon.plan/internal/log"
	"github.com/meridian-energy/horizon.plan/internal/lp"
	"github.com/meridian-energy/horizon.plan/internal/model"
	"golang.org/x/sync/errgroup"
)

// ScenarioInstance is one scenario's slice of the extensive form.
type ScenarioInstance struct {
	Scenario *Scenario
	Model    *model.Model
	Inst     *model.Instance
}

// EF is the assembled extensive form: a single problem whose variables
// are attached to tree nodes, so scenarios sharing history share
// decisions and nonanticipativity holds by construction.
type EF struct {
	Tree      *Tree
	Problem   *lp.Problem
	Instances []*ScenarioInstance
}

// BuildEF derives each scenario's model from the base data and the
// node overrides along its path, then assembles all of them into one
// problem. Model loads fan out across goroutines (capped by threads);
// problem assembly itself is sequential and deterministic.
func BuildEF(ctx context.Context, t *Tree, base *dat.File, name string, threads int) (*EF, error) {
	logger := log.WithComponent("scenario")

	models := make([]*model.Model, len(t.Scenarios))
	g, ctx := errgroup.WithContext(ctx)
	if threads > 0 {
		g.SetLimit(threads)
	}
	for i, sc := range t.Scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := t.ScenarioData(base, sc)
			if err != nil {
				return err
			}
			m, err := model.Load(data)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			models[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := t.CheckPeriods(models[0].TimeOptimize); err != nil {
		return nil, err
	}
	for i, m := range models {
		if i > 0 && !equalPeriods(m.TimeOptimize, models[0].TimeOptimize) {
			return nil, badTree("scenario %s changes the optimize periods", t.Scenarios[i].Name)
		}
	}

	ef := &EF{Tree: t, Problem: lp.NewProblem(name)}
	for i, sc := range t.Scenarios {
		path := sc.Path()
		qualify := func(base string, owner int) string {
			return path[t.stageOf(owner)].Name + ":" + base
		}
		inst, err := models[i].Build(name, &model.BuildOptions{
			Problem:   ef.Problem,
			ObjWeight: sc.Prob,
			VarName:   qualify,
			ConName:   qualify,
		})
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		ef.Instances = append(ef.Instances, &ScenarioInstance{
			Scenario: sc,
			Model:    models[i],
			Inst:     inst,
		})
		logger.Debug().
			Str("scenario", sc.Name).
			Float64("probability", sc.Prob).
			Int("variables", ef.Problem.NumVariables()).
			Int("constraints", ef.Problem.NumConstraints()).
			Msg("scenario assembled into extensive form")
	}
	return ef, nil
}

// Solve optimizes the extensive form. The objective is already the
// probability-weighted expected cost.
func (ef *EF) Solve(ctx context.Context) (*lp.Solution, error) {
	return ef.Problem.Solve(ctx)
}

// SolveWithDuals optimizes and extracts dual values; constraint names
// carry their owning node as a prefix.
func (ef *EF) SolveWithDuals(ctx context.Context) (*lp.Solution, map[string]float64, error) {
	return ef.Problem.SolveWithDuals(ctx)
}

func equalPeriods(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
