package run

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/meridian-energy/horizon.plan/internal/dat"
	"github.com/meridian-energy/horizon.plan/internal/metrics"
	"github.com/meridian-energy/horizon.plan/internal/model"
	"github.com/meridian-energy/horizon.plan/internal/store"
)

// runMyopic solves the horizon as consecutive windows of
// --myopic_periods optimize periods. Capacity built in one window is
// pinned as fixed capacity in all later windows, so each window sees
// only its own investment decisions. Results accumulate under the run
// scenario, saved after every window.
func (r *Runner) runMyopic(ctx context.Context, data *dat.File) (float64, error) {
	full, err := model.Load(data)
	if err != nil {
		return 0, err
	}
	periods := full.TimeOptimize
	horizon := full.TimeFuture[len(full.TimeFuture)-1]

	if r.store != nil {
		if err := r.store.Results().PurgeScenario(ctx, r.cfg.Scenario); err != nil {
			return 0, err
		}
	}

	fixed := make(map[model.Process]float64)
	acc := &store.ResultSet{Scenario: r.cfg.Scenario}
	var total float64

	step := r.cfg.MyopicPeriods
	for start := 0; start < len(periods); start += step {
		end := start + step
		if end > len(periods) {
			end = len(periods)
		}
		window := periods[start:end]
		boundary := horizon
		if end < len(periods) {
			boundary = periods[end]
		}

		wdata, err := windowData(data, full.TimeExist, periods[:start], window, boundary)
		if err != nil {
			return 0, err
		}
		wm, err := model.Load(wdata)
		if err != nil {
			return 0, fmt.Errorf("myopic window %d: %w", window[0], err)
		}
		name := fmt.Sprintf("%s_window_%d", r.cfg.Scenario, window[0])
		inst, err := wm.Build(name, &model.BuildOptions{FixedCapacity: fixed})
		if err != nil {
			return 0, fmt.Errorf("myopic window %d: %w", window[0], err)
		}
		metrics.RecordProblemSize(inst.P.NumVariables(), inst.P.NumConstraints())

		sol, _, err := r.solve(ctx, "myopic", inst.P, false)
		if err != nil {
			return 0, fmt.Errorf("myopic window %d: %w", window[0], err)
		}
		total += sol.Objective

		set := collectResults(r.cfg.Scenario, inst, sol)
		appendWindow(acc, set, window)
		acc.Objective = total
		if err := r.persist(ctx, acc, nil); err != nil {
			return 0, err
		}

		// Capacity decided in this window carries forward, zeros
		// included so later windows cannot retroactively build it.
		for pr, v := range inst.CapVar {
			if _, exists := wm.ExistingCapacity[pr]; exists {
				continue
			}
			if containsInt(window, pr.Vintage) {
				fixed[pr] = sol.ValueAt(v)
			}
		}

		if r.cfg.KeepMyopicDBs && r.store != nil {
			snap := fmt.Sprintf("%s.myopic_%d.db", r.cfg.Output, window[0])
			os.Remove(snap)
			if err := r.store.SnapshotTo(ctx, snap); err != nil {
				return 0, err
			}
			r.logger.Info().Str("path", snap).Msg("retained myopic window database")
		}
	}
	return total, nil
}

// windowData narrows the model data to one myopic window: periods
// before the window become exist years (their vintages pinned through
// FixedCapacity), the window plus its closing boundary becomes the
// future set. Parameters pass through untouched; rows outside the
// window are simply never referenced.
func windowData(base *dat.File, exist, past, window []int, boundary int) (*dat.File, error) {
	out := dat.NewFile()
	if err := out.Merge(base); err != nil {
		return nil, err
	}

	existSet := make([]string, 0, len(exist)+len(past))
	for _, y := range exist {
		existSet = append(existSet, strconv.Itoa(y))
	}
	for _, y := range past {
		existSet = append(existSet, strconv.Itoa(y))
	}
	futureSet := make([]string, 0, len(window)+1)
	for _, y := range window {
		futureSet = append(futureSet, strconv.Itoa(y))
	}
	futureSet = append(futureSet, strconv.Itoa(boundary))

	out.Sets["time_exist"] = existSet
	out.Sets["time_future"] = futureSet
	return out, nil
}

// appendWindow merges one window's rows into the accumulated scenario
// results. Per-period rows always belong to the window; capacity rows
// keep only the window's own vintages, since earlier ones were already
// reported by the window that built them.
func appendWindow(acc, set *store.ResultSet, window []int) {
	for _, row := range set.Capacity {
		if containsInt(window, row.Vintage) {
			acc.Capacity = append(acc.Capacity, row)
		}
	}
	acc.CapacityByPeriod = append(acc.CapacityByPeriod, set.CapacityByPeriod...)
	acc.FlowsOut = append(acc.FlowsOut, set.FlowsOut...)
	acc.FlowsIn = append(acc.FlowsIn, set.FlowsIn...)
	acc.Curtailment = append(acc.Curtailment, set.Curtailment...)
	acc.Costs = append(acc.Costs, set.Costs...)
	acc.Emissions = append(acc.Emissions, set.Emissions...)
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
