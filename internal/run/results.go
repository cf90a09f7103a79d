package run

import (
	"sort"

	"github.com/meridian-energy/horizon.plan/internal/lp"
	"github.com/meridian-energy/horizon.plan/internal/model"
	"github.com/meridian-energy/horizon.plan/internal/store"
)

// valueTol filters numeric noise out of the result tables.
const valueTol = 1e-9

// collectResults extracts a scenario's result rows from a solved
// instance. The objective is the scenario's own discounted cost, which
// in the extensive form differs from the expected-cost problem
// objective.
func collectResults(name string, inst *model.Instance, sol *lp.Solution) *store.ResultSet {
	m := inst.M
	set := &store.ResultSet{
		Scenario:  name,
		Objective: evalTerms(inst.TotalCost, sol),
	}

	for pr, v := range inst.CapVar {
		val := sol.ValueAt(v)
		if val < valueTol {
			continue
		}
		set.Capacity = append(set.Capacity, store.CapacityRow{
			Scenario: name,
			Sector:   m.Sector[pr.Tech],
			Region:   pr.Region,
			Tech:     pr.Tech,
			Vintage:  pr.Vintage,
			Capacity: val,
		})
	}
	sort.Slice(set.Capacity, func(i, j int) bool {
		a, b := set.Capacity[i], set.Capacity[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Tech != b.Tech {
			return a.Tech < b.Tech
		}
		return a.Vintage < b.Vintage
	})

	for k, v := range inst.CapAvailVar {
		val := sol.ValueAt(v)
		if val < valueTol {
			continue
		}
		set.CapacityByPeriod = append(set.CapacityByPeriod, store.CapacityByPeriodRow{
			Scenario: name,
			Sector:   m.Sector[k.Tech],
			Region:   k.Region,
			Period:   k.Period,
			Tech:     k.Tech,
			Capacity: val,
		})
	}
	sort.Slice(set.CapacityByPeriod, func(i, j int) bool {
		a, b := set.CapacityByPeriod[i], set.CapacityByPeriod[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.Tech < b.Tech
	})

	set.FlowsOut = collectFlows(name, m, inst.FlowOutVar, sol)
	set.FlowsIn = collectFlows(name, m, inst.FlowInVar, sol)
	set.Curtailment = collectFlows(name, m, inst.CurtailVar, sol)

	// Annual flows carry no slice; they export under an "annual" slice.
	for k, v := range inst.FlowOutAnnualVar {
		val := sol.ValueAt(v)
		if val < valueTol {
			continue
		}
		set.FlowsOut = append(set.FlowsOut, store.FlowRow{
			Scenario:  name,
			Sector:    m.Sector[k.Tech],
			Region:    k.Region,
			Period:    k.Period,
			Season:    "annual",
			TimeOfDay: "annual",
			Input:     k.Input,
			Tech:      k.Tech,
			Vintage:   k.Vintage,
			Output:    k.Output,
			Value:     val,
		})
	}
	sortFlows(set.FlowsOut)

	for k, v := range inst.CostVar {
		val := sol.ValueAt(v)
		set.Costs = append(set.Costs, store.CostRow{
			Scenario: name,
			Region:   k.Region,
			Period:   k.Period,
			Cost:     val,
		})
	}
	sort.Slice(set.Costs, func(i, j int) bool {
		a, b := set.Costs[i], set.Costs[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.Period < b.Period
	})

	for k, v := range inst.EmissionVar {
		val := sol.ValueAt(v)
		set.Emissions = append(set.Emissions, store.EmissionRow{
			Scenario:  name,
			Region:    k.Region,
			Period:    k.Period,
			Emissions: val,
		})
	}
	sort.Slice(set.Emissions, func(i, j int) bool {
		a, b := set.Emissions[i], set.Emissions[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.Period < b.Period
	})

	return set
}

func collectFlows(name string, m *model.Model, vars map[model.FlowKey]int, sol *lp.Solution) []store.FlowRow {
	var out []store.FlowRow
	for k, v := range vars {
		val := sol.ValueAt(v)
		if val < valueTol {
			continue
		}
		out = append(out, store.FlowRow{
			Scenario:  name,
			Sector:    m.Sector[k.Tech],
			Region:    k.Region,
			Period:    k.Period,
			Season:    k.Slice.Season,
			TimeOfDay: k.Slice.TOD,
			Input:     k.Input,
			Tech:      k.Tech,
			Vintage:   k.Vintage,
			Output:    k.Output,
			Value:     val,
		})
	}
	sortFlows(out)
	return out
}

func sortFlows(rows []store.FlowRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		if a.TimeOfDay != b.TimeOfDay {
			return a.TimeOfDay < b.TimeOfDay
		}
		if a.Tech != b.Tech {
			return a.Tech < b.Tech
		}
		if a.Vintage != b.Vintage {
			return a.Vintage < b.Vintage
		}
		if a.Input != b.Input {
			return a.Input < b.Input
		}
		return a.Output < b.Output
	})
}

func evalTerms(terms []model.Term, sol *lp.Solution) float64 {
	var sum float64
	for _, t := range terms {
		sum += t.Coef * sol.ValueAt(t.Var)
	}
	return sum
}
