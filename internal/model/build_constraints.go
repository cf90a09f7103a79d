package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/meridian-energy/horizon.plan/internal/lp"
)

// buildStorage adds the energy-balance machinery for one storage
// process in one period: level evolution across the slice cycle with
// wraparound into the initial level, energy caps, and the charge-rate
// cap. Discharge is already bounded by the process's capacity rows.
func (inst *Instance) buildStorage(pr Process, period int) {
	m := inst.M
	slices := m.Slices()
	info := m.Info[pr]
	plf := m.ProcessLifeFrac(pr, period)
	c2a := m.CapToAct(pr.Region, pr.Tech)
	cv := inst.CapVar[pr]

	// Energy capacity per unit power capacity: hours of duration as a
	// fraction of the year.
	energyCap := c2a * m.StorDuration(pr.Region, pr.Tech) / HoursPerYear * plf

	iv := inst.v(fmt.Sprintf("StorageInit(%s)", pr), pr.Vintage)

	levels := make([]int, len(slices))
	for i, sl := range slices {
		levels[i] = inst.v(fmt.Sprintf("StorageLevel(%s,%d,%s)", pr, period, sl), period)
	}

	// charge adds the efficiency-weighted charging flows of slice sl,
	// and discharge the raw outflows, each scaled by sign.
	charge := func(row *lp.Constraint, sl Slice, sign float64) {
		for _, in := range info.Inputs {
			for _, out := range info.Outputs {
				eff, ok := info.Eff[IO{in, out}]
				if !ok {
					continue
				}
				key := FlowKey{pr.Region, period, sl, in, pr.Tech, pr.Vintage, out}
				if fv, ok := inst.FlowInVar[key]; ok {
					row.Add(fv, sign*eff)
				}
			}
		}
	}
	discharge := func(row *lp.Constraint, sl Slice, sign float64) {
		for _, in := range info.Inputs {
			for _, out := range info.Outputs {
				if _, ok := info.Eff[IO{in, out}]; !ok {
					continue
				}
				key := FlowKey{pr.Region, period, sl, in, pr.Tech, pr.Vintage, out}
				if fv, ok := inst.FlowOutVar[key]; ok {
					row.Add(fv, sign)
				}
			}
		}
	}

	// Level at the start of the first slice is the carried-in level.
	first := inst.con(period, fmt.Sprintf("StorageInitLevel(%s,%d)", pr, period), lp.EQ, 0)
	first.Add(levels[0], 1)
	first.Add(iv, -1)

	for k := 1; k < len(slices); k++ {
		row := inst.con(period, fmt.Sprintf("StorageEnergy(%s,%d,%s)", pr, period, slices[k]), lp.EQ, 0)
		row.Add(levels[k], 1)
		row.Add(levels[k-1], -1)
		charge(row, slices[k-1], -1)
		discharge(row, slices[k-1], 1)
	}

	// The cycle closes: ending where it started keeps the stored energy
	// consistent across the representative year.
	last := slices[len(slices)-1]
	wrap := inst.con(period, fmt.Sprintf("StorageWrap(%s,%d)", pr, period), lp.EQ, 0)
	wrap.Add(iv, 1)
	wrap.Add(levels[len(slices)-1], -1)
	charge(wrap, last, -1)
	discharge(wrap, last, 1)

	for i, sl := range slices {
		cap := inst.con(period, fmt.Sprintf("StorageEnergyCap(%s,%d,%s)", pr, period, sl), lp.LE, 0)
		cap.Add(levels[i], 1)
		cap.Add(cv, -energyCap)

		cf := m.CapacityFactor(pr.Region, sl, pr)
		rate := inst.con(period, fmt.Sprintf("StorageChargeRate(%s,%d,%s)", pr, period, sl), lp.LE, 0)
		charge(rate, sl, 1)
		rate.Add(cv, -cf*c2a*m.SegFrac[sl]*plf)
	}

	initCap := inst.con(period, fmt.Sprintf("StorageInitCap(%s,%d)", pr, period), lp.LE, 0)
	initCap.Add(iv, 1)
	initCap.Add(cv, -energyCap)

	if frac, ok := m.StorageInitFrac[pr]; ok && period == inst.firstActivePeriod(pr) {
		pin := inst.con(period, fmt.Sprintf("StorageInitFrac(%s)", pr), lp.EQ, 0)
		pin.Add(iv, 1)
		pin.Add(cv, -frac*energyCap)
	}
}

func (inst *Instance) firstActivePeriod(pr Process) int {
	for _, p := range inst.M.TimeOptimize {
		if inst.M.Active(pr, p) {
			return p
		}
	}
	return -1
}

// buildCapacityAvailable defines the per-tech availability variable as
// the life-fraction-weighted sum of its vintages and applies the
// min/max capacity limits to it.
func (inst *Instance) buildCapacityAvailable(period int, active []Process) {
	m := inst.M
	byRT := make(map[RT][]Process)
	for _, pr := range active {
		rt := RT{pr.Region, pr.Tech}
		byRT[rt] = append(byRT[rt], pr)
	}
	rts := make([]RT, 0, len(byRT))
	for rt := range byRT {
		rts = append(rts, rt)
	}
	sort.Slice(rts, func(i, j int) bool {
		if rts[i].Region != rts[j].Region {
			return rts[i].Region < rts[j].Region
		}
		return rts[i].Tech < rts[j].Tech
	})

	for _, rt := range rts {
		av := inst.v(fmt.Sprintf("CapacityAvailable(%s,%s,%d)", rt.Region, rt.Tech, period), period)
		inst.CapAvailVar[RPT{rt.Region, period, rt.Tech}] = av

		def := inst.con(period, fmt.Sprintf("CapacityAvailable(%s,%d,%s)", rt.Region, period, rt.Tech), lp.EQ, 0)
		def.Add(av, 1)
		for _, pr := range byRT[rt] {
			def.Add(inst.CapVar[pr], -m.ProcessLifeFrac(pr, period))
		}

		key := RPT{rt.Region, period, rt.Tech}
		if lo, ok := m.MinCapacity[key]; ok {
			inst.con(period, fmt.Sprintf("MinCapacity(%s,%d,%s)", rt.Region, period, rt.Tech), lp.GE, lo).Add(av, 1)
		}
		if hi, ok := m.MaxCapacity[key]; ok {
			inst.con(period, fmt.Sprintf("MaxCapacity(%s,%d,%s)", rt.Region, period, rt.Tech), lp.LE, hi).Add(av, 1)
		}
	}
}

// buildActivityLimits aggregates flow terms per technology and applies
// the per-period activity bounds.
func (inst *Instance) buildActivityLimits(period int, activity map[Process][]Term) {
	m := inst.M
	prs := make([]Process, 0, len(activity))
	for pr := range activity {
		prs = append(prs, pr)
	}
	sortProcesses(prs)
	for _, pr := range prs {
		key := RPT{pr.Region, period, pr.Tech}
		inst.actByRPT[key] = append(inst.actByRPT[key], activity[pr]...)
	}

	keys := make([]RPT, 0)
	for key := range inst.actByRPT {
		if key.Period == period {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Region != keys[j].Region {
			return keys[i].Region < keys[j].Region
		}
		return keys[i].Tech < keys[j].Tech
	})

	for _, key := range keys {
		if lo, ok := m.MinActivity[key]; ok {
			row := inst.con(period, fmt.Sprintf("MinActivity(%s,%d,%s)", key.Region, period, key.Tech), lp.GE, lo)
			for _, t := range inst.actByRPT[key] {
				row.Add(t.Var, t.Coef)
			}
		}
		if hi, ok := m.MaxActivity[key]; ok {
			row := inst.con(period, fmt.Sprintf("MaxActivity(%s,%d,%s)", key.Region, period, key.Tech), lp.LE, hi)
			for _, t := range inst.actByRPT[key] {
				row.Add(t.Var, t.Coef)
			}
		}
	}
}

// buildSplits applies the input and output share requirements per
// process, aggregated over the period.
func (inst *Instance) buildSplits(period int, inputUse, outputUse map[string]map[Process][]Term) {
	m := inst.M

	inKeys := make([]RPIT, 0)
	for k := range m.TechInputSplit {
		if k.Period == period {
			inKeys = append(inKeys, k)
		}
	}
	sort.Slice(inKeys, func(i, j int) bool {
		a, b := inKeys[i], inKeys[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Tech != b.Tech {
			return a.Tech < b.Tech
		}
		return a.Input < b.Input
	})
	for _, k := range inKeys {
		share := m.TechInputSplit[k]
		for _, pr := range m.ActiveInPeriod(period) {
			if pr.Region != k.Region || pr.Tech != k.Tech {
				continue
			}
			terms := inputUse[k.Input][pr]
			if len(terms) == 0 {
				continue
			}
			row := inst.con(period, fmt.Sprintf("InputSplit(%s,%d,%s,%s,%d)", k.Region, period, k.Input, k.Tech, pr.Vintage), lp.GE, 0)
			for _, t := range terms {
				row.Add(t.Var, t.Coef)
			}
			for _, in := range m.Info[pr].Inputs {
				for _, t := range inputUse[in][pr] {
					row.Add(t.Var, -share*t.Coef)
				}
			}
		}
	}

	outKeys := make([]RPTO, 0)
	for k := range m.TechOutputSplit {
		if k.Period == period {
			outKeys = append(outKeys, k)
		}
	}
	sort.Slice(outKeys, func(i, j int) bool {
		a, b := outKeys[i], outKeys[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Tech != b.Tech {
			return a.Tech < b.Tech
		}
		return a.Output < b.Output
	})
	for _, k := range outKeys {
		share := m.TechOutputSplit[k]
		for _, pr := range m.ActiveInPeriod(period) {
			if pr.Region != k.Region || pr.Tech != k.Tech {
				continue
			}
			terms := outputUse[k.Output][pr]
			if len(terms) == 0 {
				continue
			}
			row := inst.con(period, fmt.Sprintf("OutputSplit(%s,%d,%s,%s,%d)", k.Region, period, k.Tech, k.Output, pr.Vintage), lp.GE, 0)
			for _, t := range terms {
				row.Add(t.Var, t.Coef)
			}
			for _, out := range m.Info[pr].Outputs {
				for _, t := range outputUse[out][pr] {
					row.Add(t.Var, -share*t.Coef)
				}
			}
		}
	}
}

// buildResourceBounds caps the period production of bounded physical
// commodities.
func (inst *Instance) buildResourceBounds(period int, outputUse map[string]map[Process][]Term) {
	m := inst.M
	keys := make([]RPC, 0)
	for k := range m.ResourceBound {
		if k.Period == period {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Region != keys[j].Region {
			return keys[i].Region < keys[j].Region
		}
		return keys[i].Comm < keys[j].Comm
	})
	for _, k := range keys {
		producers := outputUse[k.Comm]
		if len(producers) == 0 {
			continue
		}
		row := inst.con(period, fmt.Sprintf("ResourceBound(%s,%d,%s)", k.Region, period, k.Comm), lp.LE, m.ResourceBound[k])
		prs := make([]Process, 0, len(producers))
		for pr := range producers {
			if pr.Region == k.Region {
				prs = append(prs, pr)
			}
		}
		sortProcesses(prs)
		for _, pr := range prs {
			for _, t := range producers[pr] {
				row.Add(t.Var, t.Coef)
			}
		}
	}
}

// buildBaseload pins the output rate of baseload processes flat across
// the times of day of each season.
func (inst *Instance) buildBaseload(period int, active []Process) {
	m := inst.M
	if len(m.TimesOfDay) < 2 {
		return
	}
	for _, pr := range active {
		if !m.Baseload[pr.Tech] || m.Annual[pr.Tech] {
			continue
		}
		info := m.Info[pr]
		for _, season := range m.Seasons {
			ref := Slice{season, m.TimesOfDay[0]}
			for _, tod := range m.TimesOfDay[1:] {
				sl := Slice{season, tod}
				row := inst.con(period, fmt.Sprintf("Baseload(%s,%d,%s)", pr, period, sl), lp.EQ, 0)
				for _, in := range info.Inputs {
					for _, out := range info.Outputs {
						if _, ok := info.Eff[IO{in, out}]; !ok {
							continue
						}
						if fv, ok := inst.FlowOutVar[FlowKey{pr.Region, period, sl, in, pr.Tech, pr.Vintage, out}]; ok {
							row.Add(fv, m.SegFrac[ref])
						}
						if fv, ok := inst.FlowOutVar[FlowKey{pr.Region, period, ref, in, pr.Tech, pr.Vintage, out}]; ok {
							row.Add(fv, -m.SegFrac[sl])
						}
					}
				}
			}
		}
	}
}

// buildRamping limits the output-rate change of ramping processes
// between consecutive slices.
func (inst *Instance) buildRamping(period int, active []Process) {
	m := inst.M
	slices := m.Slices()
	if len(slices) < 2 {
		return
	}
	for _, pr := range active {
		rt := RT{pr.Region, pr.Tech}
		if !m.Ramping[pr.Tech] {
			continue
		}
		up, hasUp := m.RampUp[rt]
		down, hasDown := m.RampDown[rt]
		if !hasUp && !hasDown {
			continue
		}
		info := m.Info[pr]
		plf := m.ProcessLifeFrac(pr, period)
		c2a := m.CapToAct(pr.Region, pr.Tech)
		cv := inst.CapVar[pr]

		rate := func(row *lp.Constraint, sl Slice, sign float64) {
			for _, in := range info.Inputs {
				for _, out := range info.Outputs {
					if _, ok := info.Eff[IO{in, out}]; !ok {
						continue
					}
					if fv, ok := inst.FlowOutVar[FlowKey{pr.Region, period, sl, in, pr.Tech, pr.Vintage, out}]; ok {
						row.Add(fv, sign/m.SegFrac[sl])
					}
				}
			}
		}

		for k := 1; k < len(slices); k++ {
			cur, prev := slices[k], slices[k-1]
			if hasUp {
				row := inst.con(period, fmt.Sprintf("RampUp(%s,%d,%s)", pr, period, cur), lp.LE, 0)
				rate(row, cur, 1)
				rate(row, prev, -1)
				row.Add(cv, -up*c2a*plf)
			}
			if hasDown {
				row := inst.con(period, fmt.Sprintf("RampDown(%s,%d,%s)", pr, period, cur), lp.LE, 0)
				rate(row, prev, 1)
				rate(row, cur, -1)
				row.Add(cv, -down*c2a*plf)
			}
		}
	}
}

// buildReserveMargin requires credited firm capacity to cover the peak
// implied by each slice's demand rate plus the reserve margin.
func (inst *Instance) buildReserveMargin(period int, active []Process) {
	m := inst.M
	for _, r := range m.Regions {
		var reserve []Process
		for _, pr := range active {
			if pr.Region == r && m.Reserve[pr.Tech] {
				reserve = append(reserve, pr)
			}
		}
		if len(reserve) == 0 {
			continue
		}
		prm := m.PRM(r)
		for _, sl := range m.Slices() {
			var load float64
			for _, dem := range m.DemandComms {
				if total, ok := m.Demand[RPD{r, period, dem}]; ok {
					load += total * m.Distribution(r, sl, dem) / m.SegFrac[sl]
				}
			}
			if load == 0 {
				continue
			}
			row := inst.con(period, fmt.Sprintf("ReserveMargin(%s,%d,%s)", r, period, sl), lp.GE, (1+prm)*load)
			for _, pr := range reserve {
				credit := m.CapCredit(PP{pr, period})
				c2a := m.CapToAct(pr.Region, pr.Tech)
				plf := m.ProcessLifeFrac(pr, period)
				row.Add(inst.CapVar[pr], credit*c2a*plf)
			}
		}
	}
}

// buildEmissions defines the per-period emission accounting variable
// and applies emission limits.
func (inst *Instance) buildEmissions(period int, emis map[regionEmission][]Term) {
	m := inst.M
	for _, r := range m.Regions {
		ev := inst.v(fmt.Sprintf("Emissions(%s,%d)", r, period), period)
		inst.EmissionVar[RP{r, period}] = ev
		inst.TotalEmissions = append(inst.TotalEmissions, Term{Var: ev, Coef: 1})

		acct := inst.con(period, fmt.Sprintf("EmissionAccounting(%s,%d)", r, period), lp.EQ, 0)
		acct.Add(ev, 1)

		for _, e := range m.Emissions {
			terms := emis[regionEmission{r, e}]
			for _, t := range terms {
				acct.Add(t.Var, -t.Coef)
			}
			if limit, ok := m.EmissionLimit[RPE{r, period, e}]; ok {
				row := inst.con(period, fmt.Sprintf("EmissionLimit(%s,%d,%s)", r, period, e), lp.LE, limit)
				for _, t := range terms {
					row.Add(t.Var, t.Coef)
				}
			}
		}
	}
}

// buildCosts defines the discounted per-period cost accounting variable
// and puts it on the objective. Investment is charged in the build
// vintage's period; fixed and variable costs in the operating period.
func (inst *Instance) buildCosts(period int, active []Process, activity map[Process][]Term) {
	m := inst.M
	for _, r := range m.Regions {
		cv := inst.v(fmt.Sprintf("Costs(%s,%d)", r, period), period)
		inst.CostVar[RP{r, period}] = cv
		inst.TotalCost = append(inst.TotalCost, Term{Var: cv, Coef: 1})
		inst.P.AddObjective(cv, inst.opts.ObjWeight)

		acct := inst.con(period, fmt.Sprintf("CostAccounting(%s,%d)", r, period), lp.EQ, 0)
		acct.Add(cv, 1)

		for _, pr := range active {
			if pr.Region != r {
				continue
			}
			capVar := inst.CapVar[pr]
			if pr.Vintage == period {
				if ci, ok := m.CostInvest[pr]; ok {
					coef := ci * m.LoanAnnualize(pr) * m.annuity(m.LoanLife(pr), pr.Vintage)
					acct.Add(capVar, -coef)
				}
			}
			if cf, ok := m.CostFixed[PP{pr, period}]; ok {
				coef := cf * m.annuity(m.ModelProcessLife(pr, period), period)
				acct.Add(capVar, -coef)
			}
			if cvr, ok := m.CostVariable[PP{pr, period}]; ok {
				coef := cvr * m.annuity(m.PeriodLength[period], period)
				for _, t := range activity[pr] {
					acct.Add(t.Var, -coef*t.Coef)
				}
			}
		}
	}
}

// buildGrowth limits how fast a technology's available capacity can
// grow from one period to the next.
func (inst *Instance) buildGrowth() {
	m := inst.M
	rts := make([]RT, 0, len(m.GrowthRateMax))
	for rt := range m.GrowthRateMax {
		rts = append(rts, rt)
	}
	sort.Slice(rts, func(i, j int) bool {
		if rts[i].Region != rts[j].Region {
			return rts[i].Region < rts[j].Region
		}
		return rts[i].Tech < rts[j].Tech
	})

	for _, rt := range rts {
		g := m.GrowthRateMax[rt]
		seed, hasSeed := m.GrowthRateSeed[rt]
		prev := -1
		for _, p := range m.TimeOptimize {
			av, ok := inst.CapAvailVar[RPT{rt.Region, p, rt.Tech}]
			if !ok {
				continue
			}
			if prev < 0 {
				if hasSeed {
					inst.con(p, fmt.Sprintf("GrowthSeed(%s,%d,%s)", rt.Region, p, rt.Tech), lp.LE, seed).Add(av, 1)
				}
				prev = p
				continue
			}
			factor := math.Pow(g, float64(p-prev))
			row := inst.con(p, fmt.Sprintf("GrowthRate(%s,%d,%s)", rt.Region, p, rt.Tech), lp.LE, 0)
			row.Add(av, 1)
			row.Add(inst.CapAvailVar[RPT{rt.Region, prev, rt.Tech}], -factor)
			prev = p
		}
	}
}

// buildMaxResource caps a technology's cumulative production over the
// whole horizon, weighting each period's activity by its length.
func (inst *Instance) buildMaxResource() {
	m := inst.M
	rts := make([]RT, 0, len(m.MaxResource))
	for rt := range m.MaxResource {
		rts = append(rts, rt)
	}
	sort.Slice(rts, func(i, j int) bool {
		if rts[i].Region != rts[j].Region {
			return rts[i].Region < rts[j].Region
		}
		return rts[i].Tech < rts[j].Tech
	})

	for _, rt := range rts {
		var terms []Term
		for _, p := range m.TimeOptimize {
			for _, t := range inst.actByRPT[RPT{rt.Region, p, rt.Tech}] {
				terms = append(terms, Term{Var: t.Var, Coef: m.PeriodLength[p] * t.Coef})
			}
		}
		if len(terms) == 0 {
			continue
		}
		last := m.TimeOptimize[len(m.TimeOptimize)-1]
		row := inst.con(last, fmt.Sprintf("MaxResource(%s,%s)", rt.Region, rt.Tech), lp.LE, m.MaxResource[rt])
		for _, t := range terms {
			row.Add(t.Var, t.Coef)
		}
	}
}

func sortProcesses(prs []Process) {
	sort.Slice(prs, func(i, j int) bool {
		a, b := prs[i], prs[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Tech != b.Tech {
			return a.Tech < b.Tech
		}
		return a.Vintage < b.Vintage
	})
}
