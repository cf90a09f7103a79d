package model

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/meridian-energy/horizon.plan/internal/lp"
)

// FlowKey identifies one slice-resolved flow variable.
type FlowKey struct {
	Region  string
	Period  int
	Slice   Slice
	Input   string
	Tech    string
	Vintage int
	Output  string
}

// AnnualFlowKey identifies one annual flow variable.
type AnnualFlowKey struct {
	Region  string
	Period  int
	Input   string
	Tech    string
	Vintage int
	Output  string
}

// RP indexes per-region, per-period accounting variables.
type RP struct {
	Region string
	Period int
}

// Term is one linear term of an expression over problem variables.
type Term struct {
	Var  int
	Coef float64
}

// BuildOptions customizes assembly. The zero value builds a standalone
// deterministic instance.
type BuildOptions struct {
	// Problem, when set, receives the instance's rows; the extensive
	// form accumulates every scenario into one shared problem.
	Problem *lp.Problem
	// ObjWeight scales the instance's objective contribution; scenario
	// probability in the extensive form. Zero means 1.
	ObjWeight float64
	// VarName maps a canonical variable name and its owning period to
	// the problem-level name. The extensive form uses it to attach
	// variables to scenario-tree nodes so shared history shares
	// variables. Nil means identity.
	VarName func(base string, owner int) string
	// ConName does the same for constraint names. A row whose mapped
	// name already exists in the problem is skipped, so instances that
	// share history share rows instead of doubling them.
	ConName func(base string, owner int) string
	// FixedCapacity pins additional capacity (beyond ExistingCapacity)
	// carried in from earlier myopic windows.
	FixedCapacity map[Process]float64
}

// Instance is an assembled LP plus the handles needed to interpret its
// solution and to re-objective it for MGA and MOO runs.
type Instance struct {
	M *Model
	P *lp.Problem

	TotalCost      []Term
	TotalEmissions []Term
	// Activity collects flow terms per technology, the weighting basis
	// for MGA objectives.
	Activity map[string][]Term

	CapVar           map[Process]int
	CapAvailVar      map[RPT]int
	FlowOutVar       map[FlowKey]int
	FlowInVar        map[FlowKey]int
	CurtailVar       map[FlowKey]int
	FlowOutAnnualVar map[AnnualFlowKey]int
	CostVar          map[RP]int
	EmissionVar      map[RP]int

	opts    BuildOptions
	scratch *lp.Constraint
	emisIdx map[EffKey][]emisEntry
	// actByRPT aggregates per-period activity terms per technology for
	// the activity limits and the lifetime resource cap.
	actByRPT map[RPT][]Term
}

// emisEntry is one emission intensity attached to a flow.
type emisEntry struct {
	emission string
	value    float64
}

// regionEmission keys the per-period emission accumulators.
type regionEmission struct {
	Region   string
	Emission string
}

// Build assembles the model into a linear program. Assembly order is
// deterministic: periods ascending, processes in sorted order, slices
// in declaration order.
func (m *Model) Build(name string, opts *BuildOptions) (*Instance, error) {
	if opts == nil {
		opts = &BuildOptions{}
	}
	if opts.ObjWeight == 0 {
		opts.ObjWeight = 1
	}
	if opts.VarName == nil {
		opts.VarName = func(base string, _ int) string { return base }
	}
	if opts.ConName == nil {
		opts.ConName = func(base string, _ int) string { return base }
	}
	p := opts.Problem
	if p == nil {
		p = lp.NewProblem(name)
	}

	inst := &Instance{
		M:                m,
		P:                p,
		Activity:         make(map[string][]Term),
		CapVar:           make(map[Process]int),
		CapAvailVar:      make(map[RPT]int),
		FlowOutVar:       make(map[FlowKey]int),
		FlowInVar:        make(map[FlowKey]int),
		CurtailVar:       make(map[FlowKey]int),
		FlowOutAnnualVar: make(map[AnnualFlowKey]int),
		CostVar:          make(map[RP]int),
		EmissionVar:      make(map[RP]int),
		opts:             *opts,
		scratch:          lp.NewProblem("scratch").AddConstraint("shared", lp.LE, 0),
		emisIdx:          make(map[EffKey][]emisEntry),
		actByRPT:         make(map[RPT][]Term),
	}

	for k, val := range m.EmissionActivity {
		fk := EffKey{k.Region, k.Input, k.Tech, k.Vintage, k.Output}
		inst.emisIdx[fk] = append(inst.emisIdx[fk], emisEntry{k.Emission, val})
	}
	for _, entries := range inst.emisIdx {
		sort.Slice(entries, func(i, j int) bool { return entries[i].emission < entries[j].emission })
	}

	inst.buildCapacityVars()
	for _, period := range m.TimeOptimize {
		inst.buildPeriod(period)
	}
	inst.buildGrowth()
	inst.buildMaxResource()

	return inst, nil
}

// v declares (or reuses) a variable.
func (inst *Instance) v(base string, owner int) int {
	return inst.P.Var(inst.opts.VarName(base, owner))
}

// con declares the constraint, named through the ConName hook with its
// owning period. When the mapped name already exists the row was built
// by an instance sharing this node; further coefficients go to a
// scratch row and are discarded.
func (inst *Instance) con(owner int, name string, sense lp.Sense, rhs float64) *lp.Constraint {
	full := inst.opts.ConName(name, owner)
	if inst.P.Constraint(full) != nil {
		return inst.scratch
	}
	return inst.P.AddConstraint(full, sense, rhs)
}

// annuity is the discounted sum of n years of a unit annual payment
// beginning in year start, discounted to the first optimize year.
func (m *Model) annuity(n float64, start int) float64 {
	if n <= 0 {
		return 0
	}
	if m.GDR == 0 {
		return n
	}
	x := 1 + m.GDR
	p0 := m.TimeOptimize[0]
	return math.Pow(x, float64(p0-start+1)) * (1 - math.Pow(x, -n)) / m.GDR
}

func (inst *Instance) buildCapacityVars() {
	m := inst.M
	for _, pr := range m.Processes {
		cv := inst.v(fmt.Sprintf("Capacity(%s)", pr), pr.Vintage)
		inst.CapVar[pr] = cv

		if cap, ok := m.ExistingCapacity[pr]; ok {
			inst.con(pr.Vintage, fmt.Sprintf("ExistingCapacity(%s)", pr), lp.EQ, cap).Add(cv, 1)
			continue
		}
		if cap, ok := inst.opts.FixedCapacity[pr]; ok {
			inst.con(pr.Vintage, fmt.Sprintf("FixedCapacity(%s)", pr), lp.EQ, cap).Add(cv, 1)
			continue
		}
		if unit, ok := m.DiscreteCapacity[pr.Tech]; ok {
			uv := inst.v(fmt.Sprintf("CapacityUnits(%s)", pr), pr.Vintage)
			inst.P.SetInteger(uv)
			link := inst.con(pr.Vintage, fmt.Sprintf("DiscreteCapacity(%s)", pr), lp.EQ, 0)
			link.Add(cv, 1)
			link.Add(uv, -unit)
		}
	}
}

// buildPeriod assembles every per-period variable and constraint.
func (inst *Instance) buildPeriod(period int) {
	m := inst.M
	slices := m.Slices()
	active := m.ActiveInPeriod(period)

	// Accumulators keyed by commodity and slice for the balance and
	// demand rows.
	type slComm struct {
		sl   Slice
		comm string
	}
	production := make(map[slComm][]Term)
	consumption := make(map[slComm][]Term)
	demandTerms := make(map[slComm][]Term)

	addProduction := func(sl Slice, comm string, t Term) {
		if m.demand[comm] {
			demandTerms[slComm{sl, comm}] = append(demandTerms[slComm{sl, comm}], t)
			return
		}
		production[slComm{sl, comm}] = append(production[slComm{sl, comm}], t)
	}
	addConsumption := func(sl Slice, comm string, t Term) {
		consumption[slComm{sl, comm}] = append(consumption[slComm{sl, comm}], t)
	}

	// Per-process activity terms for costs, activity limits, and MGA.
	activity := make(map[Process][]Term)
	// Per (input, process) and (output, process) terms for splits.
	inputUse := make(map[string]map[Process][]Term)
	outputUse := make(map[string]map[Process][]Term)

	addInputUse := func(comm string, pr Process, t Term) {
		if inputUse[comm] == nil {
			inputUse[comm] = make(map[Process][]Term)
		}
		inputUse[comm][pr] = append(inputUse[comm][pr], t)
	}
	addOutputUse := func(comm string, pr Process, t Term) {
		if outputUse[comm] == nil {
			outputUse[comm] = make(map[Process][]Term)
		}
		outputUse[comm][pr] = append(outputUse[comm][pr], t)
	}

	emis := make(map[regionEmission][]Term)

	for _, pr := range active {
		info := m.Info[pr]
		plf := m.ProcessLifeFrac(pr, period)
		c2a := m.CapToAct(pr.Region, pr.Tech)
		cv := inst.CapVar[pr]

		if m.Annual[pr.Tech] {
			// Annual techs have one flow variable per io pair and a
			// single capacity row for the period.
			capRow := inst.con(period, fmt.Sprintf("CapacityAnnual(%s,%d)", pr, period), lp.LE, 0)
			capRow.Add(cv, -c2a*plf)

			for _, in := range info.Inputs {
				for _, out := range info.Outputs {
					eff, ok := info.Eff[IO{in, out}]
					if !ok {
						continue
					}
					key := AnnualFlowKey{pr.Region, period, in, pr.Tech, pr.Vintage, out}
					fv := inst.v(fmt.Sprintf("FlowOutAnnual(%s,%d,%s,%s)", pr, period, in, out), period)
					inst.FlowOutAnnualVar[key] = fv
					capRow.Add(fv, 1)

					term := Term{Var: fv, Coef: 1}
					activity[pr] = append(activity[pr], term)
					addOutputUse(out, pr, term)
					addInputUse(in, pr, Term{Var: fv, Coef: 1 / eff})

					// Annual output lands in every slice at the
					// SegFrac rate.
					for _, sl := range slices {
						addProduction(sl, out, Term{Var: fv, Coef: m.SegFrac[sl]})
						addConsumption(sl, in, Term{Var: fv, Coef: m.SegFrac[sl] / eff})
					}
					for _, e := range inst.emisIdx[EffKey{pr.Region, in, pr.Tech, pr.Vintage, out}] {
						re := regionEmission{pr.Region, e.emission}
						emis[re] = append(emis[re], Term{Var: fv, Coef: e.value})
					}
				}
			}
			continue
		}

		isStorage := m.Storage[pr.Tech]

		for _, sl := range slices {
			cf := m.CapacityFactor(pr.Region, sl, pr)
			sense := lp.LE
			if m.Curtailable[pr.Tech] {
				sense = lp.EQ
			}
			capRow := inst.con(period, fmt.Sprintf("Capacity(%s,%d,%s)", pr, period, sl), sense, 0)
			capRow.Add(cv, -cf*c2a*m.SegFrac[sl]*plf)

			for _, in := range info.Inputs {
				for _, out := range info.Outputs {
					eff, ok := info.Eff[IO{in, out}]
					if !ok {
						continue
					}
					key := FlowKey{pr.Region, period, sl, in, pr.Tech, pr.Vintage, out}
					fv := inst.v(fmt.Sprintf("FlowOut(%s,%d,%s,%s,%s)", pr, period, sl, in, out), period)
					inst.FlowOutVar[key] = fv
					capRow.Add(fv, 1)

					term := Term{Var: fv, Coef: 1}
					activity[pr] = append(activity[pr], term)
					addProduction(sl, out, term)
					addOutputUse(out, pr, term)

					if isStorage {
						// Storage consumes through its charging flow,
						// not its discharge.
						chv := inst.v(fmt.Sprintf("FlowIn(%s,%d,%s,%s,%s)", pr, period, sl, in, out), period)
						inst.FlowInVar[key] = chv
						addConsumption(sl, in, Term{Var: chv, Coef: 1})
						addInputUse(in, pr, Term{Var: chv, Coef: 1})
					} else {
						addConsumption(sl, in, Term{Var: fv, Coef: 1 / eff})
						addInputUse(in, pr, Term{Var: fv, Coef: 1 / eff})
					}

					if m.Curtailable[pr.Tech] {
						cuv := inst.v(fmt.Sprintf("Curtailment(%s,%d,%s,%s,%s)", pr, period, sl, in, out), period)
						inst.CurtailVar[key] = cuv
						capRow.Add(cuv, 1)
					}

					for _, e := range inst.emisIdx[EffKey{pr.Region, in, pr.Tech, pr.Vintage, out}] {
						re := regionEmission{pr.Region, e.emission}
						emis[re] = append(emis[re], Term{Var: fv, Coef: e.value})
					}
				}
			}
		}

		if isStorage {
			inst.buildStorage(pr, period)
		}
	}

	// Demand rows: equality per (r, slice, demand commodity) with data.
	for _, r := range m.Regions {
		for _, dem := range m.DemandComms {
			total, ok := m.Demand[RPD{r, period, dem}]
			if !ok {
				continue
			}
			for _, sl := range slices {
				rhs := total * m.Distribution(r, sl, dem)
				row := inst.con(period, fmt.Sprintf("Demand(%s,%d,%s,%s)", r, period, sl, dem), lp.EQ, rhs)
				for _, t := range demandTerms[slComm{sl, dem}] {
					if inst.regionOfVar(t.Var, r) {
						row.Add(t.Var, t.Coef)
					}
				}
			}
		}
	}

	// Commodity balance: production >= consumption per physical
	// commodity and slice, only where either side has terms.
	for _, r := range m.Regions {
		for _, c := range m.Physical {
			for _, sl := range slices {
				prod := production[slComm{sl, c}]
				cons := consumption[slComm{sl, c}]
				if len(prod) == 0 {
					// Commodities nothing produces are unconstrained
					// supplies; source flows draw on them freely.
					continue
				}
				row := inst.con(period, fmt.Sprintf("CommodityBalance(%s,%d,%s,%s)", r, period, sl, c), lp.GE, 0)
				for _, t := range prod {
					if inst.regionOfVar(t.Var, r) {
						row.Add(t.Var, t.Coef)
					}
				}
				for _, t := range cons {
					if inst.regionOfVar(t.Var, r) {
						row.Add(t.Var, -t.Coef)
					}
				}
			}
		}
	}

	inst.buildCapacityAvailable(period, active)
	inst.buildActivityLimits(period, activity)
	inst.buildSplits(period, inputUse, outputUse)
	inst.buildResourceBounds(period, outputUse)
	inst.buildBaseload(period, active)
	inst.buildRamping(period, active)
	inst.buildReserveMargin(period, active)
	inst.buildEmissions(period, emis)
	inst.buildCosts(period, active, activity)

	// Record activity terms for MGA weighting. Sorted so term order
	// inside each technology's list is stable across builds.
	prs := make([]Process, 0, len(activity))
	for pr := range activity {
		prs = append(prs, pr)
	}
	sortProcesses(prs)
	for _, pr := range prs {
		inst.Activity[pr.Tech] = append(inst.Activity[pr.Tech], activity[pr]...)
	}
}

// regionOfVar filters accumulated terms by region. Terms are built
// per-process, so the variable's canonical name starts with the kind
// and region; rather than parse names, the accumulators above only mix
// regions when processes from different regions share a commodity.
// Cross-region exchange is rejected at validation, so region filtering
// here is a name check kept cheap by the canonical "Kind(region,"
// layout.
func (inst *Instance) regionOfVar(v int, region string) bool {
	// All flows of a single-region model trivially match.
	if len(inst.M.Regions) == 1 {
		return true
	}
	name := inst.P.VarName(v)
	i := strings.IndexByte(name, '(')
	if i < 0 {
		return false
	}
	rest := name[i+1:]
	j := strings.IndexByte(rest, ',')
	if j < 0 {
		return false
	}
	return rest[:j] == region
}
