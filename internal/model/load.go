package model

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/meridian-energy/horizon.plan/internal/dat"
	"github.com/meridian-energy/horizon.plan/internal/log"
)

// Set and parameter names recognized in data files.
const (
	setTimeExist     = "time_exist"
	setTimeFuture    = "time_future"
	setSeasons       = "time_season"
	setTimesOfDay    = "time_of_day"
	setRegions       = "regions"
	setTechResource  = "tech_resource"
	setTechProd      = "tech_production"
	setTechBaseload  = "tech_baseload"
	setTechStorage   = "tech_storage"
	setTechCurtail   = "tech_curtailment"
	setTechReserve   = "tech_reserve"
	setTechRamping   = "tech_ramping"
	setTechAnnual    = "tech_annual"
	setCommPhysical  = "commodity_physical"
	setCommDemand    = "commodity_demand"
	setCommEmissions = "commodity_emissions"

	sectorSetPrefix = "tech_sector_"
)

// paramNames lists every parameter the loader recognizes, for callers
// that validate sparse data fragments before merging them.
var paramNames = map[string]bool{
	"GlobalDiscountRate":         true,
	"SegFrac":                    true,
	"Demand":                     true,
	"DemandSpecificDistribution": true,
	"Efficiency":                 true,
	"ExistingCapacity":           true,
	"CapacityToActivity":         true,
	"CapacityFactorTech":         true,
	"CapacityFactorProcess":      true,
	"LifetimeTech":               true,
	"LifetimeProcess":            true,
	"LifetimeLoanTech":           true,
	"DiscountRate":               true,
	"CostInvest":                 true,
	"CostFixed":                  true,
	"CostVariable":               true,
	"MinCapacity":                true,
	"MaxCapacity":                true,
	"MinActivity":                true,
	"MaxActivity":                true,
	"MaxResource":                true,
	"GrowthRateMax":              true,
	"GrowthRateSeed":             true,
	"RampUp":                     true,
	"RampDown":                   true,
	"StorageDuration":            true,
	"EmissionActivity":           true,
	"EmissionLimit":              true,
	"PlanningReserveMargin":      true,
	"CapacityCredit":             true,
	"StorageInitFrac":            true,
	"TechInputSplit":             true,
	"TechOutputSplit":            true,
	"ResourceBound":              true,
	"DiscreteCapacity":           true,
}

// KnownParam reports whether the loader recognizes the parameter name.
func KnownParam(name string) bool { return paramNames[name] }

// loader accumulates every load error so a bad data file reports all of
// its problems in one pass.
type loader struct {
	f    *dat.File
	m    *Model
	errs []string
}

func (l *loader) errorf(format string, args ...any) {
	l.errs = append(l.errs, fmt.Sprintf(format, args...))
}

// Load builds a Model from parsed data files. Validation errors
// accumulate; the returned error lists all of them.
func Load(f *dat.File) (*Model, error) {
	l := &loader{f: f, m: &Model{}}

	l.loadTime()
	l.loadSpace()
	l.loadTechs()
	l.loadCommodities()
	l.loadParams()

	if len(l.errs) == 0 {
		l.m.derive()
		l.dropRetired()
		l.validateStructure()
	}

	if len(l.errs) > 0 {
		msg := "invalid model data:"
		for _, e := range l.errs {
			msg += "\n  " + e
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return l.m, nil
}

func (l *loader) intSet(name string) []int {
	vals := l.f.Set(name)
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			l.errorf("set %s: non-integer year %q", name, v)
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	for i := 1; i < len(out); i++ {
		if out[i] == out[i-1] {
			l.errorf("set %s: duplicate year %d", name, out[i])
		}
	}
	return out
}

func (l *loader) loadTime() {
	m := l.m
	m.TimeExist = l.intSet(setTimeExist)
	m.TimeFuture = l.intSet(setTimeFuture)

	if len(m.TimeFuture) < 2 {
		l.errorf("set %s needs at least two years (the last closes the horizon)", setTimeFuture)
		return
	}
	if len(m.TimeExist) > 0 && m.TimeExist[len(m.TimeExist)-1] >= m.TimeFuture[0] {
		l.errorf("every %s year must precede the first %s year", setTimeExist, setTimeFuture)
	}
	m.TimeOptimize = m.TimeFuture[:len(m.TimeFuture)-1]
}

func (l *loader) loadSpace() {
	m := l.m
	m.Seasons = l.f.Set(setSeasons)
	m.TimesOfDay = l.f.Set(setTimesOfDay)
	m.Regions = l.f.Set(setRegions)
	if len(m.Seasons) == 0 {
		l.errorf("set %s is empty", setSeasons)
	}
	if len(m.TimesOfDay) == 0 {
		l.errorf("set %s is empty", setTimesOfDay)
	}
	if len(m.Regions) == 0 {
		l.errorf("set %s is empty", setRegions)
	}
}

func (l *loader) loadTechs() {
	m := l.m
	m.ResourceTechs = l.f.Set(setTechResource)
	m.ProductionTechs = l.f.Set(setTechProd)

	seen := make(map[string]bool)
	for _, t := range m.ResourceTechs {
		seen[t] = true
	}
	for _, t := range m.ProductionTechs {
		if seen[t] {
			// Resource and production sets must be disjoint; the
			// exporter's union flag set makes overlap here expected
			// only for db inputs, where resource wins.
			continue
		}
		seen[t] = true
	}
	m.AllTechs = append(append([]string{}, m.ResourceTechs...), m.ProductionTechs...)
	m.AllTechs = dedup(m.AllTechs)
	m.tech = make(map[string]bool, len(m.AllTechs))
	for _, t := range m.AllTechs {
		m.tech[t] = true
	}

	attr := func(name string) map[string]bool {
		out := make(map[string]bool)
		for _, t := range l.f.Set(name) {
			if !m.tech[t] {
				l.errorf("set %s: unknown technology %q", name, t)
				continue
			}
			out[t] = true
		}
		return out
	}
	m.Baseload = attr(setTechBaseload)
	m.Storage = attr(setTechStorage)
	m.Curtailable = attr(setTechCurtail)
	m.Reserve = attr(setTechReserve)
	m.Ramping = attr(setTechRamping)
	m.Annual = attr(setTechAnnual)

	m.Sector = make(map[string]string)
	for name, vals := range l.f.Sets {
		if len(name) <= len(sectorSetPrefix) || name[:len(sectorSetPrefix)] != sectorSetPrefix {
			continue
		}
		sector := name[len(sectorSetPrefix):]
		for _, t := range vals {
			if m.tech[t] {
				m.Sector[t] = sector
			}
		}
	}
}

func dedup(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := s[:0]
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (l *loader) loadCommodities() {
	m := l.m
	m.Physical = l.f.Set(setCommPhysical)
	m.DemandComms = l.f.Set(setCommDemand)
	m.Emissions = l.f.Set(setCommEmissions)

	m.commodity = make(map[string]bool)
	m.carrier = make(map[string]bool)
	m.demand = make(map[string]bool)
	m.emission = make(map[string]bool)
	for _, c := range m.Physical {
		m.commodity[c] = true
		m.carrier[c] = true
	}
	for _, c := range m.DemandComms {
		if m.commodity[c] {
			l.errorf("commodity %q declared as both physical and demand", c)
		}
		m.commodity[c] = true
		m.carrier[c] = true
		m.demand[c] = true
	}
	for _, c := range m.Emissions {
		if m.commodity[c] {
			l.errorf("commodity %q declared as emission and carrier", c)
		}
		m.commodity[c] = true
		m.emission[c] = true
	}
	if len(m.DemandComms) == 0 {
		l.errorf("set %s is empty", setCommDemand)
	}
}

// param index decoding helpers. Each returns false (and records an
// error) when a field does not decode.

func (l *loader) year(param, field string) (int, bool) {
	n, err := strconv.Atoi(field)
	if err != nil {
		l.errorf("param %s: non-integer year %q", param, field)
		return 0, false
	}
	return n, true
}

func (l *loader) loadParams() {
	m := l.m

	if v, ok := l.f.Scalar("GlobalDiscountRate"); ok {
		m.GDR = v
	}

	m.SegFrac = make(map[Slice]float64)
	l.eachRow("SegFrac", 2, func(idx []string, v float64) {
		m.SegFrac[Slice{idx[0], idx[1]}] = v
	})

	m.Demand = make(map[RPD]float64)
	l.eachRow("Demand", 3, func(idx []string, v float64) {
		p, ok := l.year("Demand", idx[1])
		if !ok {
			return
		}
		m.Demand[RPD{idx[0], p, idx[2]}] = v
	})

	m.DSD = make(map[RSDD]float64)
	l.eachRow("DemandSpecificDistribution", 4, func(idx []string, v float64) {
		m.DSD[RSDD{idx[0], Slice{idx[1], idx[2]}, idx[3]}] = v
	})

	m.Efficiency = make(map[EffKey]float64)
	l.eachRow("Efficiency", 5, func(idx []string, v float64) {
		vin, ok := l.year("Efficiency", idx[3])
		if !ok {
			return
		}
		m.Efficiency[EffKey{idx[0], idx[1], idx[2], vin, idx[4]}] = v
	})

	m.ExistingCapacity = make(map[Process]float64)
	l.eachRow("ExistingCapacity", 3, func(idx []string, v float64) {
		vin, ok := l.year("ExistingCapacity", idx[2])
		if !ok {
			return
		}
		m.ExistingCapacity[Process{idx[0], idx[1], vin}] = v
	})

	m.C2A = make(map[RT]float64)
	l.eachRow("CapacityToActivity", 2, func(idx []string, v float64) {
		m.C2A[RT{idx[0], idx[1]}] = v
	})

	m.CFTech = make(map[RSDT]float64)
	l.eachRow("CapacityFactorTech", 4, func(idx []string, v float64) {
		m.CFTech[RSDT{idx[0], Slice{idx[1], idx[2]}, idx[3]}] = v
	})

	m.CFProcess = make(map[RSDTV]float64)
	l.eachRow("CapacityFactorProcess", 5, func(idx []string, v float64) {
		vin, ok := l.year("CapacityFactorProcess", idx[4])
		if !ok {
			return
		}
		m.CFProcess[RSDTV{idx[0], Slice{idx[1], idx[2]}, idx[3], vin}] = v
	})

	m.LifeTech = make(map[RT]float64)
	l.eachRow("LifetimeTech", 2, func(idx []string, v float64) {
		m.LifeTech[RT{idx[0], idx[1]}] = v
	})

	m.LifeProcess = make(map[Process]float64)
	l.eachRow("LifetimeProcess", 3, func(idx []string, v float64) {
		vin, ok := l.year("LifetimeProcess", idx[2])
		if !ok {
			return
		}
		m.LifeProcess[Process{idx[0], idx[1], vin}] = v
	})

	m.LoanLifeTech = make(map[RT]float64)
	l.eachRow("LifetimeLoanTech", 2, func(idx []string, v float64) {
		m.LoanLifeTech[RT{idx[0], idx[1]}] = v
	})

	m.DiscountRate = make(map[Process]float64)
	l.eachRow("DiscountRate", 3, func(idx []string, v float64) {
		vin, ok := l.year("DiscountRate", idx[2])
		if !ok {
			return
		}
		m.DiscountRate[Process{idx[0], idx[1], vin}] = v
	})

	m.CostInvest = make(map[Process]float64)
	l.eachRow("CostInvest", 3, func(idx []string, v float64) {
		vin, ok := l.year("CostInvest", idx[2])
		if !ok {
			return
		}
		m.CostInvest[Process{idx[0], idx[1], vin}] = v
	})

	m.CostFixed = make(map[PP]float64)
	l.eachRow("CostFixed", 4, func(idx []string, v float64) {
		p, ok1 := l.year("CostFixed", idx[1])
		vin, ok2 := l.year("CostFixed", idx[3])
		if !ok1 || !ok2 {
			return
		}
		m.CostFixed[PP{Process{idx[0], idx[2], vin}, p}] = v
	})

	m.CostVariable = make(map[PP]float64)
	l.eachRow("CostVariable", 4, func(idx []string, v float64) {
		p, ok1 := l.year("CostVariable", idx[1])
		vin, ok2 := l.year("CostVariable", idx[3])
		if !ok1 || !ok2 {
			return
		}
		m.CostVariable[PP{Process{idx[0], idx[2], vin}, p}] = v
	})

	loadRPT := func(name string, dst *map[RPT]float64) {
		*dst = make(map[RPT]float64)
		l.eachRow(name, 3, func(idx []string, v float64) {
			p, ok := l.year(name, idx[1])
			if !ok {
				return
			}
			(*dst)[RPT{idx[0], p, idx[2]}] = v
		})
	}
	loadRPT("MinCapacity", &m.MinCapacity)
	loadRPT("MaxCapacity", &m.MaxCapacity)
	loadRPT("MinActivity", &m.MinActivity)
	loadRPT("MaxActivity", &m.MaxActivity)

	loadRT := func(name string, dst *map[RT]float64) {
		*dst = make(map[RT]float64)
		l.eachRow(name, 2, func(idx []string, v float64) {
			(*dst)[RT{idx[0], idx[1]}] = v
		})
	}
	loadRT("MaxResource", &m.MaxResource)
	loadRT("GrowthRateMax", &m.GrowthRateMax)
	loadRT("GrowthRateSeed", &m.GrowthRateSeed)
	loadRT("RampUp", &m.RampUp)
	loadRT("RampDown", &m.RampDown)
	loadRT("StorageDuration", &m.StorageDuration)

	m.EmissionActivity = make(map[EmisKey]float64)
	l.eachRow("EmissionActivity", 6, func(idx []string, v float64) {
		vin, ok := l.year("EmissionActivity", idx[4])
		if !ok {
			return
		}
		m.EmissionActivity[EmisKey{idx[0], idx[1], idx[2], idx[3], vin, idx[5]}] = v
	})

	m.EmissionLimit = make(map[RPE]float64)
	l.eachRow("EmissionLimit", 3, func(idx []string, v float64) {
		p, ok := l.year("EmissionLimit", idx[1])
		if !ok {
			return
		}
		m.EmissionLimit[RPE{idx[0], p, idx[2]}] = v
	})

	m.ReserveMargin = make(map[string]float64)
	l.eachRow("PlanningReserveMargin", 1, func(idx []string, v float64) {
		m.ReserveMargin[idx[0]] = v
	})

	m.CapacityCredit = make(map[PP]float64)
	l.eachRow("CapacityCredit", 4, func(idx []string, v float64) {
		p, ok1 := l.year("CapacityCredit", idx[1])
		vin, ok2 := l.year("CapacityCredit", idx[3])
		if !ok1 || !ok2 {
			return
		}
		m.CapacityCredit[PP{Process{idx[0], idx[2], vin}, p}] = v
	})

	m.StorageInitFrac = make(map[Process]float64)
	l.eachRow("StorageInitFrac", 3, func(idx []string, v float64) {
		vin, ok := l.year("StorageInitFrac", idx[2])
		if !ok {
			return
		}
		m.StorageInitFrac[Process{idx[0], idx[1], vin}] = v
	})

	m.TechInputSplit = make(map[RPIT]float64)
	l.eachRow("TechInputSplit", 4, func(idx []string, v float64) {
		p, ok := l.year("TechInputSplit", idx[1])
		if !ok {
			return
		}
		m.TechInputSplit[RPIT{idx[0], p, idx[2], idx[3]}] = v
	})

	m.TechOutputSplit = make(map[RPTO]float64)
	l.eachRow("TechOutputSplit", 4, func(idx []string, v float64) {
		p, ok := l.year("TechOutputSplit", idx[1])
		if !ok {
			return
		}
		m.TechOutputSplit[RPTO{idx[0], p, idx[2], idx[3]}] = v
	})

	m.ResourceBound = make(map[RPC]float64)
	l.eachRow("ResourceBound", 3, func(idx []string, v float64) {
		p, ok := l.year("ResourceBound", idx[1])
		if !ok {
			return
		}
		m.ResourceBound[RPC{idx[0], p, idx[2]}] = v
	})

	m.DiscreteCapacity = make(map[string]float64)
	l.eachRow("DiscreteCapacity", 1, func(idx []string, v float64) {
		m.DiscreteCapacity[idx[0]] = v
	})
}

// eachRow iterates a parameter's rows, checking arity once.
func (l *loader) eachRow(name string, arity int, fn func(idx []string, v float64)) {
	p := l.f.Param(name)
	if p == nil {
		return
	}
	if p.Arity != arity {
		l.errorf("param %s: arity %d, want %d", name, p.Arity, arity)
		return
	}
	for _, r := range p.Rows {
		fn(r.Index, r.Value)
	}
}

// dropRetired removes existing processes whose lifetime ends before the
// first optimize period. They cannot affect the solution and would only
// create dead variables.
func (l *loader) dropRetired() {
	m := l.m
	if len(m.TimeOptimize) == 0 {
		return
	}
	p0 := m.TimeOptimize[0]
	logger := log.WithComponent("model")

	kept := m.Processes[:0]
	for _, pr := range m.Processes {
		if pr.Vintage < p0 && float64(pr.Vintage)+m.Life(pr) <= float64(p0) {
			logger.Warn().
				Str("process", pr.String()).
				Int("first_period", p0).
				Msg("existing process retires before the optimization horizon; dropping")
			delete(m.Info, pr)
			delete(m.ExistingCapacity, pr)
			continue
		}
		kept = append(kept, pr)
	}
	m.Processes = kept
}
