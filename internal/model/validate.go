package model

import "math"

const sumTol = 1e-3

// validateStructure runs the cross-set checks that need the derived
// process table. Every failure is recorded; nothing aborts early.
func (l *loader) validateStructure() {
	m := l.m

	// Slice fractions must cover the year.
	var segSum float64
	for _, sl := range m.Slices() {
		v, ok := m.SegFrac[sl]
		if !ok {
			l.errorf("SegFrac: missing entry for slice (%s)", sl)
			continue
		}
		segSum += v
	}
	if math.Abs(segSum-1) > sumTol {
		l.errorf("SegFrac entries sum to %g, want 1", segSum)
	}

	// Each specified demand distribution must also cover the year.
	type rd struct {
		r, dem string
	}
	dsdSums := make(map[rd]float64)
	for k, v := range m.DSD {
		dsdSums[rd{k.Region, k.Dem}] += v
	}
	for k, sum := range dsdSums {
		if math.Abs(sum-1) > sumTol {
			l.errorf("DemandSpecificDistribution for (%s,%s) sums to %g, want 1", k.r, k.dem, sum)
		}
	}

	region := make(map[string]bool, len(m.Regions))
	for _, r := range m.Regions {
		region[r] = true
	}
	vintageAll := make(map[int]bool)
	for _, v := range m.TimeExist {
		vintageAll[v] = true
	}
	for _, v := range m.TimeOptimize {
		vintageAll[v] = true
	}

	for k, v := range m.Efficiency {
		switch {
		case !region[k.Region]:
			l.errorf("Efficiency (%s,%s,%s,%d,%s): unknown region %q", k.Region, k.Input, k.Tech, k.Vintage, k.Output, k.Region)
		case !m.carrier[k.Input] || m.demand[k.Input]:
			l.errorf("Efficiency (%s,%s,%s,%d,%s): input %q is not a physical commodity", k.Region, k.Input, k.Tech, k.Vintage, k.Output, k.Input)
		case !m.tech[k.Tech]:
			l.errorf("Efficiency (%s,%s,%s,%d,%s): unknown technology %q", k.Region, k.Input, k.Tech, k.Vintage, k.Output, k.Tech)
		case !vintageAll[k.Vintage]:
			l.errorf("Efficiency (%s,%s,%s,%d,%s): vintage %d is not a model year", k.Region, k.Input, k.Tech, k.Vintage, k.Output, k.Vintage)
		case !m.carrier[k.Output]:
			l.errorf("Efficiency (%s,%s,%s,%d,%s): output %q is not a carrier", k.Region, k.Input, k.Tech, k.Vintage, k.Output, k.Output)
		case v <= 0:
			l.errorf("Efficiency (%s,%s,%s,%d,%s): value %g must be positive", k.Region, k.Input, k.Tech, k.Vintage, k.Output, v)
		}
	}

	// Every demand must be positive and producible.
	producible := make(map[string]bool)
	for _, pr := range m.Processes {
		for _, out := range m.Info[pr].Outputs {
			producible[out] = true
		}
	}
	for k, v := range m.Demand {
		if v <= 0 {
			l.errorf("Demand (%s,%d,%s): value %g must be positive", k.Region, k.Period, k.Dem, v)
		}
	}
	for _, dem := range m.DemandComms {
		if !producible[dem] {
			l.errorf("demand commodity %q has no producing technology", dem)
		}
	}

	// Attribute-set compatibility.
	for t := range m.Storage {
		if m.Annual[t] {
			l.errorf("technology %q cannot be both storage and annual", t)
		}
	}
	for t := range m.Ramping {
		if m.Annual[t] {
			l.errorf("ramping technology %q cannot be annual", t)
		}
		if m.Storage[t] {
			l.errorf("ramping technology %q cannot be storage", t)
		}
	}

	// Existing capacity must belong to a declared process and an exist
	// vintage.
	exist := make(map[int]bool)
	for _, v := range m.TimeExist {
		exist[v] = true
	}
	for pr := range m.ExistingCapacity {
		if !exist[pr.Vintage] {
			l.errorf("ExistingCapacity (%s): vintage %d is not an exist year", pr, pr.Vintage)
		}
	}
}
