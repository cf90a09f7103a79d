// Package model holds the energy-system capacity-expansion model: sets
// and parameters loaded from data files, derived process bookkeeping,
// and the assembly of a model instance into a linear program.
package model

import (
	"fmt"
	"math"
	"sort"
)

// Parameter defaults, matching the conventional values carried by input
// databases that omit them.
const (
	DefaultLifetime        = 40.0 // years
	DefaultLoanLifetime    = 10.0 // years
	DefaultDiscountRate    = 0.05
	DefaultReserveMargin   = 0.2
	DefaultStorageDuration = 4.0 // hours
	HoursPerYear           = 8760.0
)

// Slice is one time slice: a season crossed with a time of day.
type Slice struct {
	Season string
	TOD    string
}

func (s Slice) String() string { return s.Season + "," + s.TOD }

// Process identifies one technology vintage in one region.
type Process struct {
	Region  string
	Tech    string
	Vintage int
}

func (p Process) String() string {
	return fmt.Sprintf("%s,%s,%d", p.Region, p.Tech, p.Vintage)
}

// PP is a process in a specific operating period.
type PP struct {
	Proc   Process
	Period int
}

// RT indexes per-region, per-technology parameters.
type RT struct {
	Region string
	Tech   string
}

// RPT indexes per-region, per-period, per-technology parameters.
type RPT struct {
	Region string
	Period int
	Tech   string
}

// RPD indexes demand: region, period, demand commodity.
type RPD struct {
	Region string
	Period int
	Dem    string
}

// RPC indexes region, period, physical commodity.
type RPC struct {
	Region string
	Period int
	Comm   string
}

// RPE indexes emission limits: region, period, emission commodity.
type RPE struct {
	Region   string
	Period   int
	Emission string
}

// RSDD indexes the demand-specific distribution.
type RSDD struct {
	Region string
	Slice  Slice
	Dem    string
}

// RSDT indexes per-slice, per-tech capacity factors.
type RSDT struct {
	Region string
	Slice  Slice
	Tech   string
}

// RSDTV indexes per-slice, per-process capacity factors.
type RSDTV struct {
	Region  string
	Slice   Slice
	Tech    string
	Vintage int
}

// RPIT indexes input-split shares: region, period, input, tech.
type RPIT struct {
	Region string
	Period int
	Input  string
	Tech   string
}

// RPTO indexes output-split shares: region, period, tech, output.
type RPTO struct {
	Region string
	Period int
	Tech   string
	Output string
}

// EffKey indexes one efficiency entry.
type EffKey struct {
	Region  string
	Input   string
	Tech    string
	Vintage int
	Output  string
}

// EmisKey indexes emission intensity per flow.
type EmisKey struct {
	Region   string
	Emission string
	Input    string
	Tech     string
	Vintage  int
	Output   string
}

// IO is an input/output commodity pair of a process.
type IO struct {
	Input  string
	Output string
}

// ProcInfo is the derived per-process bookkeeping: its efficiency table
// and resolved lifetimes.
type ProcInfo struct {
	Inputs  []string // distinct inputs, insertion order
	Outputs []string // distinct outputs, insertion order
	Eff     map[IO]float64
}

// Model is a loaded and validated model instance.
type Model struct {
	GDR float64

	TimeExist    []int
	TimeFuture   []int // boundary years; the last closes the horizon
	TimeOptimize []int
	Seasons      []string
	TimesOfDay   []string
	Regions      []string

	ResourceTechs   []string
	ProductionTechs []string
	AllTechs        []string

	Baseload    map[string]bool
	Storage     map[string]bool
	Curtailable map[string]bool
	Ramping     map[string]bool
	Reserve     map[string]bool
	Annual      map[string]bool
	Sector      map[string]string

	Physical    []string
	DemandComms []string
	Emissions   []string

	SegFrac          map[Slice]float64
	Demand           map[RPD]float64
	DSD              map[RSDD]float64
	Efficiency       map[EffKey]float64
	ExistingCapacity map[Process]float64
	C2A              map[RT]float64
	CFTech           map[RSDT]float64
	CFProcess        map[RSDTV]float64
	LifeTech         map[RT]float64
	LifeProcess      map[Process]float64
	LoanLifeTech     map[RT]float64
	DiscountRate     map[Process]float64
	CostInvest       map[Process]float64
	CostFixed        map[PP]float64
	CostVariable     map[PP]float64
	MinCapacity      map[RPT]float64
	MaxCapacity      map[RPT]float64
	MinActivity      map[RPT]float64
	MaxActivity      map[RPT]float64
	MaxResource      map[RT]float64
	GrowthRateMax    map[RT]float64
	GrowthRateSeed   map[RT]float64
	EmissionActivity map[EmisKey]float64
	EmissionLimit    map[RPE]float64
	RampUp           map[RT]float64
	RampDown         map[RT]float64
	ReserveMargin    map[string]float64
	CapacityCredit   map[PP]float64
	StorageDuration  map[RT]float64
	StorageInitFrac  map[Process]float64
	TechInputSplit   map[RPIT]float64
	TechOutputSplit  map[RPTO]float64
	ResourceBound    map[RPC]float64
	DiscreteCapacity map[string]float64

	// Derived.
	PeriodLength map[int]float64
	Processes    []Process // every process with efficiency data, ordered
	Info         map[Process]*ProcInfo
	tech         map[string]bool
	commodity    map[string]bool
	carrier      map[string]bool
	demand       map[string]bool
	emission     map[string]bool
}

// Slices returns the ordered season x time-of-day grid.
func (m *Model) Slices() []Slice {
	out := make([]Slice, 0, len(m.Seasons)*len(m.TimesOfDay))
	for _, s := range m.Seasons {
		for _, d := range m.TimesOfDay {
			out = append(out, Slice{Season: s, TOD: d})
		}
	}
	return out
}

// VintageExist returns the existing-capacity vintage years.
func (m *Model) VintageExist() []int { return m.TimeExist }

// VintageOptimize returns the buildable vintage years.
func (m *Model) VintageOptimize() []int { return m.TimeOptimize }

// Life resolves a process lifetime through the per-process, per-tech,
// default chain.
func (m *Model) Life(pr Process) float64 {
	if v, ok := m.LifeProcess[pr]; ok {
		return v
	}
	if v, ok := m.LifeTech[RT{pr.Region, pr.Tech}]; ok {
		return v
	}
	return DefaultLifetime
}

// LoanLife resolves a loan lifetime.
func (m *Model) LoanLife(pr Process) float64 {
	if v, ok := m.LoanLifeTech[RT{pr.Region, pr.Tech}]; ok {
		return v
	}
	return DefaultLoanLifetime
}

// DR resolves a process discount rate.
func (m *Model) DR(pr Process) float64 {
	if v, ok := m.DiscountRate[pr]; ok {
		return v
	}
	return DefaultDiscountRate
}

// CapacityFactor resolves a per-slice capacity factor through the
// per-process, per-tech, default chain.
func (m *Model) CapacityFactor(r string, sl Slice, pr Process) float64 {
	if v, ok := m.CFProcess[RSDTV{r, sl, pr.Tech, pr.Vintage}]; ok {
		return v
	}
	if v, ok := m.CFTech[RSDT{r, sl, pr.Tech}]; ok {
		return v
	}
	return 1
}

// CapToAct returns the capacity-to-activity conversion for a tech.
func (m *Model) CapToAct(r, t string) float64 {
	if v, ok := m.C2A[RT{r, t}]; ok {
		return v
	}
	return 1
}

// CapCredit returns the firm-capacity credit of a process in a period.
func (m *Model) CapCredit(pp PP) float64 {
	if v, ok := m.CapacityCredit[pp]; ok {
		return v
	}
	return 1
}

// PRM returns the planning reserve margin for a region.
func (m *Model) PRM(r string) float64 {
	if v, ok := m.ReserveMargin[r]; ok {
		return v
	}
	return DefaultReserveMargin
}

// StorDuration returns the storage duration in hours for a tech.
func (m *Model) StorDuration(r, t string) float64 {
	if v, ok := m.StorageDuration[RT{r, t}]; ok {
		return v
	}
	return DefaultStorageDuration
}

// Distribution returns the share of annual demand for dem that falls in
// slice sl: the demand-specific distribution when given, SegFrac
// otherwise.
func (m *Model) Distribution(r string, sl Slice, dem string) float64 {
	if m.hasDSD(r, dem) {
		return m.DSD[RSDD{r, sl, dem}]
	}
	return m.SegFrac[sl]
}

func (m *Model) hasDSD(r, dem string) bool {
	for k := range m.DSD {
		if k.Region == r && k.Dem == dem {
			return true
		}
	}
	return false
}

// Active reports whether process pr operates in period p: built at or
// before p and not yet retired.
func (m *Model) Active(pr Process, p int) bool {
	if pr.Vintage > p {
		return false
	}
	return float64(p) < float64(pr.Vintage)+m.Life(pr)
}

// ActiveInPeriod returns the processes operating in period p, in
// deterministic order.
func (m *Model) ActiveInPeriod(p int) []Process {
	var out []Process
	for _, pr := range m.Processes {
		if m.Active(pr, p) {
			out = append(out, pr)
		}
	}
	return out
}

// ModelProcessLife is the years of period p during which process pr
// still operates: min(period length, remaining life).
func (m *Model) ModelProcessLife(pr Process, p int) float64 {
	remaining := float64(pr.Vintage) + m.Life(pr) - float64(p)
	if pl := m.PeriodLength[p]; remaining > pl {
		return pl
	}
	return remaining
}

// ProcessLifeFrac is ModelProcessLife over the period length, in (0,1].
func (m *Model) ProcessLifeFrac(pr Process, p int) float64 {
	return m.ModelProcessLife(pr, p) / m.PeriodLength[p]
}

// LoanAnnualize is the capital-recovery factor for a process loan.
func (m *Model) LoanAnnualize(pr Process) float64 {
	dr := m.DR(pr)
	lln := m.LoanLife(pr)
	if dr == 0 {
		return 1 / lln
	}
	return dr / (1 - math.Pow(1+dr, -lln))
}

// derive fills in everything computed from the raw sets and parameters.
// Called by Load after validation.
func (m *Model) derive() {
	m.PeriodLength = make(map[int]float64, len(m.TimeOptimize))
	for i, p := range m.TimeOptimize {
		var next int
		if i+1 < len(m.TimeOptimize) {
			next = m.TimeOptimize[i+1]
		} else {
			next = m.TimeFuture[len(m.TimeFuture)-1]
		}
		m.PeriodLength[p] = float64(next - p)
	}

	// Processes exist iff they have at least one efficiency entry.
	m.Info = make(map[Process]*ProcInfo)
	for k, eff := range m.Efficiency {
		pr := Process{Region: k.Region, Tech: k.Tech, Vintage: k.Vintage}
		info := m.Info[pr]
		if info == nil {
			info = &ProcInfo{Eff: make(map[IO]float64)}
			m.Info[pr] = info
			m.Processes = append(m.Processes, pr)
		}
		if _, ok := info.Eff[IO{k.Input, k.Output}]; !ok {
			if !contains(info.Inputs, k.Input) {
				info.Inputs = append(info.Inputs, k.Input)
			}
			if !contains(info.Outputs, k.Output) {
				info.Outputs = append(info.Outputs, k.Output)
			}
		}
		info.Eff[IO{k.Input, k.Output}] = eff
	}
	sort.Slice(m.Processes, func(i, j int) bool {
		a, b := m.Processes[i], m.Processes[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Tech != b.Tech {
			return a.Tech < b.Tech
		}
		return a.Vintage < b.Vintage
	})
	for _, info := range m.Info {
		sort.Strings(info.Inputs)
		sort.Strings(info.Outputs)
	}
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
