package model

import (
	"strings"
	"testing"

	"github.com/meridian-energy/horizon.plan/internal/dat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseData is a minimal two-period, one-region system: a free resource
// feeding an extraction step, a power plant turning the extracted fuel
// into the demanded commodity, and a CO2 intensity on the plant.
const baseData = `
data ;

set time_exist := 2020 ;
set time_future := 2025 2030 2035 ;
set time_season := year ;
set time_of_day := day night ;
set regions := R1 ;

set tech_resource := extract ;
set tech_production := power ;

set commodity_physical := ethos fuel ;
set commodity_demand := dem ;
set commodity_emissions := co2 ;

param SegFrac :=
	year day 0.5
	year night 0.5 ;

param Efficiency :=
	R1 ethos extract 2025 fuel 1.0
	R1 fuel power 2025 dem 0.5 ;

param Demand :=
	R1 2025 dem 10
	R1 2030 dem 10 ;

param CostInvest :=
	R1 power 2025 100 ;

param CostVariable :=
	R1 2025 extract 2025 1
	R1 2030 extract 2025 1 ;

param EmissionActivity :=
	R1 co2 fuel power 2025 dem 0.5 ;
`

func loadString(t *testing.T, input string) *Model {
	t.Helper()
	f, err := dat.Parse(input)
	require.NoError(t, err)
	m, err := Load(f)
	require.NoError(t, err)
	return m
}

func TestLoadBase(t *testing.T) {
	m := loadString(t, baseData)

	assert.Equal(t, []int{2025, 2030}, m.TimeOptimize)
	assert.Equal(t, 5.0, m.PeriodLength[2025])
	assert.Equal(t, 5.0, m.PeriodLength[2030])
	assert.Equal(t, []string{"R1"}, m.Regions)

	require.Len(t, m.Processes, 2)
	assert.Equal(t, Process{"R1", "extract", 2025}, m.Processes[0])
	assert.Equal(t, Process{"R1", "power", 2025}, m.Processes[1])

	info := m.Info[Process{"R1", "power", 2025}]
	require.NotNil(t, info)
	assert.Equal(t, 0.5, info.Eff[IO{"fuel", "dem"}])
}

func TestLoadDefaults(t *testing.T) {
	m := loadString(t, baseData)
	pr := Process{"R1", "power", 2025}

	assert.Equal(t, DefaultLifetime, m.Life(pr))
	assert.Equal(t, DefaultLoanLifetime, m.LoanLife(pr))
	assert.Equal(t, DefaultDiscountRate, m.DR(pr))
	assert.Equal(t, 1.0, m.CapToAct("R1", "power"))
	assert.Equal(t, 1.0, m.CapacityFactor("R1", Slice{"year", "day"}, pr))
	assert.InDelta(t, 0.12950457, m.LoanAnnualize(pr), 1e-7)
}

func TestLoadActive(t *testing.T) {
	m := loadString(t, baseData)
	pr := Process{"R1", "power", 2025}

	assert.True(t, m.Active(pr, 2025))
	assert.True(t, m.Active(pr, 2030))
	assert.False(t, m.Active(pr, 2020))

	assert.Equal(t, 1.0, m.ProcessLifeFrac(pr, 2025))
	assert.Equal(t, 5.0, m.ModelProcessLife(pr, 2030))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		edit func(string) string
		want string
	}{
		{
			name: "one future year",
			edit: func(s string) string {
				return strings.Replace(s, "set time_future := 2025 2030 2035 ;", "set time_future := 2025 ;", 1)
			},
			want: "at least two years",
		},
		{
			name: "exist year overlaps future",
			edit: func(s string) string {
				return strings.Replace(s, "set time_exist := 2020 ;", "set time_exist := 2025 ;", 1)
			},
			want: "must precede",
		},
		{
			name: "segfrac does not sum to one",
			edit: func(s string) string {
				return strings.Replace(s, "year night 0.5", "year night 0.4", 1)
			},
			want: "sum to",
		},
		{
			name: "unknown tech in efficiency",
			edit: func(s string) string {
				return strings.Replace(s, "R1 fuel power 2025 dem 0.5", "R1 fuel nuke 2025 dem 0.5", 1)
			},
			want: "unknown technology",
		},
		{
			name: "demand without producer",
			edit: func(s string) string {
				return strings.Replace(s, "fuel 1.0\n\tR1 fuel power 2025 dem 0.5 ;", "fuel 1.0 ;", 1)
			},
			want: "no producing technology",
		},
		{
			name: "negative demand",
			edit: func(s string) string {
				return strings.Replace(s, "R1 2025 dem 10", "R1 2025 dem -4", 1)
			},
			want: "must be positive",
		},
		{
			name: "storage cannot be annual",
			edit: func(s string) string {
				return s + "\nset tech_storage := power ;\nset tech_annual := power ;\n"
			},
			want: "storage and annual",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := dat.Parse(tc.edit(baseData))
			require.NoError(t, err)
			_, err = Load(f)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadAccumulatesErrors(t *testing.T) {
	in := strings.Replace(baseData, "year night 0.5", "year night 0.4", 1)
	in = strings.Replace(in, "R1 2025 dem 10", "R1 2025 dem -4", 1)
	f, err := dat.Parse(in)
	require.NoError(t, err)
	_, err = Load(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to")
	assert.Contains(t, err.Error(), "must be positive")
}

func TestDistributionFallsBackToSegFrac(t *testing.T) {
	m := loadString(t, baseData)
	assert.Equal(t, 0.5, m.Distribution("R1", Slice{"year", "day"}, "dem"))

	withDSD := baseData + `
param DemandSpecificDistribution :=
	R1 year day dem 0.8
	R1 year night dem 0.2 ;
`
	m = loadString(t, withDSD)
	assert.Equal(t, 0.8, m.Distribution("R1", Slice{"year", "day"}, "dem"))
	assert.Equal(t, 0.2, m.Distribution("R1", Slice{"year", "night"}, "dem"))
}

func TestDropRetired(t *testing.T) {
	in := baseData + `
param ExistingCapacity :=
	R1 power 2020 3 ;
param LifetimeProcess :=
	R1 power 2020 4 ;
`
	// Add the efficiency entry that declares the 2020 vintage.
	in = strings.Replace(in,
		"R1 fuel power 2025 dem 0.5 ;",
		"R1 fuel power 2025 dem 0.5\n\tR1 fuel power 2020 dem 0.4 ;", 1)

	m := loadString(t, in)
	// Vintage 2020 with a 4-year life is gone before 2025.
	assert.Len(t, m.Processes, 2)
	_, ok := m.Info[Process{"R1", "power", 2020}]
	assert.False(t, ok)
	_, ok = m.ExistingCapacity[Process{"R1", "power", 2020}]
	assert.False(t, ok)
}

func TestSectorSets(t *testing.T) {
	in := baseData + "\nset tech_sector_electric := power ;\n"
	m := loadString(t, in)
	assert.Equal(t, "electric", m.Sector["power"])
	assert.Equal(t, "", m.Sector["extract"])
}
