// Package units provides shared constants and conversions for capacity
// and activity units used in reports and API responses.
package units

// Capacity unit constants. The model itself is unit-agnostic; databases
// conventionally carry gigawatts.
const (
	GW = "GW"
	MW = "MW"
)

// Activity (energy) unit constants. Databases conventionally carry
// petajoules.
const (
	PJ  = "PJ"
	TWH = "TWh"
)

// HoursPerYear is used when converting capacity to annual activity.
const HoursPerYear = 8760.0

// ValidCapacityUnits contains all valid capacity unit values.
var ValidCapacityUnits = []string{GW, MW}

// ValidActivityUnits contains all valid activity unit values.
var ValidActivityUnits = []string{PJ, TWH}

// IsValidCapacity checks if the given unit is a valid capacity unit.
func IsValidCapacity(unit string) bool {
	for _, u := range ValidCapacityUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// IsValidActivity checks if the given unit is a valid activity unit.
func IsValidActivity(unit string) bool {
	for _, u := range ValidActivityUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// ConvertCapacity converts a capacity from gigawatts to the target unit.
func ConvertCapacity(capGW float64, targetUnit string) float64 {
	switch targetUnit {
	case MW:
		return capGW * 1000
	case GW:
		return capGW
	default:
		return capGW // default to GW if unknown unit
	}
}

// ConvertActivity converts an activity from petajoules to the target unit.
func ConvertActivity(actPJ float64, targetUnit string) float64 {
	switch targetUnit {
	case TWH:
		return actPJ / 3.6 // 1 TWh = 3.6 PJ
	case PJ:
		return actPJ
	default:
		return actPJ // default to PJ if unknown unit
	}
}
