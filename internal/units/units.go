// Package units provides shared constants and validation for angular rate units
package units

import "math"

// Unit constants. The firmware reports gyroscope rates in degrees per second.
const (
	DPS = "deg/s"
	RPS = "rad/s"
	RPM = "rpm"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{DPS, RPS, RPM}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "deg/s, rad/s, rpm"
}

// ConvertRate converts an angular rate from degrees per second to the target
// units. Unknown units leave the rate in deg/s.
func ConvertRate(rateDPS float64, targetUnits string) float64 {
	switch targetUnits {
	case RPS:
		return rateDPS * math.Pi / 180
	case RPM:
		return rateDPS / 6
	default:
		return rateDPS
	}
}
