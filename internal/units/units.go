// Package units provides shared constants and conversions for the
// quantities reported by trajectory analyses.
package units

// Speed unit constants. Interpreters compute speeds in ball radians
// per second; reports convert at the edge.
const (
	Radps = "radps"
	Mmps  = "mmps"
	Cmps  = "cmps"
)

// ValidSpeedUnits contains all valid speed unit values
var ValidSpeedUnits = []string{Radps, Mmps, Cmps}

// IsValidSpeed checks if the given unit is in the list of valid speed units
func IsValidSpeed(unit string) bool {
	for _, validUnit := range ValidSpeedUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// SpeedUnitsString returns a comma-separated string of valid speed units for error messages
func SpeedUnitsString() string {
	return "radps, mmps, cmps"
}

// ConvertSpeed converts a speed from ball radians per second to the
// target units. The linear units need the ball radius in millimetres;
// unknown units pass through unconverted.
func ConvertSpeed(speedRadps, ballRadiusMM float64, targetUnits string) float64 {
	switch targetUnits {
	case Radps:
		return speedRadps
	case Mmps:
		return speedRadps * ballRadiusMM
	case Cmps:
		return speedRadps * ballRadiusMM / 10
	default:
		return speedRadps
	}
}
