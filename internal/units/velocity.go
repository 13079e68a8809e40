package units

import "math"

// Angular unit constants for headings and angular velocities.
const (
	Rad   = "rad"
	Deg   = "deg"
	Degps = "degps"
)

// ValidAngleUnits contains all valid angle unit values
var ValidAngleUnits = []string{Rad, Deg}

// IsValidAngle checks if the given unit is in the list of valid angle units
func IsValidAngle(unit string) bool {
	for _, validUnit := range ValidAngleUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertAngle converts an angle from radians to the target units.
// Unknown units pass through unconverted.
func ConvertAngle(rad float64, targetUnits string) float64 {
	switch targetUnits {
	case Deg:
		return rad * 180 / math.Pi
	default:
		return rad
	}
}

// AngularRateUnits maps an angle unit to its per-second rate unit.
func AngularRateUnits(angleUnits string) string {
	if angleUnits == Deg {
		return Degps
	}
	return Radps
}

// ConvertAngularRate converts an angular velocity from radians per
// second to the target units.
func ConvertAngularRate(radps float64, targetUnits string) float64 {
	switch targetUnits {
	case Degps:
		return radps * 180 / math.Pi
	default:
		return radps
	}
}
