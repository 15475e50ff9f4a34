package trajectory

import (
	"math"
)

// MoveDuration returns the time a trapezoidal velocity profile needs to
// travel distance with the given acceleration and velocity cap. Moves
// too short to reach vmax follow a triangular profile.
//
//	300 mm @ 20 mm/s, 10 mm/s² → 2 s + 13 s + 2 s = 17 s
func MoveDuration(distance, accel, vmax float64) float64 {
	distance = math.Abs(distance)
	if distance == 0 {
		return 0
	}
	if accel <= 0 || vmax <= 0 {
		return math.Inf(1)
	}
	ramp := vmax * vmax / accel // distance spent accelerating and braking
	if distance >= ramp {
		return distance/vmax + vmax/accel
	}
	return 2 * math.Sqrt(distance/accel)
}
