// Package gain computes per-channel integer gains that stretch field
// readings over a fixed-point ADC range, and applies them.
package gain

import (
	"fmt"
	"math"

	"muxsynth/models"
)

// Range tracks the extrema of a channel. It can absorb the channel in
// chunks, so gains for very long scans are computed without holding the
// whole channel in memory.
type Range struct {
	Min, Max float64
	Count    int64
	NaNs     int64
}

// Observe folds values into the range. NaNs are counted, not compared.
func (r *Range) Observe(values []float64) {
	for _, v := range values {
		if math.IsNaN(v) {
			r.NaNs++
			continue
		}
		if r.Count == 0 {
			r.Min, r.Max = v, v
		} else if v < r.Min {
			r.Min = v
		} else if v > r.Max {
			r.Max = v
		}
		r.Count++
	}
}

// Gain returns the integer gain for a signed ADC of the given bit width.
// Two candidates are formed,
//
//	floor( 2^(B-1) / max)    and    floor(-2^(B-1) / min)
//
// and the larger one is returned. For a channel whose magnitude peaks on
// the other side of zero this overflows the ADC; Quantize clamps those
// samples to the B-bit range and counts them. A peak beyond 2^(B-1)
// yields gain 0.
func (r Range) Gain(bits int) (int64, error) {
	if bits < 1 || bits > 32 {
		return 0, fmt.Errorf("gain: dynamic range bits must be in 1..32, got %d", bits)
	}
	switch {
	case r.NaNs > 0:
		return 0, fmt.Errorf("%w: %d NaN samples", models.ErrDegenerateChannel, r.NaNs)
	case r.Count == 0:
		return 0, fmt.Errorf("%w: empty channel", models.ErrDegenerateChannel)
	case r.Max == 0 && r.Min == 0:
		return 0, fmt.Errorf("%w: all samples are zero", models.ErrDegenerateChannel)
	case r.Max == 0:
		return 0, fmt.Errorf("%w: channel maximum is zero", models.ErrDegenerateChannel)
	}

	half := math.Ldexp(1, bits-1)
	fromMax := math.Floor(half / r.Max)
	fromMin := math.Floor(-half / r.Min) // -Inf when min == 0
	g := fromMax
	if fromMin > g {
		g = fromMin
	}
	if math.IsInf(g, 0) || math.IsNaN(g) || g >= math.MaxInt64 || g < math.MinInt64 {
		return 0, fmt.Errorf("%w: gain %g not representable (min=%g max=%g)", models.ErrDegenerateChannel, g, r.Min, r.Max)
	}
	return int64(g), nil
}

// FindGain computes the gain of a fully materialised channel.
func FindGain(channel []float64, bits int) (int64, error) {
	var r Range
	r.Observe(channel)
	return r.Gain(bits)
}

// SensorGains holds the gain of every record channel of one sensor.
type SensorGains struct {
	X, Y, Z, T int64
}

// ForSensor computes the gains of a sensor from its X, Y and Z ranges.
// The T channel carries the X reading and reuses X's gain.
func ForSensor(x, y, z Range, bits int) (SensorGains, error) {
	var g SensorGains
	var err error
	if g.X, err = x.Gain(bits); err != nil {
		return g, fmt.Errorf("axis X: %w", err)
	}
	if g.Y, err = y.Gain(bits); err != nil {
		return g, fmt.Errorf("axis Y: %w", err)
	}
	if g.Z, err = z.Gain(bits); err != nil {
		return g, fmt.Errorf("axis Z: %w", err)
	}
	g.T = g.X
	return g, nil
}

// Axis returns the gain of one record channel.
func (g SensorGains) Axis(a models.Axis) int64 {
	switch a {
	case models.AxisX:
		return g.X
	case models.AxisY:
		return g.Y
	case models.AxisZ:
		return g.Z
	default:
		return g.T
	}
}

// Array returns the gains in record order X, Y, Z, T.
func (g SensorGains) Array() [models.AxesPerSensor]int64 {
	return [models.AxesPerSensor]int64{g.X, g.Y, g.Z, g.T}
}

// SourceAxis returns the field component a record channel is read from.
// T mirrors X.
func SourceAxis(a models.Axis) int {
	if a == models.AxisT {
		return 0
	}
	return int(a)
}
