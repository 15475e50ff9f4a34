package gain

import (
	"math"

	"muxsynth/models"
)

// Quantize writes round(src[i]·g) into dst, rounding half away from
// zero. Values outside the signed bits-wide range
// [-2^(bits-1), 2^(bits-1)-1] are clamped to its limits rather than
// wrapped; the number of clamped samples is returned. bits must be in
// 1..16 since dst holds int16 fields.
func Quantize(dst []int16, src []float64, g int64, bits int) int {
	lo, hi := bitRange(bits)
	overflow := 0
	fg := float64(g)
	for i, v := range src {
		q := math.Round(v * fg)
		switch {
		case q > hi:
			dst[i] = int16(hi)
			overflow++
		case q < lo:
			dst[i] = int16(lo)
			overflow++
		default:
			dst[i] = int16(q)
		}
	}
	return overflow
}

func bitRange(bits int) (lo, hi float64) {
	if bits < 1 || bits > 16 {
		bits = 16
	}
	half := math.Ldexp(1, bits-1)
	return -half, half - 1
}

// Quantizer scales the field chunks of one sensor into its four record
// channels and keeps running overflow counts per channel.
type Quantizer struct {
	Gains SensorGains
	// Bits is the dynamic range of the output fields; 0 means 16.
	Bits     int
	Overflow [models.AxesPerSensor]int64

	scratch []float64
}

// Apply quantizes field vectors into out, which must hold four slices of
// at least len(field) elements, in record order X, Y, Z, T.
func (q *Quantizer) Apply(out [models.AxesPerSensor][]int16, field []models.Vec3) {
	if cap(q.scratch) < len(field) {
		q.scratch = make([]float64, len(field))
	}
	src := q.scratch[:len(field)]
	gains := q.Gains.Array()
	for _, a := range models.Axes() {
		c := SourceAxis(a)
		for i, v := range field {
			src[i] = v[c]
		}
		q.Overflow[a] += int64(Quantize(out[a][:len(field)], src, gains[a], q.Bits))
	}
}

// TotalOverflow sums the clamped samples over all channels.
func (q *Quantizer) TotalOverflow() int64 {
	var n int64
	for _, c := range q.Overflow {
		n += c
	}
	return n
}
