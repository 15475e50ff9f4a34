package gain

import (
	"errors"
	"math"
	"testing"

	"muxsynth/models"
)

func TestFindGainCandidates(t *testing.T) {
	tests := []struct {
		name    string
		channel []float64
		bits    int
		want    int64
	}{
		// 32768/100 = 327.68 → 327; -32768/-50 = 655.36 → 655; larger wins.
		{"larger candidate wins", []float64{-50, 0, 100}, 16, 655},
		{"symmetric", []float64{-2, 2}, 16, 16384},
		{"all positive", []float64{1, 3, 2}, 16, 10922},
		{"positive with zero min", []float64{0, 4}, 16, 8192},
		{"all negative", []float64{-8, -1}, 16, 4096},
		{"12 bit", []float64{-1, 0.5}, 12, 4096},
		{"reading above range", []float64{1, 40000}, 16, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindGain(tt.channel, tt.bits)
			if err != nil {
				t.Fatalf("FindGain: %v", err)
			}
			if got != tt.want {
				t.Fatalf("gain = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFindGainDegenerate(t *testing.T) {
	tests := map[string][]float64{
		"empty":     nil,
		"all zero":  {0, 0, 0},
		"max zero":  {-3, -1, 0},
		"nan":       {1, math.NaN()},
		"too small": {1e-300, -1e-300},
	}
	for name, channel := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FindGain(channel, 16)
			if !errors.Is(err, models.ErrDegenerateChannel) {
				t.Fatalf("err = %v, want ErrDegenerateChannel", err)
			}
		})
	}
}

func TestFindGainBadBits(t *testing.T) {
	if _, err := FindGain([]float64{1}, 0); err == nil {
		t.Fatal("expected error for 0 bits")
	}
}

func TestRangeChunkedMatchesWhole(t *testing.T) {
	channel := []float64{3, -7, 2.5, 11, -0.5, 9, -7.25}
	var chunked Range
	chunked.Observe(channel[:3])
	chunked.Observe(channel[3:5])
	chunked.Observe(channel[5:])

	var whole Range
	whole.Observe(channel)
	if chunked != whole {
		t.Fatalf("chunked %+v != whole %+v", chunked, whole)
	}
	if whole.Min != -7.25 || whole.Max != 11 || whole.Count != 7 {
		t.Fatalf("range = %+v", whole)
	}
}

func TestQuantizeBoundedWithCountedOverflow(t *testing.T) {
	sine := make([]float64, 1000)
	for i := range sine {
		sine[i] = 3*math.Sin(float64(i)*0.37) - 1.2
	}
	cases := []struct {
		name     string
		channel  []float64
		bits     int
		wantGain int64
		wantOver int
	}{
		{"sine 16-bit", sine, 16, -1, -1},
		{"sine 12-bit", sine, 12, -1, -1},
		{"negative peak 12-bit", []float64{-1, -0.75, 0.25, 0.5}, 12, 4096, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := FindGain(tc.channel, tc.bits)
			if err != nil {
				t.Fatal(err)
			}
			if tc.wantGain >= 0 && g != tc.wantGain {
				t.Fatalf("gain = %d, want %d", g, tc.wantGain)
			}
			dst := make([]int16, len(tc.channel))
			overflow := Quantize(dst, tc.channel, g, tc.bits)

			lo, hi := -math.Ldexp(1, tc.bits-1), math.Ldexp(1, tc.bits-1)-1
			clamped := 0
			for i, v := range tc.channel {
				if d := float64(dst[i]); d < lo || d > hi {
					t.Fatalf("sample %d = %d outside [%g, %g]", i, dst[i], lo, hi)
				}
				exact := math.Round(v * float64(g))
				switch {
				case exact < lo:
					clamped++
					if float64(dst[i]) != lo {
						t.Fatalf("sample %d = %d, want clamp to %g", i, dst[i], lo)
					}
				case exact > hi:
					clamped++
					if float64(dst[i]) != hi {
						t.Fatalf("sample %d = %d, want clamp to %g", i, dst[i], hi)
					}
				case float64(dst[i]) != exact:
					t.Fatalf("sample %d = %d, want %g", i, dst[i], exact)
				}
			}
			if clamped != overflow {
				t.Fatalf("overflow = %d, counted out-of-range = %d", overflow, clamped)
			}
			if tc.wantOver >= 0 && overflow != tc.wantOver {
				t.Fatalf("overflow = %d, want %d", overflow, tc.wantOver)
			}
		})
	}
}

func TestFindGainZeroWhenPeakExceedsRange(t *testing.T) {
	g, err := FindGain([]float64{1, 40000}, 16)
	if err != nil {
		t.Fatal(err)
	}
	if g != 0 {
		t.Fatalf("gain = %d, want 0", g)
	}
	dst := make([]int16, 2)
	if n := Quantize(dst, []float64{1, 40000}, g, 16); n != 0 || dst[0] != 0 || dst[1] != 0 {
		t.Fatalf("dst = %v overflow = %d, want zeros", dst, n)
	}
}

func TestQuantizeClampsInsteadOfWrapping(t *testing.T) {
	dst := make([]int16, 4)
	n := Quantize(dst, []float64{1, -1, 0.5, -0.5}, 40000, 16)
	if n != 2 {
		t.Fatalf("overflow = %d, want 2", n)
	}
	want := []int16{math.MaxInt16, math.MinInt16, 20000, -20000}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i], want[i])
		}
	}
}

func TestQuantizeRoundsHalfAwayFromZero(t *testing.T) {
	dst := make([]int16, 2)
	Quantize(dst, []float64{0.25, -0.25}, 2, 16)
	if dst[0] != 1 || dst[1] != -1 {
		t.Fatalf("dst = %v, want [1 -1]", dst)
	}
}

func TestForSensorAliasesT(t *testing.T) {
	var x, y, z Range
	x.Observe([]float64{-1, 2})
	y.Observe([]float64{-4, 4})
	z.Observe([]float64{1, 8})
	g, err := ForSensor(x, y, z, 16)
	if err != nil {
		t.Fatal(err)
	}
	if g.T != g.X {
		t.Fatalf("T gain %d != X gain %d", g.T, g.X)
	}
	if g.X != 32768 || g.Y != 8192 || g.Z != 4096 {
		t.Fatalf("gains = %+v", g)
	}
	if g.Axis(models.AxisT) != g.X || SourceAxis(models.AxisT) != 0 {
		t.Fatal("T channel must mirror X")
	}
}

func TestForSensorReportsAxis(t *testing.T) {
	var x, y, z Range
	x.Observe([]float64{1})
	z.Observe([]float64{1})
	_, err := ForSensor(x, y, z, 16)
	if !errors.Is(err, models.ErrDegenerateChannel) {
		t.Fatalf("err = %v", err)
	}
	if err.Error()[:6] != "axis Y" {
		t.Fatalf("err = %q, want axis Y prefix", err)
	}
}

func TestQuantizerApply(t *testing.T) {
	q := &Quantizer{Gains: SensorGains{X: 10, Y: 100, Z: 1000, T: 10}}
	field := []models.Vec3{{1, 2, 3}, {-1, 400, 0.5}}
	var out [models.AxesPerSensor][]int16
	for a := range out {
		out[a] = make([]int16, len(field))
	}
	q.Apply(out, field)

	if out[models.AxisX][0] != 10 || out[models.AxisT][1] != -10 {
		t.Fatalf("X/T = %v / %v", out[models.AxisX], out[models.AxisT])
	}
	if out[models.AxisY][1] != math.MaxInt16 || q.Overflow[models.AxisY] != 1 {
		t.Fatalf("Y = %v overflow = %v", out[models.AxisY], q.Overflow)
	}
	if out[models.AxisZ][0] != 3000 || out[models.AxisZ][1] != 500 {
		t.Fatalf("Z = %v", out[models.AxisZ])
	}
	if q.TotalOverflow() != 1 {
		t.Fatalf("TotalOverflow = %d", q.TotalOverflow())
	}

	q12 := &Quantizer{Gains: SensorGains{X: 10, Y: 100, Z: 1000, T: 10}, Bits: 12}
	q12.Apply(out, field)
	if out[models.AxisZ][0] != 2047 || out[models.AxisY][1] != 2047 || out[models.AxisX][0] != 10 {
		t.Fatalf("12-bit X/Y/Z = %v / %v / %v", out[models.AxisX], out[models.AxisY], out[models.AxisZ])
	}
	if q12.Overflow[models.AxisZ] != 1 || q12.Overflow[models.AxisY] != 1 || q12.TotalOverflow() != 2 {
		t.Fatalf("12-bit overflow = %v", q12.Overflow)
	}
}
