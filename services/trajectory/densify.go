package trajectory

import (
	"fmt"

	"muxsynth/models"
	"muxsynth/utils"
)

// Timing converts a move into a sample count: the move's dominant axis
// selects one of the configured scan durations.
type Timing struct {
	Rate      float64
	Durations utils.DurationsConfig
}

// SamplesFor returns the number of samples recorded along move.
func (t Timing) SamplesFor(move models.Vec3) int64 {
	var seconds float64
	switch move.DominantAxis() {
	case 0:
		seconds = t.Durations.XScan
	case 1:
		seconds = t.Durations.YScan
	default:
		seconds = t.Durations.ZScan
	}
	return int64(t.Rate * seconds)
}

// Densifier expands trajectory vertices into the per-sample scan path.
// Each move from vertex i to i+1 contributes SamplesFor(move) points
// spaced evenly from start to end inclusive, so consecutive moves share
// their joint sample twice, matching a concatenation of linspaces.
//
// Points are produced on demand in caller-sized chunks; the full path is
// never held in memory.
type Densifier struct {
	vertices []models.Vec3
	counts   []int64
	steps    []models.Vec3
	total    int64

	move    int
	k       int64
	emitted int64
}

// NewDensifier prepares the expansion of vertices.
func NewDensifier(vertices []models.Vec3, timing Timing) (*Densifier, error) {
	if timing.Rate <= 0 {
		return nil, fmt.Errorf("densify: sample rate must be > 0, got %g", timing.Rate)
	}
	moves := 0
	if len(vertices) > 1 {
		moves = len(vertices) - 1
	}
	d := &Densifier{
		vertices: vertices,
		counts:   make([]int64, moves),
		steps:    make([]models.Vec3, moves),
	}
	for i := 0; i < moves; i++ {
		delta := vertices[i+1].Sub(vertices[i])
		n := timing.SamplesFor(delta)
		d.counts[i] = n
		d.total += n
		if n > 1 {
			div := float64(n - 1)
			d.steps[i] = models.Vec3{delta[0] / div, delta[1] / div, delta[2] / div}
		}
	}
	return d, nil
}

// Len returns the total number of samples in the path.
func (d *Densifier) Len() int64 { return d.total }

// Emitted returns how many samples have been produced since the last Reset.
func (d *Densifier) Emitted() int64 { return d.emitted }

// Reset rewinds to the first sample.
func (d *Densifier) Reset() {
	d.move, d.k, d.emitted = 0, 0, 0
}

// NextChunk fills dst with the next samples and returns how many were
// written; 0 means the path is exhausted.
func (d *Densifier) NextChunk(dst []models.Vec3) int {
	n := 0
	for n < len(dst) && d.move < len(d.counts) {
		count := d.counts[d.move]
		if d.k >= count {
			d.move++
			d.k = 0
			continue
		}
		dst[n] = d.at(d.move, d.k)
		n++
		d.k++
	}
	d.emitted += int64(n)
	return n
}

func (d *Densifier) at(move int, k int64) models.Vec3 {
	count := d.counts[move]
	if count > 1 && k == count-1 {
		return d.vertices[move+1]
	}
	start, step := d.vertices[move], d.steps[move]
	fk := float64(k)
	return models.Vec3{
		start[0] + fk*step[0],
		start[1] + fk*step[1],
		start[2] + fk*step[2],
	}
}
