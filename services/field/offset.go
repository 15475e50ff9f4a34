package field

import "muxsynth/models"

// Offset evaluates Inner at every position moved by Shift. It models a
// sensor mounted away from the scan head, or a whole path replayed at a
// different height.
type Offset struct {
	Inner Sampler
	Shift models.Vec3
}

func (o *Offset) Sample(positions []models.Vec3) ([]models.Vec3, error) {
	if o.Shift == (models.Vec3{}) {
		return o.Inner.Sample(positions)
	}
	moved := make([]models.Vec3, len(positions))
	for i, p := range positions {
		moved[i] = p.Add(o.Shift)
	}
	return o.Inner.Sample(moved)
}
