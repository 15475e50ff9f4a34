package field

import (
	"fmt"

	"muxsynth/models"
)

// SpherePolarized is a homogeneously polarized sphere. Outside the
// sphere its field equals that of a point dipole at the centre; inside
// it is uniform at 2/3 of the polarization. Units follow the inputs:
// polarization in mT gives B in mT, lengths in mm.
type SpherePolarized struct {
	Polarization models.Vec3
	Diameter     float64
	Center       models.Vec3
}

// Sample evaluates B at every position.
func (s *SpherePolarized) Sample(positions []models.Vec3) ([]models.Vec3, error) {
	if s.Diameter <= 0 {
		return nil, fmt.Errorf("sphere: diameter must be > 0, got %g", s.Diameter)
	}
	out := make([]models.Vec3, len(positions))
	for i, p := range positions {
		out[i] = s.at(p)
	}
	return out, nil
}

func (s *SpherePolarized) at(p models.Vec3) models.Vec3 {
	radius := s.Diameter / 2
	r := p.Sub(s.Center)
	dist := r.Norm()
	if dist <= radius {
		return s.Polarization.Scale(2.0 / 3.0)
	}
	unit := r.Scale(1 / dist)
	factor := radius * radius * radius / (3 * dist * dist * dist)
	return unit.Scale(3 * s.Polarization.Dot(unit)).Sub(s.Polarization).Scale(factor)
}
