package trajectory

import (
	"fmt"

	"muxsynth/models"
	"muxsynth/utils"
)

// Plan assembles the raster scan as a segment tree:
//
//	posYZ  = [+Y sweep, +Z shift, -Y sweep, +Z shift]
//	negYZ  = [+Y sweep, -Z shift, -Y sweep, -Z shift]
//	plane  = posYZ or negYZ repeated PlaneRepeats times, alternating
//	root   = [plane₀, +X step, plane₁, +X step, ...]  (XRepeats planes)
//
// Alternating planes climb and then descend in Z so the head never
// travels back without sampling.
func Plan(scan utils.ScanSetupConfig) (models.Segment, error) {
	if scan.PlaneRepeats < 1 {
		return models.Segment{}, fmt.Errorf("plan: plane_repeats must be >= 1, got %d", scan.PlaneRepeats)
	}
	if scan.XRepeats < 1 {
		return models.Segment{}, fmt.Errorf("plan: x_repeats must be >= 1, got %d", scan.XRepeats)
	}

	ySweep := models.Vec3{0, scan.Dimensions.Y, 0}
	zShift := models.Vec3{0, 0, scan.Steps.Z}
	xStep := models.Vec3{scan.Steps.X, 0, 0}

	posYZ := models.Branch(
		models.Leaf(ySweep), models.Leaf(zShift),
		models.Leaf(ySweep.Neg()), models.Leaf(zShift),
	)
	negYZ := models.Branch(
		models.Leaf(ySweep), models.Leaf(zShift.Neg()),
		models.Leaf(ySweep.Neg()), models.Leaf(zShift.Neg()),
	)
	fullPos := models.Repeat(posYZ, scan.PlaneRepeats)
	fullNeg := models.Repeat(negYZ, scan.PlaneRepeats)

	planes := make([]models.Segment, 0, 2*scan.XRepeats)
	for i := 0; i < scan.XRepeats; i++ {
		plane := fullPos
		if i%2 == 1 {
			plane = fullNeg
		}
		planes = append(planes, plane, models.Leaf(xStep))
	}
	return models.Branch(planes...), nil
}

// Source returns the configured segment tree, or the raster plan when
// the configuration does not spell one out.
func Source(cfg *utils.Config) (models.Segment, error) {
	if cfg.SimulationObjects.Segments != nil {
		return *cfg.SimulationObjects.Segments, nil
	}
	return Plan(cfg.ScanSetup)
}
