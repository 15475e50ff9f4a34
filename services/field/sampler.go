package field

import (
	"fmt"

	"muxsynth/models"
	"muxsynth/utils"
)

// Sampler evaluates a field model at a batch of positions. The result
// has one vector per position, index for index. Implementations must be
// pure so that batches can be evaluated concurrently.
type Sampler interface {
	Sample(positions []models.Vec3) ([]models.Vec3, error)
}

// Func adapts a plain function to the Sampler interface.
type Func func(positions []models.Vec3) ([]models.Vec3, error)

func (f Func) Sample(positions []models.Vec3) ([]models.Vec3, error) { return f(positions) }

// ForSensor builds the configured field model as seen by one sensor
// (numbered from 1): the polarized sphere, shifted by the sensor's
// mounting offset and evaluated on the configured number of workers.
func ForSensor(cfg *utils.Config, sensor int) Sampler {
	so := cfg.SimulationObjects
	sphere := &SpherePolarized{
		Polarization: models.Vec3(so.Polarization),
		Diameter:     so.DiameterMM,
		Center:       models.Vec3(so.PositionMM),
	}
	shifted := &Offset{Inner: sphere, Shift: models.Vec3(cfg.SensorOffset(sensor))}
	return NewParallel(shifted, cfg.Export.Workers)
}

func checkLen(in, out []models.Vec3) error {
	if len(in) != len(out) {
		return fmt.Errorf("field sampler: %w: %d positions, %d samples", models.ErrLengthMismatch, len(in), len(out))
	}
	return nil
}
