package controller

import (
	"context"
	"fmt"
	"sync/atomic"

	"muxsynth/services/field"
	"muxsynth/services/ingest"
	"muxsynth/utils"
	"muxsynth/views"
)

// FieldController samples the field model along the scan path, one
// output file per sensor. Each sensor sees the magnet through its own
// mounting offset.
type FieldController struct {
	cfg      *utils.Config
	samplers []field.Sampler
	samples  uint64
}

// NewFieldController builds the configured sampler for every sensor.
func NewFieldController(cfg *utils.Config) *FieldController {
	fc := &FieldController{cfg: cfg}
	for s := 1; s <= cfg.SystemParameters.SensorCount; s++ {
		fc.samplers = append(fc.samplers, field.ForSensor(cfg, s))
	}
	return fc
}

// WithSampler replaces the field model of one sensor (numbered from 1).
func (fc *FieldController) WithSampler(sensor int, s field.Sampler) *FieldController {
	fc.samplers[sensor-1] = s
	return fc
}

// Run streams the scan path through every sensor's sampler. The path
// is read ahead on its own goroutine while the current chunk is sampled.
func (fc *FieldController) Run(ctx context.Context) error {
	comp, err := views.ParseCompression(fc.cfg.Export.Compression)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	path := ingest.NewFileReader(fc.cfg.Path(fc.cfg.Files.ScanPath), fc.cfg.Export.ChunkSamples, 4)
	if err := path.Start(ctx); err != nil {
		return err
	}

	writers := make([]*views.VecWriter, len(fc.samplers))
	closeAll := func() {
		for _, w := range writers {
			if w != nil {
				w.Close()
			}
		}
	}
	bufSize := fc.cfg.Export.BufferSizeKB * 1024
	for i := range writers {
		if writers[i], err = views.CreateVecFile(fc.cfg.FieldPath(i+1), comp, bufSize); err != nil {
			closeAll()
			return err
		}
	}

	prog := newProgress("sample", path.Len())
	for b := range path.Out {
		for i, s := range fc.samplers {
			out, err := s.Sample(b.Vectors)
			if err != nil {
				closeAll()
				return fmt.Errorf("sensor %d: %w", i+1, err)
			}
			if err := writers[i].Write(out); err != nil {
				closeAll()
				return err
			}
		}
		n := len(b.Vectors)
		path.Release(b)
		atomic.AddUint64(&fc.samples, uint64(n))
		prog.add(n)
	}
	if err := path.Err(); err != nil {
		closeAll()
		return err
	}

	for i, w := range writers {
		writers[i] = nil
		if err := w.Close(); err != nil {
			closeAll()
			return err
		}
	}
	prog.finish()
	blocks, stalls := path.Stats()
	utils.L().Info("sample: wrote %d field files  (blocks=%d, reader stalls=%d)", len(fc.samplers), blocks, stalls)
	return nil
}

// Samples returns the number of path samples processed.
func (fc *FieldController) Samples() uint64 { return atomic.LoadUint64(&fc.samples) }
