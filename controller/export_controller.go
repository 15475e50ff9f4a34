package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"time"

	"muxsynth/models"
	"muxsynth/services/gain"
	"muxsynth/utils"
	"muxsynth/views"
)

// ExportController is the final pipeline stage. It reads the scan path
// and the per-sensor field files twice, chunk by chunk:
//
//	pass 1: per-channel min/max ──► gains
//	pass 2: quantize ──► Encoder ──► MuxWriter (one per file variant)
//
// and finishes with the CBOR manifest. Memory use depends on the chunk
// size and sensor count only.
type ExportController struct {
	cfg     *utils.Config
	gains   []gain.SensorGains
	quant   []*gain.Quantizer
	records uint64
}

func NewExportController(cfg *utils.Config) *ExportController {
	return &ExportController{cfg: cfg}
}

// inputs holds the open interchange files of one pass.
type inputs struct {
	path   *views.VecReader
	fields []*views.VecReader
	pos    []models.Vec3
	vals   [][]models.Vec3
}

func (ec *ExportController) open() (*inputs, error) {
	chunk := ec.cfg.Export.ChunkSamples
	path, err := views.OpenVecFile(ec.cfg.Path(ec.cfg.Files.ScanPath))
	if err != nil {
		return nil, err
	}
	in := &inputs{path: path, pos: make([]models.Vec3, chunk)}
	for s := 1; s <= ec.cfg.SystemParameters.SensorCount; s++ {
		f, err := views.OpenVecFile(ec.cfg.FieldPath(s))
		if err != nil {
			in.close()
			return nil, err
		}
		in.fields = append(in.fields, f)
		in.vals = append(in.vals, make([]models.Vec3, chunk))
		if f.Len() != path.Len() {
			in.close()
			return nil, fmt.Errorf("%w: sensor %d has %d field samples, scan path has %d",
				models.ErrLengthMismatch, s, f.Len(), path.Len())
		}
	}
	return in, nil
}

// next reads the following chunk from every file; io.EOF ends the pass.
func (in *inputs) next() (int, error) {
	n, err := in.path.Read(in.pos)
	if err != nil {
		return 0, err
	}
	for s, f := range in.fields {
		m, err := f.Read(in.vals[s][:n])
		if err != nil {
			return 0, fmt.Errorf("sensor %d: %w", s+1, err)
		}
		if m != n {
			return 0, fmt.Errorf("%w: sensor %d returned %d of %d samples", models.ErrLengthMismatch, s+1, m, n)
		}
	}
	return n, nil
}

func (in *inputs) close() {
	in.path.Close()
	for _, f := range in.fields {
		f.Close()
	}
}

// ─── pass 1 ─────────────────────────────────────────────────────────────

// Gains scans every field file once and derives the per-sensor gains.
func (ec *ExportController) Gains(ctx context.Context) ([]gain.SensorGains, error) {
	in, err := ec.open()
	if err != nil {
		return nil, err
	}
	defer in.close()

	ranges := make([][3]gain.Range, len(in.fields))
	col := make([]float64, ec.cfg.Export.ChunkSamples)
	prog := newProgress("range", in.path.Len())
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := in.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for s := range in.fields {
			for axis := 0; axis < 3; axis++ {
				for i, v := range in.vals[s][:n] {
					col[i] = v[axis]
				}
				ranges[s][axis].Observe(col[:n])
			}
		}
		prog.add(n)
	}
	prog.finish()

	bits := ec.cfg.Sampling.DynamicRangeBits
	gains := make([]gain.SensorGains, len(ranges))
	for s, r := range ranges {
		g, err := gain.ForSensor(r[0], r[1], r[2], bits)
		if err != nil {
			return nil, fmt.Errorf("sensor %d: %w", s+1, err)
		}
		gains[s] = g
		for _, a := range models.Axes() {
			if a != models.AxisT && g.Axis(a) == 0 {
				utils.L().Warn("gain: %s gain is 0 (peak exceeds 2^%d); channel will quantize to zero",
					models.ChannelName(s+1, a), bits-1)
			}
		}
		utils.L().Info("gain: S%d  X=%d Y=%d Z=%d T=%d  (x %.4g..%.4g  y %.4g..%.4g  z %.4g..%.4g)",
			s+1, g.X, g.Y, g.Z, g.T, r[0].Min, r[0].Max, r[1].Min, r[1].Max, r[2].Min, r[2].Max)
	}
	ec.gains = gains
	return gains, nil
}

// ─── pass 2 ─────────────────────────────────────────────────────────────

type variantOut struct {
	name   string
	schema views.Schema
	enc    *views.Encoder
	w      *views.MuxWriter
	buf    []byte
}

// Run computes gains, writes every configured file variant and the
// manifest, and returns the manifest.
func (ec *ExportController) Run(ctx context.Context) (*views.Manifest, error) {
	gains, err := ec.Gains(ctx)
	if err != nil {
		return nil, err
	}

	in, err := ec.open()
	if err != nil {
		return nil, err
	}
	defer in.close()
	total := in.path.Len()
	sensors := len(in.fields)

	encCfg := views.EncodeConfig{
		SampleRate:   ec.cfg.Sampling.RateHz,
		TicksPerUnit: ec.cfg.SystemParameters.TicksPerUnit,
		Sentinels:    ec.cfg.SystemParameters.Sentinels,
	}
	outs, err := ec.openOutputs(encCfg, total)
	if err != nil {
		return nil, err
	}
	closeOuts := func() {
		for _, o := range outs {
			o.w.Close()
		}
	}

	chunk := ec.cfg.Export.ChunkSamples
	ec.quant = make([]*gain.Quantizer, sensors)
	chans := make([][models.AxesPerSensor][]int16, sensors)
	view := make([][models.AxesPerSensor][]int16, sensors)
	for s := range chans {
		ec.quant[s] = &gain.Quantizer{Gains: gains[s], Bits: ec.cfg.Sampling.DynamicRangeBits}
		for a := range chans[s] {
			chans[s][a] = make([]int16, chunk)
		}
	}

	prog := newProgress("export", total)
	for {
		if err := ctx.Err(); err != nil {
			closeOuts()
			return nil, err
		}
		n, err := in.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			closeOuts()
			return nil, err
		}
		for s := range chans {
			ec.quant[s].Apply(chans[s], in.vals[s][:n])
			for a := range chans[s] {
				view[s][a] = chans[s][a][:n]
			}
		}
		c := views.Chunk{Channels: view, Positions: in.pos[:n]}
		for _, o := range outs {
			if o.buf, err = o.enc.AppendChunk(o.buf[:0], c); err != nil {
				closeOuts()
				return nil, fmt.Errorf("%s: %w", o.name, err)
			}
			if _, err := o.w.Write(o.buf); err != nil {
				closeOuts()
				return nil, err
			}
		}
		atomic.AddUint64(&ec.records, uint64(n))
		prog.add(n)
	}
	for _, o := range outs {
		if err := o.w.Close(); err != nil {
			return nil, err
		}
	}
	prog.finish()
	ec.reportOverflow()

	m := ec.manifest(total, outs)
	if err := views.WriteManifest(ec.cfg.Path(ec.cfg.Files.Manifest), m); err != nil {
		return nil, err
	}
	for _, f := range m.Files {
		utils.L().Info("export: %s  %d records × %d B  blake3=%s", f.Name, f.Records, f.RecordSize, f.BLAKE3[:16])
	}
	return m, nil
}

func (ec *ExportController) openOutputs(encCfg views.EncodeConfig, total int64) ([]*variantOut, error) {
	var outs []*variantOut
	for _, v := range ec.cfg.Export.Variants {
		schema, err := views.NewSchema(ec.cfg.SystemParameters.SensorCount, v == utils.VariantWithPosition)
		if err != nil {
			return nil, err
		}
		enc, err := views.NewEncoder(schema, encCfg, total)
		if err != nil {
			return nil, err
		}
		w, err := views.NewMuxWriter(ec.cfg.MuxedPath(v), schema, ec.cfg.Export.BufferSizeKB*1024, total)
		if err != nil {
			for _, o := range outs {
				o.w.Close()
			}
			return nil, err
		}
		utils.L().Debug("export: %s layout %s", v, schema)
		outs = append(outs, &variantOut{name: v, schema: schema, enc: enc, w: w})
	}
	return outs, nil
}

func (ec *ExportController) reportOverflow() {
	for s, q := range ec.quant {
		if q.TotalOverflow() == 0 {
			continue
		}
		for _, a := range models.Axes() {
			if c := q.Overflow[a]; c > 0 {
				utils.L().Warn("quantize: %s clamped %d samples", models.ChannelName(s+1, a), c)
			}
		}
	}
}

func (ec *ExportController) manifest(total int64, outs []*variantOut) *views.Manifest {
	m := &views.Manifest{
		Version:          views.ManifestVersion,
		CreatedAt:        time.Now().UTC(),
		SensorCount:      ec.cfg.SystemParameters.SensorCount,
		SampleRate:       ec.cfg.Sampling.RateHz,
		Samples:          total,
		DynamicRangeBits: ec.cfg.Sampling.DynamicRangeBits,
		TicksPerUnit:     ec.cfg.SystemParameters.TicksPerUnit,
		Sentinels:        ec.cfg.SystemParameters.Sentinels,
	}
	for s, g := range ec.gains {
		e := views.SensorEntry{Sensor: s + 1, Gains: g.Array()}
		if s < len(ec.quant) {
			e.Overflow = ec.quant[s].Overflow
		}
		m.Sensors = append(m.Sensors, e)
	}
	for _, o := range outs {
		m.Files = append(m.Files, views.FileEntry{
			Variant:    o.name,
			Name:       filepath.Base(o.w.Path()),
			Position:   o.schema.HasPosition(),
			RecordSize: o.schema.RecordSize(),
			Records:    o.w.Records(),
			BLAKE3:     o.w.Sum(),
		})
	}
	return m
}

// Records returns the number of samples encoded so far.
func (ec *ExportController) Records() uint64 { return atomic.LoadUint64(&ec.records) }
