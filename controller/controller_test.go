package controller

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"muxsynth/models"
	"muxsynth/services/field"
	"muxsynth/utils"
	"muxsynth/views"
)

// smallConfig describes a 2-sensor, 2-plane scan sampled at 10 Hz:
// each plane is Y sweep (20 samples), Z shift (10), Y return (20),
// Z shift (10) and an X step (10), 140 samples in all.
func smallConfig(t *testing.T) *utils.Config {
	t.Helper()
	cfg := utils.Default()
	cfg.Files.OutputDir = t.TempDir()
	cfg.SystemParameters.SensorCount = 2
	cfg.SystemParameters.Origin = [3]float64{-1.5, -1.5, 5}
	cfg.Sampling.RateHz = 10
	cfg.Sampling.MinRateHz = 1
	cfg.ScanSetup.Dimensions = utils.AxisValues{X: 3, Y: 3, Z: 3}
	cfg.ScanSetup.Steps = utils.AxisValues{X: 1, Z: 1}
	cfg.ScanSetup.PlaneRepeats = 1
	cfg.ScanSetup.XRepeats = 2
	cfg.ScanSetup.Durations = utils.DurationsConfig{XScan: 1, YScan: 2, ZScan: 1}
	cfg.Export.ChunkSamples = 32
	cfg.Export.Workers = 2
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestPipelineEndToEnd(t *testing.T) {
	for _, comp := range []string{"none", "zstd"} {
		t.Run(comp, func(t *testing.T) {
			cfg := smallConfig(t)
			cfg.Export.Compression = comp

			m, err := RunPipeline(context.Background(), cfg)
			if err != nil {
				t.Fatal(err)
			}
			if m.Samples != 140 || len(m.Files) != 2 || len(m.Sensors) != 2 {
				t.Fatalf("manifest: samples=%d files=%d sensors=%d", m.Samples, len(m.Files), len(m.Sensors))
			}
			for _, s := range m.Sensors {
				if s.Gains[models.AxisT] != s.Gains[models.AxisX] {
					t.Fatalf("S%d T gain %d != X gain %d", s.Sensor, s.Gains[models.AxisT], s.Gains[models.AxisX])
				}
			}

			wp, ok := m.File(utils.VariantWithPosition)
			if !ok || wp.RecordSize != 48 || wp.Records != 140 {
				t.Fatalf("with_position entry %+v", wp)
			}
			info, err := os.Stat(cfg.MuxedPath(utils.VariantWithPosition))
			if err != nil {
				t.Fatal(err)
			}
			if info.Size() != 140*48 {
				t.Fatalf("with_position file is %d bytes", info.Size())
			}
			np, _ := m.File(utils.VariantNoPosition)
			if np.RecordSize != 36 {
				t.Fatalf("no_position record size %d", np.RecordSize)
			}

			csvDir := t.TempDir()
			reports, err := NewInspectController(cfg.Path(cfg.Files.Manifest), 50).WithCSV(csvDir, 10).Run(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(reports) != 2 {
				t.Fatalf("%d reports", len(reports))
			}
			for _, r := range reports {
				if !r.DigestOK || r.Records != 140 {
					t.Fatalf("%s: digest_ok=%v records=%d", r.Variant, r.DigestOK, r.Records)
				}
				if r.First.Count != 0 || r.First.Usec != 0 || r.Last.Count != 139 || r.Last.Usec != 14000000 {
					t.Fatalf("%s: first %d/%d last %d/%d", r.Variant, r.First.Count, r.First.Usec, r.Last.Count, r.Last.Usec)
				}
				if lines := countLines(t, r.CSVPath); lines != 11 {
					t.Fatalf("%s: csv has %d lines, want header + 10", r.Variant, lines)
				}
			}

			// First sample sits at the origin: -1.5 mm → -15000 ticks.
			if p := reports[0].First.Position; p != [3]int32{-15000, -15000, 50000} {
				t.Fatalf("first position %v", p)
			}
		})
	}
}

func TestInspectDetectsTampering(t *testing.T) {
	cfg := smallConfig(t)
	if _, err := RunPipeline(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}

	path := cfg.MuxedPath(utils.VariantNoPosition)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Flip a USR1 byte in record 5.
	schema, _ := views.NewSchema(2, false)
	usr1, _ := schema.Field("USR1")
	data[5*schema.RecordSize()+usr1.Offset] ^= 0x01
	os.WriteFile(path, data, 0644)

	_, err = NewInspectController(cfg.Path(cfg.Files.Manifest), 16).Run(context.Background())
	if !errors.Is(err, models.ErrSentinelMismatch) {
		t.Fatalf("got %v, want ErrSentinelMismatch", err)
	}

	// A digest mismatch alone is reported, not fatal.
	data[5*schema.RecordSize()+usr1.Offset] ^= 0x01
	s1x, _ := schema.Field("S1X")
	data[s1x.Offset] ^= 0x01
	os.WriteFile(path, data, 0644)
	reports, err := NewInspectController(cfg.Path(cfg.Files.Manifest), 16).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reports[1].DigestOK {
		t.Fatal("tampered file passed the digest check")
	}
}

func TestExportRejectsShortFieldFile(t *testing.T) {
	cfg := smallConfig(t)
	ctx := context.Background()
	if err := NewTrajectoryController(cfg).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := NewFieldController(cfg).Run(ctx); err != nil {
		t.Fatal(err)
	}
	vs, err := views.ReadVecFile(cfg.FieldPath(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := views.WriteVecFile(cfg.FieldPath(2), vs[:100], views.CompressionNone); err != nil {
		t.Fatal(err)
	}
	if _, err := NewExportController(cfg).Run(ctx); !errors.Is(err, models.ErrLengthMismatch) {
		t.Fatalf("got %v, want ErrLengthMismatch", err)
	}
}

func TestExportDegenerateSensor(t *testing.T) {
	cfg := smallConfig(t)
	ctx := context.Background()
	if err := NewTrajectoryController(cfg).Run(ctx); err != nil {
		t.Fatal(err)
	}
	zero := field.Func(func(ps []models.Vec3) ([]models.Vec3, error) {
		return make([]models.Vec3, len(ps)), nil
	})
	if err := NewFieldController(cfg).WithSampler(2, zero).Run(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := NewExportController(cfg).Run(ctx)
	if !errors.Is(err, models.ErrDegenerateChannel) {
		t.Fatalf("got %v, want ErrDegenerateChannel", err)
	}
}

func TestScanCountsCapPath(t *testing.T) {
	cfg := smallConfig(t)
	cfg.ScanSetup.ScanCounts = utils.ScanCountsConfig{X: 0, Y: 1, Z: 0}
	tc := NewTrajectoryController(cfg)
	if err := tc.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// One Y sweep: 10 Hz × 2 s.
	if tc.Samples() != 20 {
		t.Fatalf("samples = %d, want 20", tc.Samples())
	}
	vs, _ := views.ReadVecFile(cfg.Path(cfg.Files.ScanPath))
	if len(vs) != 20 || vs[19] != (models.Vec3{-1.5, 1.5, 5}) {
		t.Fatalf("path has %d samples, last %v", len(vs), vs[len(vs)-1])
	}

	cfg.ScanSetup.ScanCounts = utils.ScanCountsConfig{X: 2, Y: 1, Z: 1}
	if err := NewTrajectoryController(cfg).Run(context.Background()); !errors.Is(err, models.ErrScanCountOrdering) {
		t.Fatalf("got %v, want ErrScanCountOrdering", err)
	}
}

func TestTrajectoryHonoursCancel(t *testing.T) {
	cfg := smallConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewTrajectoryController(cfg).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestTrajectoryVertices(t *testing.T) {
	cfg := smallConfig(t)
	vs, err := NewTrajectoryController(cfg).Vertices()
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 11 {
		t.Fatalf("%d vertices, want 11", len(vs))
	}
	// Plane 0 climbs 2 mm in Z, plane 1 descends again; two X steps.
	if want := (models.Vec3{0.5, -1.5, 5}); vs[10] != want {
		t.Fatalf("last vertex %v, want %v", vs[10], want)
	}
	if p := filepath.Base(cfg.FieldPath(1)); p != "field_s1.msv" {
		t.Fatalf("field path %s", p)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}
