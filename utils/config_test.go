package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"muxsynth/models"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.SystemParameters.SensorCount != 8 {
		t.Fatalf("sensor_count = %d", cfg.SystemParameters.SensorCount)
	}
	if cfg.SystemParameters.Sentinels != models.DefaultSentinels() {
		t.Fatalf("sentinels = %v", cfg.SystemParameters.Sentinels)
	}
	if d := cfg.ScanSetup.Durations; d.XScan != 7 || d.YScan != 17 || d.ZScan != 11 {
		t.Fatalf("durations = %+v", d)
	}
	if !cfg.HasVariant(VariantWithPosition) || !cfg.HasVariant(VariantNoPosition) {
		t.Fatalf("variants = %v", cfg.Export.Variants)
	}
}

func TestLoadYAML(t *testing.T) {
	src := `
files:
  output_dir: /tmp/run
  input_list: [a.msv, b.msv]
system_parameters:
  sensor_count: 2
sampling:
  rate_hz: 20000
  dynamic_range_bits: 12
scan_setup:
  scan_counts: {x: 0, y: 1, z: 0}
simulation_objects:
  segments:
    - [0, 300, 0]
    - [0, 0, 15]
`
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SystemParameters.SensorCount != 2 || cfg.Sampling.RateHz != 20000 || cfg.Sampling.DynamicRangeBits != 12 {
		t.Fatalf("fields not mapped: %+v", cfg)
	}
	if cfg.ScanSetup.ScanCounts.Y != 1 {
		t.Fatalf("scan_counts = %+v", cfg.ScanSetup.ScanCounts)
	}
	if cfg.SimulationObjects.Segments == nil || cfg.SimulationObjects.Segments.LeafCount() != 2 {
		t.Fatalf("segments not decoded: %+v", cfg.SimulationObjects.Segments)
	}
	if got := cfg.FieldPath(2); got != "/tmp/run/b.msv" {
		t.Fatalf("FieldPath(2) = %s", got)
	}
	if got := cfg.MuxedPath(VariantNoPosition); got != "/tmp/run/no_position_binary_data.bin" {
		t.Fatalf("MuxedPath = %s", got)
	}
}

func TestLoadJSONC(t *testing.T) {
	src := `{
  // four sensors, stacked 10 mm apart
  "system_parameters": {"sensor_count": 4,},
  "simulation_objects": {
    "sensor_offsets_mm": [[0,0,0],[0,0,10],[0,0,20],[0,0,30]],
  },
  /* compressed interchange */
  "export": {"compression": "zstd"},
}`
	path := filepath.Join(t.TempDir(), "config.jsonc")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SystemParameters.SensorCount != 4 || cfg.Export.Compression != "zstd" {
		t.Fatalf("fields not mapped: %+v", cfg)
	}
	if off := cfg.SensorOffset(3); off != [3]float64{0, 0, 20} {
		t.Fatalf("SensorOffset(3) = %v", off)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative sensors", func(c *Config) { c.SystemParameters.SensorCount = -1 }},
		{"rate above max", func(c *Config) { c.Sampling.RateHz = 500000 }},
		{"bits too wide", func(c *Config) { c.Sampling.DynamicRangeBits = 24 }},
		{"input list mismatch", func(c *Config) { c.Files.FieldInputs = []string{"a"} }},
		{"bad compression", func(c *Config) { c.Export.Compression = "gzip" }},
		{"bad variant", func(c *Config) { c.Export.Variants = []string{"both"} }},
		{"zero ticks", func(c *Config) { c.SystemParameters.TicksPerUnit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateSensorCountKind(t *testing.T) {
	cfg := Default()
	cfg.SystemParameters.SensorCount = -3
	if err := cfg.Validate(); !errors.Is(err, models.ErrInvalidSensorCount) {
		t.Fatalf("err = %v, want ErrInvalidSensorCount", err)
	}
}

func TestDefaultSensorOffsets(t *testing.T) {
	cfg := Default()
	if off := cfg.SensorOffset(8); off != [3]float64{0, 0, 35} {
		t.Fatalf("SensorOffset(8) = %v", off)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	if err != nil || lvl != WARN {
		t.Fatalf("ParseLevel(warn) = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestSessionNameAndRate(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if got := SessionName("scan", ts); got != "scan_20260304_050607" {
		t.Fatalf("SessionName = %s", got)
	}
	if got := PerSecond(2_500_000, time.Second); got != "2.50M/s" {
		t.Fatalf("PerSecond = %s", got)
	}
}
