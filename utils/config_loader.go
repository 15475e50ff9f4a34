package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"muxsynth/models"
)

// ─── Section configs ────────────────────────────────────────────────────

// AxisValues holds one number per machine axis.
type AxisValues struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type FilesConfig struct {
	OutputDir   string   `yaml:"output_dir"`
	Trajectory  string   `yaml:"trajectory"`          // trajectory vertices
	ScanPath    string   `yaml:"recorded_scan_path"`  // per-sample positions
	FieldInputs []string `yaml:"input_list"`          // one field file per sensor
	MuxedOutput string   `yaml:"output_muxed_result"` // base name of the muxed files
	Manifest    string   `yaml:"manifest"`
}

type SystemConfig struct {
	SensorCount  int        `yaml:"sensor_count"`
	Origin       [3]float64 `yaml:"origin"`
	TicksPerUnit float64    `yaml:"ticks_per_unit"` // position mm → XPOS/YPOS/ZPOS ticks
	Sentinels    [3]int32   `yaml:"usr_sentinels"`
}

type MotionProfileConfig struct {
	Acceleration AxisValues `yaml:"acceleration_mm_per_s2"`
	MaxVelocity  AxisValues `yaml:"max_velocity_mm_per_s"`
}

type SamplingConfig struct {
	RateHz           float64 `yaml:"rate_hz"`
	MinRateHz        float64 `yaml:"min_rate_hz"`
	MaxRateHz        float64 `yaml:"max_rate_hz"`
	DynamicRangeBits int     `yaml:"dynamic_range_bits"`
}

type DurationsConfig struct {
	XScan float64 `yaml:"x_scan"`
	YScan float64 `yaml:"y_scan"`
	ZScan float64 `yaml:"z_scan"`
}

type ScanCountsConfig struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

type ScanSetupConfig struct {
	Dimensions   AxisValues       `yaml:"dimensions_mm"`
	Steps        AxisValues       `yaml:"steps_mm"`
	PlaneRepeats int              `yaml:"plane_repeats"`
	XRepeats     int              `yaml:"x_repeats"`
	Durations    DurationsConfig  `yaml:"durations_s"`
	ScanCounts   ScanCountsConfig `yaml:"scan_counts"`
}

type SimulationConfig struct {
	Polarization  [3]float64      `yaml:"polarization_mt"`
	DiameterMM    float64         `yaml:"diameter_mm"`
	PositionMM    [3]float64      `yaml:"position_mm"`
	SensorOffsets [][3]float64    `yaml:"sensor_offsets_mm"`
	Segments      *models.Segment `yaml:"segments"` // overrides the raster plan
}

type ExportConfig struct {
	ChunkSamples int      `yaml:"chunk_samples"`
	Workers      int      `yaml:"workers"`
	Compression  string   `yaml:"compression"` // none | zstd | lz4
	BufferSizeKB int      `yaml:"buffer_size_kb"`
	Variants     []string `yaml:"variants"` // with_position | no_position
}

// Config is the top-level structure of config.yml.
type Config struct {
	Files             FilesConfig         `yaml:"files"`
	SystemParameters  SystemConfig        `yaml:"system_parameters"`
	MotionProfile     MotionProfileConfig `yaml:"motion_profile"`
	Sampling          SamplingConfig      `yaml:"sampling"`
	ScanSetup         ScanSetupConfig     `yaml:"scan_setup"`
	SimulationObjects SimulationConfig    `yaml:"simulation_objects"`
	Export            ExportConfig        `yaml:"export"`
}

const (
	VariantWithPosition = "with_position"
	VariantNoPosition   = "no_position"
)

// ─── Loaders ────────────────────────────────────────────────────────────

// LoadConfig reads a YAML config, or a JSON/JSONC one when the file
// extension says so, fills defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes config bytes. ext selects the dialect: ".json" and
// ".jsonc" are stripped of comments and trailing commas first (JSON is
// valid YAML, so both dialects share the YAML decoder and its segment
// handling).
func ParseConfig(data []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.Defaults()
	return &cfg
}

// Defaults fills every zero-valued parameter with the rig's standard
// setup: eight sensors, 10 kHz sampling, 16-bit AI, 300 mm cube.
func (c *Config) Defaults() {
	f := &c.Files
	setString(&f.OutputDir, "data")
	setString(&f.Trajectory, "trajectory.msv")
	setString(&f.ScanPath, "simulated_path.msv")
	setString(&f.MuxedOutput, "binary_data.bin")
	setString(&f.Manifest, "manifest.cbor")

	s := &c.SystemParameters
	setInt(&s.SensorCount, 8)
	setFloat(&s.TicksPerUnit, 10000)
	if s.Sentinels == [3]int32{} {
		s.Sentinels = models.DefaultSentinels()
	}

	m := &c.MotionProfile
	setAxes(&m.Acceleration, AxisValues{X: 1, Y: 10, Z: 3})
	setAxes(&m.MaxVelocity, AxisValues{X: 2, Y: 20, Z: 3})

	sm := &c.Sampling
	setFloat(&sm.RateHz, 10000)
	setFloat(&sm.MinRateHz, 10000)
	setFloat(&sm.MaxRateHz, 200000)
	setInt(&sm.DynamicRangeBits, 16)

	sc := &c.ScanSetup
	setAxes(&sc.Dimensions, AxisValues{X: 300, Y: 300, Z: 300})
	setAxes(&sc.Steps, AxisValues{X: 10, Z: 15})
	setInt(&sc.PlaneRepeats, 10)
	setInt(&sc.XRepeats, 30)
	setFloat(&sc.Durations.XScan, 7)
	setFloat(&sc.Durations.YScan, 17)
	setFloat(&sc.Durations.ZScan, 11)

	so := &c.SimulationObjects
	if so.Polarization == [3]float64{} {
		so.Polarization = [3]float64{500, 0, 500}
	}
	setFloat(&so.DiameterMM, 2)

	e := &c.Export
	setInt(&e.ChunkSamples, 65536)
	setString(&e.Compression, "none")
	setInt(&e.BufferSizeKB, 1024)
	if len(e.Variants) == 0 {
		e.Variants = []string{VariantWithPosition, VariantNoPosition}
	}
}

// Validate checks cross-field constraints the pipeline relies on.
func (c *Config) Validate() error {
	n := c.SystemParameters.SensorCount
	if n < 1 {
		return fmt.Errorf("config: %w: sensor_count=%d", models.ErrInvalidSensorCount, n)
	}
	if k := len(c.Files.FieldInputs); k != 0 && k != n {
		return fmt.Errorf("config: input_list has %d files for %d sensors", k, n)
	}
	if k := len(c.SimulationObjects.SensorOffsets); k != 0 && k != n {
		return fmt.Errorf("config: sensor_offsets_mm has %d entries for %d sensors", k, n)
	}
	if c.SystemParameters.TicksPerUnit <= 0 {
		return fmt.Errorf("config: ticks_per_unit must be > 0")
	}

	sm := c.Sampling
	if sm.MinRateHz > sm.MaxRateHz {
		return fmt.Errorf("config: min_rate_hz %g > max_rate_hz %g", sm.MinRateHz, sm.MaxRateHz)
	}
	if sm.RateHz < sm.MinRateHz || sm.RateHz > sm.MaxRateHz {
		return fmt.Errorf("config: rate_hz %g outside [%g, %g]", sm.RateHz, sm.MinRateHz, sm.MaxRateHz)
	}
	if sm.DynamicRangeBits < 2 || sm.DynamicRangeBits > 16 {
		return fmt.Errorf("config: dynamic_range_bits must be in 2..16, got %d", sm.DynamicRangeBits)
	}

	d := c.ScanSetup.Durations
	if d.XScan <= 0 || d.YScan <= 0 || d.ZScan <= 0 {
		return fmt.Errorf("config: scan durations must be > 0")
	}

	e := c.Export
	if e.ChunkSamples < 1 {
		return fmt.Errorf("config: chunk_samples must be >= 1")
	}
	switch e.Compression {
	case "none", "zstd", "lz4":
	default:
		return fmt.Errorf("config: unknown compression %q", e.Compression)
	}
	for _, v := range e.Variants {
		if v != VariantWithPosition && v != VariantNoPosition {
			return fmt.Errorf("config: unknown export variant %q", v)
		}
	}
	return nil
}

// ─── Derived values ─────────────────────────────────────────────────────

// Path resolves a file name against files.output_dir unless it is
// already absolute.
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Files.OutputDir, name)
}

// FieldPath returns the field-sample file of a sensor (numbered from 1).
func (c *Config) FieldPath(sensor int) string {
	if len(c.Files.FieldInputs) >= sensor {
		return c.Path(c.Files.FieldInputs[sensor-1])
	}
	return c.Path(fmt.Sprintf("field_s%d.msv", sensor))
}

// MuxedPath returns the output file of one export variant.
func (c *Config) MuxedPath(variant string) string {
	return c.Path(variant + "_" + c.Files.MuxedOutput)
}

// SensorOffset returns where a sensor sits relative to the scan head.
// Without explicit offsets the sensors are stacked 5 mm apart along Z.
func (c *Config) SensorOffset(sensor int) [3]float64 {
	if len(c.SimulationObjects.SensorOffsets) >= sensor {
		return c.SimulationObjects.SensorOffsets[sensor-1]
	}
	return [3]float64{0, 0, 5 * float64(sensor-1)}
}

// HasVariant reports whether an export variant is enabled.
func (c *Config) HasVariant(name string) bool {
	for _, v := range c.Export.Variants {
		if v == name {
			return true
		}
	}
	return false
}

func setString(p *string, v string) {
	if *p == "" {
		*p = v
	}
}

func setInt(p *int, v int) {
	if *p == 0 {
		*p = v
	}
}

func setFloat(p *float64, v float64) {
	if *p == 0 {
		*p = v
	}
}

func setAxes(p *AxisValues, v AxisValues) {
	if *p == (AxisValues{}) {
		*p = v
	}
}
