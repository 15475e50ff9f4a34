package views

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ManifestVersion is bumped whenever a field changes meaning.
const ManifestVersion = 1

// Manifest describes one export: the acquisition constants a reader
// needs to turn counts back into field values and the muxed files that
// were produced.
type Manifest struct {
	Version          int           `cbor:"version"`
	CreatedAt        time.Time     `cbor:"created_at"`
	SensorCount      int           `cbor:"sensor_count"`
	SampleRate       float64       `cbor:"sample_rate_hz"`
	Samples          int64         `cbor:"samples"`
	DynamicRangeBits int           `cbor:"dynamic_range_bits"`
	TicksPerUnit     float64       `cbor:"ticks_per_unit"`
	Sentinels        [3]int32      `cbor:"usr_sentinels"`
	Sensors          []SensorEntry `cbor:"sensors"`
	Files            []FileEntry   `cbor:"files"`
}

// SensorEntry records the gains applied to one sensor. Raw field value
// = count / gain.
type SensorEntry struct {
	Sensor   int      `cbor:"sensor"`
	Gains    [4]int64 `cbor:"gains"` // X Y Z T
	Overflow [4]int64 `cbor:"overflow"`
}

// FileEntry describes one muxed output file.
type FileEntry struct {
	Variant    string `cbor:"variant"`
	Name       string `cbor:"name"`
	Position   bool   `cbor:"position"`
	RecordSize int    `cbor:"record_size"`
	Records    int64  `cbor:"records"`
	BLAKE3     string `cbor:"blake3"`
}

var (
	manifestEnc cbor.EncMode
	manifestDec cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	if manifestEnc, err = opts.EncMode(); err != nil {
		panic("views: CBOR encoder initialization failed: " + err.Error())
	}
	if manifestDec, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic("views: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalManifest encodes m deterministically.
func MarshalManifest(m *Manifest) ([]byte, error) {
	return manifestEnc.Marshal(m)
}

// UnmarshalManifest decodes a manifest and checks its version.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := manifestDec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest decode: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("manifest version %d, want %d", m.Version, ManifestVersion)
	}
	return &m, nil
}

// WriteManifest stores m at path.
func WriteManifest(path string, m *Manifest) error {
	data, err := MarshalManifest(m)
	if err != nil {
		return fmt.Errorf("manifest encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("manifest write %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads a manifest from path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest read %s: %w", path, err)
	}
	return UnmarshalManifest(data)
}

// Schema rebuilds the record layout of one of the manifest's files.
func (m *Manifest) Schema(f FileEntry) (Schema, error) {
	s, err := NewSchema(m.SensorCount, f.Position)
	if err != nil {
		return Schema{}, err
	}
	if f.RecordSize != 0 && f.RecordSize != s.RecordSize() {
		return Schema{}, fmt.Errorf("manifest: %s declares %d-byte records, layout gives %d", f.Name, f.RecordSize, s.RecordSize())
	}
	return s, nil
}

// File looks an output file up by variant.
func (m *Manifest) File(variant string) (FileEntry, bool) {
	for _, f := range m.Files {
		if f.Variant == variant {
			return f, true
		}
	}
	return FileEntry{}, false
}
