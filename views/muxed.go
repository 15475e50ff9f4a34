package views

import (
	"encoding/binary"
	"fmt"
	"math"

	"muxsynth/models"
)

// EncodeConfig carries the acquisition constants stamped into every
// record alongside the quantised channels.
type EncodeConfig struct {
	SampleRate   float64  // Hz, drives the USEC ramp
	TicksPerUnit float64  // position unit → XPOS/YPOS/ZPOS ticks
	Sentinels    [3]int32 // USR1..USR3
}

// DefaultEncodeConfig matches the rig: 10 kHz, 10000 ticks per mm.
func DefaultEncodeConfig() EncodeConfig {
	return EncodeConfig{
		SampleRate:   10000,
		TicksPerUnit: 10000,
		Sentinels:    models.DefaultSentinels(),
	}
}

// Chunk is a contiguous run of samples. Channels is indexed by sensor
// (from 0) then axis. Positions may be longer than the channels (the
// excess is ignored) and may be nil for schemas without position words.
type Chunk struct {
	Channels  [][models.AxesPerSensor][]int16
	Positions []models.Vec3
}

// Len returns the number of samples in the chunk.
func (c Chunk) Len() int {
	if len(c.Channels) == 0 {
		return 0
	}
	return len(c.Channels[0][models.AxisX])
}

// Encoder packs quantised samples into records. It keeps the running
// sample index so a stream can be produced chunk by chunk; the result is
// byte-identical to encoding the whole scan at once.
//
// CNT is the sample index and USEC the timestamp on a linear ramp from 0
// to total/rate seconds. Both are written as wrapping 32-bit counters.
type Encoder struct {
	schema  Schema
	cfg     EncodeConfig
	total   int64
	next    int64
	elapsed float64 // µs at the last sample
	step    float64 // µs between samples
	rec     models.Record
}

// NewEncoder prepares an encoder for a stream of total samples.
func NewEncoder(schema Schema, cfg EncodeConfig, total int64) (*Encoder, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("encoder: sample rate must be > 0, got %g", cfg.SampleRate)
	}
	if total < 0 {
		return nil, fmt.Errorf("encoder: negative sample count %d", total)
	}
	e := &Encoder{
		schema: schema,
		cfg:    cfg,
		total:  total,
		rec:    models.Record{Channels: make([]int16, schema.channelCount())},
	}
	e.elapsed = float64(total) / cfg.SampleRate * 1e6
	if total > 1 {
		e.step = e.elapsed / float64(total-1)
	}
	return e, nil
}

// Next returns the index of the next sample to be encoded.
func (e *Encoder) Next() int64 { return e.next }

// Remaining returns how many samples are still expected.
func (e *Encoder) Remaining() int64 { return e.total - e.next }

// AppendChunk encodes c and appends the records to dst.
func (e *Encoder) AppendChunk(dst []byte, c Chunk) ([]byte, error) {
	n := c.Len()
	if err := e.check(c, n); err != nil {
		return dst, err
	}
	size := e.schema.RecordSize()
	start := len(dst)
	dst = grow(dst, n*size)

	sensors := e.schema.SensorCount()
	for i := 0; i < n; i++ {
		r := &e.rec
		for s := 0; s < sensors; s++ {
			for a := 0; a < models.AxesPerSensor; a++ {
				r.Channels[s*models.AxesPerSensor+a] = c.Channels[s][a][i]
			}
		}
		if e.schema.HasPosition() {
			p, err := e.ticks(c.Positions[i])
			if err != nil {
				return dst[:start], err
			}
			r.Position = p
		}
		idx := e.next + int64(i)
		r.Count = int32(idx)
		r.Usec = e.usec(idx)
		r.User = e.cfg.Sentinels

		e.schema.Put(dst[start+i*size:start+(i+1)*size], r)
	}
	e.next += int64(n)
	return dst, nil
}

func (e *Encoder) check(c Chunk, n int) error {
	if len(c.Channels) != e.schema.SensorCount() {
		return fmt.Errorf("%w: %d sensors in chunk, schema has %d", models.ErrLengthMismatch, len(c.Channels), e.schema.SensorCount())
	}
	for s := range c.Channels {
		for a, ch := range c.Channels[s] {
			if len(ch) != n {
				return fmt.Errorf("%w: %s has %d samples, want %d", models.ErrLengthMismatch,
					models.ChannelName(s+1, models.Axis(a)), len(ch), n)
			}
		}
	}
	if e.schema.HasPosition() && len(c.Positions) < n {
		return fmt.Errorf("%w: %d positions for %d samples", models.ErrLengthMismatch, len(c.Positions), n)
	}
	if e.next+int64(n) > e.total {
		return fmt.Errorf("%w: chunk ends at sample %d, stream has %d", models.ErrLengthMismatch, e.next+int64(n), e.total)
	}
	return nil
}

func (e *Encoder) usec(i int64) int32 {
	var v float64
	switch {
	case e.total <= 1:
	case i == e.total-1:
		v = e.elapsed
	default:
		v = float64(i) * e.step
	}
	return int32(int64(v))
}

func (e *Encoder) ticks(p models.Vec3) ([3]int32, error) {
	var out [3]int32
	for k, v := range p {
		t := math.Trunc(v * e.cfg.TicksPerUnit)
		if math.IsNaN(t) || t < math.MinInt32 || t > math.MaxInt32 {
			return out, fmt.Errorf("encoder: %s %g out of range at sample %d", positionNames[k], v, e.next)
		}
		out[k] = int32(t)
	}
	return out, nil
}

// EncodeRecords encodes a complete scan in one call. channels is indexed
// by sensor then axis; positions is ignored for schemas without
// position words.
func EncodeRecords(channels [][models.AxesPerSensor][]int16, positions []models.Vec3, schema Schema, cfg EncodeConfig) ([]byte, error) {
	c := Chunk{Channels: channels}
	if schema.HasPosition() {
		c.Positions = positions
	}
	enc, err := NewEncoder(schema, cfg, int64(c.Len()))
	if err != nil {
		return nil, err
	}
	return enc.AppendChunk(nil, c)
}

// ─── record packing ─────────────────────────────────────────────────────

// Put writes rec into b, which must be exactly one record long.
func (s Schema) Put(b []byte, rec *models.Record) {
	nch := s.channelCount()
	for i, f := range s.fields {
		var v int64
		switch {
		case i < nch:
			v = int64(rec.Channels[i])
		case s.position && i < nch+len(positionNames):
			v = int64(rec.Position[i-nch])
		default:
			v = int64(trailerValue(rec, i-s.trailerStart()))
		}
		putField(b[f.Offset:f.Offset+f.Width], f, v)
	}
}

// Unpack decodes one record from b.
func (s Schema) Unpack(b []byte) models.Record {
	rec := models.Record{Channels: make([]int16, s.channelCount())}
	nch := s.channelCount()
	for i, f := range s.fields {
		v := getField(b[f.Offset:f.Offset+f.Width], f)
		switch {
		case i < nch:
			rec.Channels[i] = int16(v)
		case s.position && i < nch+len(positionNames):
			rec.Position[i-nch] = int32(v)
		default:
			setTrailer(&rec, i-s.trailerStart(), int32(v))
		}
	}
	return rec
}

func (s Schema) trailerStart() int {
	if s.position {
		return s.channelCount() + len(positionNames)
	}
	return s.channelCount()
}

func trailerValue(rec *models.Record, k int) int32 {
	switch k {
	case 0:
		return rec.Count
	case 1:
		return rec.Usec
	default:
		return rec.User[k-2]
	}
}

func setTrailer(rec *models.Record, k int, v int32) {
	switch k {
	case 0:
		rec.Count = v
	case 1:
		rec.Usec = v
	default:
		rec.User[k-2] = v
	}
}

func putField(b []byte, f Field, v int64) {
	switch f.Width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, uint64(v))
	}
}

func getField(b []byte, f Field) int64 {
	switch f.Width {
	case 1:
		if f.Signed {
			return int64(int8(b[0]))
		}
		return int64(b[0])
	case 2:
		u := binary.LittleEndian.Uint16(b)
		if f.Signed {
			return int64(int16(u))
		}
		return int64(u)
	case 4:
		u := binary.LittleEndian.Uint32(b)
		if f.Signed {
			return int64(int32(u))
		}
		return int64(u)
	case 8:
		return int64(binary.LittleEndian.Uint64(b))
	}
	return 0
}

func grow(b []byte, n int) []byte {
	if cap(b)-len(b) >= n {
		return b[:len(b)+n]
	}
	nb := make([]byte, len(b)+n, 2*len(b)+n)
	copy(nb, b)
	return nb
}

// ─── decoding ───────────────────────────────────────────────────────────

// Decode splits a muxed byte stream into records. The stream must hold
// a whole number of records.
func Decode(data []byte, schema Schema) ([]models.Record, error) {
	size := schema.RecordSize()
	if size == 0 {
		return nil, fmt.Errorf("%w: schema has no fields", models.ErrInvalidSensorCount)
	}
	if rem := len(data) % size; rem != 0 {
		return nil, fmt.Errorf("%w: %d bytes is %d records plus %d bytes", models.ErrTruncatedStream, len(data), len(data)/size, rem)
	}
	out := make([]models.Record, len(data)/size)
	for i := range out {
		out[i] = schema.Unpack(data[i*size : (i+1)*size])
	}
	return out, nil
}

// Verify checks the alignment words of a record that sits at position
// index in its stream: CNT must equal the index (mod 2^32) and USR1..3
// must carry the sentinels.
func Verify(rec *models.Record, index int64, sentinels [3]int32) error {
	if rec.User != sentinels {
		return fmt.Errorf("%w: record %d has USR %#x %#x %#x", models.ErrSentinelMismatch, index, rec.User[0], rec.User[1], rec.User[2])
	}
	if rec.Count != int32(index) {
		return fmt.Errorf("%w: record %d has CNT %d", models.ErrSentinelMismatch, index, rec.Count)
	}
	return nil
}
