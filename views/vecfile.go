package views

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"muxsynth/models"
)

// ─── vector interchange files ───────────────────────────────────────────
//
// Stages hand trajectories and field samples to each other through
// .msv files:
//
//	"MSV1" | compression u8 | 3 reserved | count u64 | count × (x, y, z float64)
//
// All little-endian. The payload after the 16-byte header is optionally
// a zstd or lz4 stream.

const (
	vecMagic      = "MSV1"
	vecHeaderSize = 16
	vecRecordSize = 24
)

// Compression selects the payload codec of an interchange file.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a config name to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

// VecWriter streams vectors into an interchange file. The vector count
// is patched into the header on Close.
type VecWriter struct {
	path    string
	file    *os.File
	buf     *bufio.Writer
	enc     io.WriteCloser // nil when uncompressed
	w       io.Writer
	count   int64
	scratch []byte
}

// CreateVecFile creates path and writes a placeholder header.
func CreateVecFile(path string, c Compression, bufSizeBytes int) (*VecWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("vec create %s: %w", path, err)
	}
	if bufSizeBytes <= 0 {
		bufSizeBytes = 1 << 20
	}
	bw := bufio.NewWriterSize(f, bufSizeBytes)
	w := &VecWriter{path: path, file: f, buf: bw, w: bw}

	var hdr [vecHeaderSize]byte
	copy(hdr[:], vecMagic)
	hdr[4] = byte(c)
	if _, err := bw.Write(hdr[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("vec header %s: %w", path, err)
	}

	switch c {
	case CompressionNone:
	case CompressionZstd:
		zw, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("vec zstd %s: %w", path, err)
		}
		w.enc, w.w = zw, zw
	case CompressionLZ4:
		lw := lz4.NewWriter(bw)
		w.enc, w.w = lw, lw
	default:
		f.Close()
		return nil, fmt.Errorf("vec create %s: %s", path, c)
	}
	return w, nil
}

// Write appends vectors.
func (w *VecWriter) Write(vs []models.Vec3) error {
	need := len(vs) * vecRecordSize
	if cap(w.scratch) < need {
		w.scratch = make([]byte, need)
	}
	b := w.scratch[:need]
	for i, v := range vs {
		o := i * vecRecordSize
		binary.LittleEndian.PutUint64(b[o:], math.Float64bits(v[0]))
		binary.LittleEndian.PutUint64(b[o+8:], math.Float64bits(v[1]))
		binary.LittleEndian.PutUint64(b[o+16:], math.Float64bits(v[2]))
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("vec write %s: %w", w.path, err)
	}
	w.count += int64(len(vs))
	return nil
}

// Count returns the number of vectors written.
func (w *VecWriter) Count() int64 { return w.count }

// Close finishes the payload, patches the header count and closes the
// file.
func (w *VecWriter) Close() error {
	if err := w.finish(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("vec close %s: %w", w.path, err)
	}
	return nil
}

func (w *VecWriter) finish() error {
	if w.enc != nil {
		if err := w.enc.Close(); err != nil {
			return fmt.Errorf("vec finish %s: %w", w.path, err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("vec flush %s: %w", w.path, err)
	}
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(w.count))
	if _, err := w.file.WriteAt(n[:], 8); err != nil {
		return fmt.Errorf("vec count %s: %w", w.path, err)
	}
	return nil
}

// VecReader streams vectors back out of an interchange file.
type VecReader struct {
	path        string
	file        *os.File
	r           io.Reader
	zr          *zstd.Decoder
	compression Compression
	count       int64
	read        int64
	scratch     []byte
}

// OpenVecFile opens path and validates its header.
func OpenVecFile(path string) (*VecReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vec open %s: %w", path, err)
	}
	br := bufio.NewReaderSize(f, 1<<20)
	var hdr [vecHeaderSize]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: short header", models.ErrBadInterchange, path)
	}
	if string(hdr[:4]) != vecMagic {
		f.Close()
		return nil, fmt.Errorf("%w: %s: bad magic %q", models.ErrBadInterchange, path, hdr[:4])
	}
	r := &VecReader{
		path:        path,
		file:        f,
		compression: Compression(hdr[4]),
		count:       int64(binary.LittleEndian.Uint64(hdr[8:])),
	}
	if r.count < 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s: count overflows", models.ErrBadInterchange, path)
	}
	switch r.compression {
	case CompressionNone:
		r.r = br
	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("vec zstd %s: %w", path, err)
		}
		r.zr, r.r = zr, zr
	case CompressionLZ4:
		r.r = lz4.NewReader(br)
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s: unknown %s", models.ErrBadInterchange, path, r.compression)
	}
	return r, nil
}

// Len returns the number of vectors declared in the header.
func (r *VecReader) Len() int64 { return r.count }

// Compression returns the payload codec.
func (r *VecReader) Compression() Compression { return r.compression }

// Read fills dst with the next vectors and returns how many were read.
// It returns io.EOF once every declared vector has been read.
func (r *VecReader) Read(dst []models.Vec3) (int, error) {
	left := r.count - r.read
	if left == 0 {
		return 0, io.EOF
	}
	n := len(dst)
	if int64(n) > left {
		n = int(left)
	}
	need := n * vecRecordSize
	if cap(r.scratch) < need {
		r.scratch = make([]byte, need)
	}
	b := r.scratch[:need]
	if _, err := io.ReadFull(r.r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("%w: %s: payload ends after %d of %d vectors", models.ErrBadInterchange, r.path, r.read, r.count)
		}
		return 0, fmt.Errorf("vec read %s: %w", r.path, err)
	}
	for i := 0; i < n; i++ {
		o := i * vecRecordSize
		dst[i] = models.Vec3{
			math.Float64frombits(binary.LittleEndian.Uint64(b[o:])),
			math.Float64frombits(binary.LittleEndian.Uint64(b[o+8:])),
			math.Float64frombits(binary.LittleEndian.Uint64(b[o+16:])),
		}
	}
	r.read += int64(n)
	return n, nil
}

// Close releases the file and any decoder.
func (r *VecReader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return r.file.Close()
}

// WriteVecFile writes vs to path in one go.
func WriteVecFile(path string, vs []models.Vec3, c Compression) error {
	w, err := CreateVecFile(path, c, 0)
	if err != nil {
		return err
	}
	if err := w.Write(vs); err != nil {
		w.file.Close()
		return err
	}
	return w.Close()
}

// ReadVecFile loads a whole interchange file into memory.
func ReadVecFile(path string) ([]models.Vec3, error) {
	r, err := OpenVecFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]models.Vec3, r.Len())
	got := 0
	for got < len(out) {
		n, err := r.Read(out[got:])
		if err != nil {
			return nil, err
		}
		got += n
	}
	return out, nil
}
