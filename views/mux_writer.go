package views

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// MuxWriter streams encoded records to a file. It hashes everything it
// writes with BLAKE3 so the manifest can carry a content digest without
// a second pass over the output.
//
// Writes land in a bufio.Writer; the export controller flushes at chunk
// boundaries, never per record.
type MuxWriter struct {
	path    string
	file    *os.File
	buf     *bufio.Writer
	hash    *blake3.Hasher
	size    int
	records int64
}

// NewMuxWriter creates path and reserves room for expected records.
// Preallocation is a hint; filesystems that refuse it are ignored.
func NewMuxWriter(path string, schema Schema, bufSizeBytes int, expected int64) (*MuxWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("mux create %s: %w", path, err)
	}
	if bufSizeBytes <= 0 {
		bufSizeBytes = 1 << 20
	}
	if expected > 0 {
		_ = preallocate(f, expected*int64(schema.RecordSize()))
	}
	return &MuxWriter{
		path: path,
		file: f,
		buf:  bufio.NewWriterSize(f, bufSizeBytes),
		hash: blake3.New(),
		size: schema.RecordSize(),
	}, nil
}

// Write appends whole encoded records.
func (w *MuxWriter) Write(p []byte) (int, error) {
	if len(p)%w.size != 0 {
		return 0, fmt.Errorf("mux write %s: %d bytes is not a multiple of the %d-byte record", w.path, len(p), w.size)
	}
	n, err := w.buf.Write(p)
	_, _ = w.hash.Write(p[:n])
	w.records += int64(n / w.size)
	if err != nil {
		return n, fmt.Errorf("mux write %s: %w", w.path, err)
	}
	return n, nil
}

// Flush pushes buffered records to the OS.
func (w *MuxWriter) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("mux flush %s: %w", w.path, err)
	}
	return nil
}

// Close flushes remaining data and closes the file.
func (w *MuxWriter) Close() error {
	ferr := w.Flush()
	cerr := w.file.Close()
	if ferr != nil {
		return ferr
	}
	if cerr != nil {
		return fmt.Errorf("mux close %s: %w", w.path, cerr)
	}
	return nil
}

func (w *MuxWriter) Path() string   { return w.path }
func (w *MuxWriter) Records() int64 { return w.records }

// Sum returns the hex BLAKE3 digest of everything written so far.
func (w *MuxWriter) Sum() string {
	return hex.EncodeToString(w.hash.Sum(nil))
}

// HashFile computes the hex BLAKE3 digest of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()
	h := blake3.New()
	if _, err := bufio.NewReaderSize(f, 1<<20).WriteTo(h); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
