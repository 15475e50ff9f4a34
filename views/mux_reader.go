package views

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"muxsynth/models"
)

// MuxReader decodes a muxed stream in fixed-size chunks so files larger
// than memory can be inspected.
type MuxReader struct {
	r      io.Reader
	schema Schema
	buf    []byte
	index  int64
	eof    bool
}

// NewMuxReader reads chunkRecords records per call to Next.
func NewMuxReader(r io.Reader, schema Schema, chunkRecords int) *MuxReader {
	if chunkRecords < 1 {
		chunkRecords = 4096
	}
	return &MuxReader{
		r:      bufio.NewReaderSize(r, 1<<20),
		schema: schema,
		buf:    make([]byte, chunkRecords*schema.RecordSize()),
	}
}

// Next returns the next run of records, or io.EOF once the stream is
// exhausted. A partial trailing record yields ErrTruncatedStream.
func (m *MuxReader) Next() ([]models.Record, error) {
	if m.eof {
		return nil, io.EOF
	}
	size := m.schema.RecordSize()
	if size == 0 {
		return nil, fmt.Errorf("%w: schema has no fields", models.ErrInvalidSensorCount)
	}
	n, err := io.ReadFull(m.r, m.buf)
	switch {
	case errors.Is(err, io.EOF):
		m.eof = true
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		m.eof = true
	case err != nil:
		return nil, fmt.Errorf("mux read: %w", err)
	}

	if rem := n % size; rem != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after record %d", models.ErrTruncatedStream, rem, m.index+int64(n/size))
	}
	recs, err := Decode(m.buf[:n], m.schema)
	if err != nil {
		return nil, err
	}
	m.index += int64(len(recs))
	return recs, nil
}

// Index returns the number of records returned so far.
func (m *MuxReader) Index() int64 { return m.index }
