package views

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"muxsynth/models"
)

// CSVWriter is a concurrency-safe, buffered CSV writer used to dump
// decoded records for spreadsheets and quick plots.
//
// The mutex is held for a single row encode. Flush is left to the
// caller so the hot path never blocks on I/O.
type CSVWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	csv  *csv.Writer
	rows uint64
}

// NewCSVWriter creates a file and writes the header row, if any.
func NewCSVWriter(path string, bufSizeBytes int, header []string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv create %s: %w", path, err)
	}

	if bufSizeBytes <= 0 {
		bufSizeBytes = 256 * 1024
	}

	bw := bufio.NewWriterSize(f, bufSizeBytes)
	cw := csv.NewWriter(bw)

	if len(header) > 0 {
		if err := cw.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv write header: %w", err)
		}
	}

	return &CSVWriter{file: f, buf: bw, csv: cw}, nil
}

// NewRecordCSV opens a CSV file whose header is the schema's column
// names.
func NewRecordCSV(path string, schema Schema, bufSizeBytes int) (*CSVWriter, error) {
	return NewCSVWriter(path, bufSizeBytes, schema.Names())
}

// WriteRow appends a single CSV row. Thread-safe.
func (w *CSVWriter) WriteRow(row []string) {
	w.mu.Lock()
	_ = w.csv.Write(row) // error is buffered; checked on Flush
	w.rows++
	w.mu.Unlock()
}

// WriteRecords appends decoded records in schema column order.
func (w *CSVWriter) WriteRecords(recs []models.Record, withPosition bool) {
	for i := range recs {
		w.WriteRow(recs[i].CSVRow(withPosition))
	}
}

// Flush pushes buffered rows to the OS and reports any deferred write
// error.
func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	return w.buf.Flush()
}

// Close flushes remaining data and closes the file.
func (w *CSVWriter) Close() error {
	ferr := w.Flush()
	w.mu.Lock()
	cerr := w.file.Close()
	w.mu.Unlock()
	if ferr != nil {
		return ferr
	}
	return cerr
}

// Rows returns the number of data rows written (excludes header).
func (w *CSVWriter) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}
