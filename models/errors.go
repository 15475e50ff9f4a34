package models

import "errors"

// ─── pipeline error kinds ───────────────────────────────────────────────
// Every kind aborts the current run. Callers match them with errors.Is;
// producers wrap them with fmt.Errorf("...: %w", ...) to add context.

var (
	ErrMalformedSegment   = errors.New("malformed segment")
	ErrInvalidSensorCount = errors.New("invalid sensor count")
	ErrDegenerateChannel  = errors.New("degenerate channel")
	ErrLengthMismatch     = errors.New("length mismatch")
	ErrTruncatedStream    = errors.New("truncated stream")
	ErrScanCountOrdering  = errors.New("scan count ordering violation (need x <= z <= y)")

	// ErrSentinelMismatch is raised by readers when a record's USR words
	// or counter do not match what the writer stamped.
	ErrSentinelMismatch = errors.New("sentinel mismatch")

	ErrBadInterchange = errors.New("bad interchange file")
)
