package utils

import (
	"fmt"
	"time"
)

// SessionName returns a unique run directory name:
//
//	<prefix>_YYYYMMDD_HHMMSS
func SessionName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s", prefix, t.Format("20060102_150405"))
}

// PerSecond formats a throughput figure for progress logs, e.g. "1.25M/s".
func PerSecond(count int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "n/a"
	}
	rate := float64(count) / elapsed.Seconds()
	switch {
	case rate >= 1e6:
		return fmt.Sprintf("%.2fM/s", rate/1e6)
	case rate >= 1e3:
		return fmt.Sprintf("%.1fk/s", rate/1e3)
	default:
		return fmt.Sprintf("%.0f/s", rate)
	}
}
