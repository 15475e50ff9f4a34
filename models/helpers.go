package models

import (
	"strconv"
)

// ─── shared formatting helpers (package-private) ────────────────────────

func itoa(v int) string { return strconv.Itoa(v) }

// FormatVec renders a vector with a fixed precision, e.g. "(0.000, 300.000, 0.000)".
func FormatVec(v Vec3, prec int) string {
	return "(" + ftoa(v[0], prec) + ", " + ftoa(v[1], prec) + ", " + ftoa(v[2], prec) + ")"
}

func ftoa(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
