package trajectory

import (
	"fmt"

	"muxsynth/models"
	"muxsynth/utils"
)

// CalculateNSamples returns how many samples a scan of the given
// repetition counts records at rate: rate × (Tx·x + Ty·y + Tz·z),
// truncated. Counts must satisfy x <= z <= y.
func CalculateNSamples(d utils.DurationsConfig, counts utils.ScanCountsConfig, rate float64) (int64, error) {
	if counts.Y < counts.Z || counts.Z < counts.X {
		return 0, fmt.Errorf("%w: x=%d z=%d y=%d", models.ErrScanCountOrdering, counts.X, counts.Z, counts.Y)
	}
	seconds := d.XScan*float64(counts.X) + d.YScan*float64(counts.Y) + d.ZScan*float64(counts.Z)
	return int64(rate * seconds), nil
}
