package field

import (
	"runtime"
	"sync"

	"muxsynth/models"
)

// minBatch keeps goroutine overhead below the cost of the work for
// small chunks.
const minBatch = 4096

// Parallel splits each batch into contiguous slices evaluated on
// separate goroutines. Results are stitched back in input order, so the
// output is identical to a single Inner.Sample call.
type Parallel struct {
	Inner   Sampler
	Workers int
}

// NewParallel wraps inner; workers <= 0 means one per CPU.
func NewParallel(inner Sampler, workers int) *Parallel {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Parallel{Inner: inner, Workers: workers}
}

func (p *Parallel) Sample(positions []models.Vec3) ([]models.Vec3, error) {
	workers := p.Workers
	if limit := (len(positions) + minBatch - 1) / minBatch; workers > limit {
		workers = limit
	}
	if workers <= 1 {
		out, err := p.Inner.Sample(positions)
		if err != nil {
			return nil, err
		}
		return out, checkLen(positions, out)
	}

	out := make([]models.Vec3, len(positions))
	errs := make([]error, workers)
	per := (len(positions) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * per
		hi := min(lo+per, len(positions))
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			part, err := p.Inner.Sample(positions[lo:hi])
			if err == nil {
				err = checkLen(positions[lo:hi], part)
			}
			if err != nil {
				errs[w] = err
				return
			}
			copy(out[lo:hi], part)
		}(w, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
