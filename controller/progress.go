package controller

import (
	"sync/atomic"
	"time"

	"muxsynth/utils"
)

// progressInterval is how often long stages report throughput.
var progressInterval = 5 * time.Second

// progress counts samples through a stage and logs throughput at most
// once per progressInterval.
type progress struct {
	stage string
	total int64
	done  int64
	start time.Time
	last  time.Time
}

func newProgress(stage string, total int64) *progress {
	now := time.Now()
	return &progress{stage: stage, total: total, start: now, last: now}
}

func (p *progress) add(n int) {
	done := atomic.AddInt64(&p.done, int64(n))
	if time.Since(p.last) < progressInterval {
		return
	}
	p.last = time.Now()
	pct := 0.0
	if p.total > 0 {
		pct = 100 * float64(done) / float64(p.total)
	}
	utils.L().Info("%-8s %d/%d samples (%.1f%%)  %s", p.stage, done, p.total, pct,
		utils.PerSecond(done, time.Since(p.start)))
}

func (p *progress) finish() {
	done := atomic.LoadInt64(&p.done)
	elapsed := time.Since(p.start)
	utils.L().Info("%-8s done  %d samples in %s  %s", p.stage, done, elapsed.Round(time.Millisecond),
		utils.PerSecond(done, elapsed))
}

func (p *progress) count() int64 { return atomic.LoadInt64(&p.done) }
