package pipeline

import (
	"sync/atomic"

	"github.com/MeKo-Tech/platescan/internal/validate"
)

// Profiler aggregates outcome counters and processing time across images.
// It is safe for concurrent use.
type Profiler struct {
	ImagesProcessed atomic.Int64
	Full            atomic.Int64
	Partial         atomic.Int64
	Invalid         atomic.Int64
	NoCandidate     atomic.Int64
	Errors          atomic.Int64
	TotalTimeNs     atomic.Int64
}

// Record adds one result to the counters.
func (p *Profiler) Record(res Result) {
	if !res.Decoded() {
		return
	}
	p.ImagesProcessed.Add(1)
	p.TotalTimeNs.Add(res.Duration.Nanoseconds())
	switch {
	case res.Err != nil:
		p.Errors.Add(1)
	case res.Stage == StageDetect:
		p.NoCandidate.Add(1)
	}
	switch res.Reliability {
	case validate.Full:
		p.Full.Add(1)
	case validate.Partial:
		p.Partial.Add(1)
	default:
		p.Invalid.Add(1)
	}
}

// Snapshot returns the counters with times in milliseconds.
func (p *Profiler) Snapshot() map[string]any {
	imgs := p.ImagesProcessed.Load()
	total := p.TotalTimeNs.Load()
	out := map[string]any{
		"images":       imgs,
		"full":         p.Full.Load(),
		"partial":      p.Partial.Load(),
		"invalid":      p.Invalid.Load(),
		"no_candidate": p.NoCandidate.Load(),
		"errors":       p.Errors.Load(),
		"ms_total":     total / 1_000_000,
	}
	if imgs > 0 {
		out["ms_per_image"] = float64(total) / 1_000_000.0 / float64(imgs)
	}
	return out
}
