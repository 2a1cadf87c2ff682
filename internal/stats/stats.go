// Package stats keeps rolling latency figures for each extraction pass.
package stats

import (
	"sort"
	"sync"
	"time"
)

// Pass names recorded by the pipeline.
const (
	PassTables = "tables"
	PassImages = "images"
	PassPages  = "pages"
	PassTotal  = "total"
)

type sample struct {
	at time.Time
	ms int64
}

// Snapshot aggregates the samples of one pass that are still in the window.
type Snapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

// Recorder tracks per-pass durations within a rolling window.
type Recorder struct {
	mu     sync.Mutex
	passes map[string][]sample
	window time.Duration
	now    func() time.Time
}

func NewRecorder(window time.Duration) *Recorder {
	if window <= 0 {
		window = time.Hour
	}
	return &Recorder{
		passes: make(map[string][]sample),
		window: window,
		now:    time.Now,
	}
}

// Record adds one duration for the named pass.
func (r *Recorder) Record(pass string, d time.Duration) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes[pass] = append(prune(r.passes[pass], now.Add(-r.window)), sample{at: now, ms: ms})
}

// Since records the time elapsed from start. Meant for defer.
func (r *Recorder) Since(pass string, start time.Time) {
	r.Record(pass, r.now().Sub(start))
}

// Snapshot returns aggregates for every pass with samples in the window.
func (r *Recorder) Snapshot() map[string]Snapshot {
	cutoff := r.now().Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.passes))
	for pass, samples := range r.passes {
		samples = prune(samples, cutoff)
		r.passes[pass] = samples
		if len(samples) == 0 {
			continue
		}
		out[pass] = aggregate(samples)
	}
	return out
}

func aggregate(samples []sample) Snapshot {
	values := make([]int64, len(samples))
	var sum int64
	for i, s := range samples {
		values[i] = s.ms
		sum += s.ms
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return Snapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
	}
}

// prune drops samples older than cutoff in place.
func prune(samples []sample, cutoff time.Time) []sample {
	n := 0
	for _, s := range samples {
		if !s.at.Before(cutoff) {
			samples[n] = s
			n++
		}
	}
	return samples[:n]
}

func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}
	idx := float64(len(sorted)-1) * pct / 100
	lower := int(idx)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(idx-float64(lower))
}
