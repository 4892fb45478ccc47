package executor

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/kbukum/actionexec/status"
)

// Summary aggregates finished executions.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Errors   int
	NotRun   int
	TimedOut int
	P50      time.Duration
	P90      time.Duration
	P99      time.Duration
}

// Stats keeps verdict counts and a duration digest of executions that ran.
type Stats struct {
	mu       sync.Mutex
	counts   map[status.Kind]int
	timedOut int
	digest   *tdigest.TDigest
	samples  int
}

// NewStats returns empty statistics.
func NewStats() *Stats {
	return &Stats{
		counts: make(map[status.Kind]int),
		digest: tdigest.NewWithCompression(100),
	}
}

// Record adds one execution. NOT_RUN executions never started, so their
// duration is not sampled.
func (s *Stats) Record(kind status.Kind, d time.Duration, timedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[kind]++
	if timedOut {
		s.timedOut++
	}
	if kind != status.NotRun {
		s.digest.Add(float64(d), 1)
		s.samples++
	}
}

// Summary returns a snapshot.
func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{
		Passed:   s.counts[status.Passed],
		Failed:   s.counts[status.Failed],
		Errors:   s.counts[status.Error],
		NotRun:   s.counts[status.NotRun],
		TimedOut: s.timedOut,
	}
	sum.Total = sum.Passed + sum.Failed + sum.Errors + sum.NotRun
	if s.samples > 0 {
		sum.P50 = time.Duration(s.digest.Quantile(0.5))
		sum.P90 = time.Duration(s.digest.Quantile(0.9))
		sum.P99 = time.Duration(s.digest.Quantile(0.99))
	}
	return sum
}
