package metrics

import (
	"fmt"
	"math/bits"
	"slices"
)

// LatencyStats collects per-operation latency samples in nanoseconds. Add
// only appends and updates running aggregates; sorting happens in Report.
type LatencyStats struct {
	samples []uint64
	min     uint64
	max     uint64
	sumHi   uint64
	sumLo   uint64
}

func NewLatencyStats(reserve int) *LatencyStats {
	s := &LatencyStats{}
	s.Reserve(reserve)
	return s
}

// Reserve grows sample capacity so that n more samples append without
// reallocating.
func (s *LatencyStats) Reserve(n int) {
	if n > 0 {
		s.samples = slices.Grow(s.samples, n)
	}
}

func (s *LatencyStats) Add(ns uint64) {
	if len(s.samples) == 0 || ns < s.min {
		s.min = ns
	}
	if ns > s.max {
		s.max = ns
	}
	var carry uint64
	s.sumLo, carry = bits.Add64(s.sumLo, ns, 0)
	s.sumHi += carry
	s.samples = append(s.samples, ns)
}

func (s *LatencyStats) Count() int { return len(s.samples) }

// Samples returns the recorded samples in arrival order. The slice aliases
// internal storage and must not be modified.
func (s *LatencyStats) Samples() []uint64 { return s.samples }

// Report summarises the samples. Percentiles use the nearest-rank index
// floor(p*(N-1)) over a sorted copy.
func (s *LatencyStats) Report() LatencyReport {
	n := len(s.samples)
	if n == 0 {
		return LatencyReport{Empty: true}
	}
	sorted := slices.Clone(s.samples)
	slices.Sort(sorted)
	avg, _ := bits.Div64(s.sumHi, s.sumLo, uint64(n))
	return LatencyReport{
		Count: n,
		Min:   s.min,
		Max:   s.max,
		Avg:   avg,
		P50:   Percentile(sorted, 0.50),
		P90:   Percentile(sorted, 0.90),
		P99:   Percentile(sorted, 0.99),
	}
}

// Percentile picks the sample at index floor(p*(len-1)) of an ascending
// slice. p is clamped to [0, 1], NaN counts as 0. It returns 0 for an empty slice.
func Percentile(sorted []uint64, p float64) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	switch {
	case !(p > 0): // also NaN
		p = 0
	case p > 1:
		p = 1
	}
	return sorted[int(p*float64(len(sorted)-1))]
}

type LatencyReport struct {
	Empty bool
	Count int
	Min   uint64
	Max   uint64
	Avg   uint64
	P50   uint64
	P90   uint64
	P99   uint64
}

func (r LatencyReport) String() string {
	if r.Empty {
		return "Latency: no samples"
	}
	return fmt.Sprintf("Latency (ns): min=%d avg=%d p50=%d p90=%d p99=%d max=%d",
		r.Min, r.Avg, r.P50, r.P90, r.P99, r.Max)
}
