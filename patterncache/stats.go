package patterncache

import (
	"sync/atomic"
	"time"
)

// Statistics counts cache activity. All counters only grow.
type Statistics struct {
	coreHits           atomic.Int64
	lruHits            atomic.Int64
	diskHits           atomic.Int64
	misses             atomic.Int64
	totalRequests      atomic.Int64
	promotions         atomic.Int64
	cleanups           atomic.Int64
	synthesisAttempts  atomic.Int64
	synthesisSuccesses atomic.Int64
	startTime          time.Time
}

func newStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

func (s *Statistics) CoreHits() int64           { return s.coreHits.Load() }
func (s *Statistics) LRUHits() int64            { return s.lruHits.Load() }
func (s *Statistics) DiskHits() int64           { return s.diskHits.Load() }
func (s *Statistics) Misses() int64             { return s.misses.Load() }
func (s *Statistics) TotalRequests() int64      { return s.totalRequests.Load() }
func (s *Statistics) Promotions() int64         { return s.promotions.Load() }
func (s *Statistics) Cleanups() int64           { return s.cleanups.Load() }
func (s *Statistics) SynthesisAttempts() int64  { return s.synthesisAttempts.Load() }
func (s *Statistics) SynthesisSuccesses() int64 { return s.synthesisSuccesses.Load() }

// CoreHitRate is core hits over total requests, 0 without requests.
func (s *Statistics) CoreHitRate() float64 {
	return ratio(s.CoreHits(), s.TotalRequests())
}

// TotalHitRate is hits from any tier over total requests, 0 without requests.
func (s *Statistics) TotalHitRate() float64 {
	return ratio(s.CoreHits()+s.LRUHits()+s.DiskHits(), s.TotalRequests())
}

// SynthesisSuccessRate is successes over attempts, 0 without attempts.
func (s *Statistics) SynthesisSuccessRate() float64 {
	return ratio(s.SynthesisSuccesses(), s.SynthesisAttempts())
}

// Uptime is the time since the cache was created.
func (s *Statistics) Uptime() time.Duration {
	return time.Since(s.startTime)
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Summary is a point-in-time copy of Statistics with derived rates.
type Summary struct {
	CoreHits             int64         `json:"core_hits"`
	LRUHits              int64         `json:"lru_hits"`
	DiskHits             int64         `json:"disk_hits"`
	Misses               int64         `json:"misses"`
	TotalRequests        int64         `json:"total_requests"`
	Promotions           int64         `json:"promotions"`
	Cleanups             int64         `json:"cleanups"`
	SynthesisAttempts    int64         `json:"synthesis_attempts"`
	SynthesisSuccesses   int64         `json:"synthesis_successes"`
	CoreHitRate          float64       `json:"core_hit_rate"`
	TotalHitRate         float64       `json:"total_hit_rate"`
	SynthesisSuccessRate float64       `json:"synthesis_success_rate"`
	Uptime               time.Duration `json:"uptime"`
}

// Summary returns a snapshot. Counters are read one at a time, so a snapshot
// taken under concurrent traffic may be off by in-flight requests.
func (s *Statistics) Summary() Summary {
	sum := Summary{
		CoreHits:           s.CoreHits(),
		LRUHits:            s.LRUHits(),
		DiskHits:           s.DiskHits(),
		Misses:             s.Misses(),
		TotalRequests:      s.TotalRequests(),
		Promotions:         s.Promotions(),
		Cleanups:           s.Cleanups(),
		SynthesisAttempts:  s.SynthesisAttempts(),
		SynthesisSuccesses: s.SynthesisSuccesses(),
		Uptime:             s.Uptime(),
	}
	sum.CoreHitRate = ratio(sum.CoreHits, sum.TotalRequests)
	sum.TotalHitRate = ratio(sum.CoreHits+sum.LRUHits+sum.DiskHits, sum.TotalRequests)
	sum.SynthesisSuccessRate = ratio(sum.SynthesisSuccesses, sum.SynthesisAttempts)
	return sum
}

// Merge adds the counters of other to a copy of s and recomputes the rates.
func (s Summary) Merge(other Summary) Summary {
	s.CoreHits += other.CoreHits
	s.LRUHits += other.LRUHits
	s.DiskHits += other.DiskHits
	s.Misses += other.Misses
	s.TotalRequests += other.TotalRequests
	s.Promotions += other.Promotions
	s.Cleanups += other.Cleanups
	s.SynthesisAttempts += other.SynthesisAttempts
	s.SynthesisSuccesses += other.SynthesisSuccesses
	s.Uptime = max(s.Uptime, other.Uptime)
	s.CoreHitRate = ratio(s.CoreHits, s.TotalRequests)
	s.TotalHitRate = ratio(s.CoreHits+s.LRUHits+s.DiskHits, s.TotalRequests)
	s.SynthesisSuccessRate = ratio(s.SynthesisSuccesses, s.SynthesisAttempts)
	return s
}
