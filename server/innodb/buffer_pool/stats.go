package buffer_pool

import "go.uber.org/atomic"

// Stats exposes buffer pool counters (spec.md §4.2). Backed by
// go.uber.org/atomic, the way the teacher's own go.mod already carries
// it for buffer-pool and redo-path counters.
type Stats struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	flushes   atomic.Uint64
}

// Snapshot is an immutable view of Stats for callers/tests.
type Snapshot struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Flushes   uint64
	HitRate   float64
}

func (s *Stats) snapshot() Snapshot {
	hits := s.hits.Load()
	misses := s.misses.Load()
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Snapshot{
		Hits:      hits,
		Misses:    misses,
		Evictions: s.evictions.Load(),
		Flushes:   s.flushes.Load(),
		HitRate:   rate,
	}
}
