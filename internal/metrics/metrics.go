// Package metrics records merge activity.
package metrics

import "time"

// Collector receives merge observations. Implementations must be safe for
// concurrent use.
type Collector interface {
	// RecordMerge records one merge call. result is "ok" or an error kind.
	RecordMerge(source, result string, elapsed time.Duration)
	// RecordRows records the rows emitted and base records dropped by a merge.
	RecordRows(emitted, dropped int)
	// IncrementCacheHit counts a merge answered from the result cache.
	IncrementCacheHit()
}

// Nop discards every observation.
type Nop struct{}

var _ Collector = Nop{}

func (Nop) RecordMerge(_, _ string, _ time.Duration) {}
func (Nop) RecordRows(_, _ int) {}
func (Nop) IncrementCacheHit() {}
