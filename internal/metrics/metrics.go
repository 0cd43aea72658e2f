// Package metrics adds a runtime-wide, longer-lived view on top of the
// pipeline's per-run Report (SPEC_FULL §C.1), grounded on
// original_source/src/core/basic_metrics_collector.{hpp,cpp}'s
// MetricCollector: per-extension load time, success/failure counts, and
// the slowest extension seen, aggregated across pipeline runs rather than
// reset each time like StageStatistics is.
package metrics

import (
	"sync"
	"time"

	"github.com/sunholo/extrt/internal/uid"
)

// Collector aggregates load timing and outcome counters across the
// lifetime of a Runtime.
type Collector struct {
	mu            sync.Mutex
	totalLoaded   int
	totalFailed   int
	loadDurations map[uid.UniqueId]time.Duration
	slowestID     uid.UniqueId
	slowestDur    time.Duration
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{loadDurations: make(map[uid.UniqueId]time.Duration)}
}

// RecordLoad records one extension's load outcome and duration.
func (c *Collector) RecordLoad(id uid.UniqueId, d time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.totalLoaded++
	} else {
		c.totalFailed++
	}
	c.loadDurations[id] = d
	if d > c.slowestDur {
		c.slowestDur = d
		c.slowestID = id
	}
}

// Snapshot is a point-in-time read of the aggregated counters.
type Snapshot struct {
	TotalLoaded int
	TotalFailed int
	SlowestID   uid.UniqueId
	SlowestTime time.Duration
}

// Snapshot returns the current aggregate state.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		TotalLoaded: c.totalLoaded,
		TotalFailed: c.totalFailed,
		SlowestID:   c.slowestID,
		SlowestTime: c.slowestDur,
	}
}
