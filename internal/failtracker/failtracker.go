// Package failtracker is the shared, thread-safe set of failed extension
// ids used to short-circuit dependents across pipeline stages (spec §4.4.6,
// component C6).
package failtracker

import (
	"sync"

	"github.com/sunholo/extrt/internal/uid"
)

// Tracker is safe for concurrent readers (should-process checks from
// Transform stages) and a single logical writer (mark/propagate from
// Sequential loading stages) per spec §5.
type Tracker struct {
	mu     sync.RWMutex
	failed map[uid.UniqueId]bool
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{failed: make(map[uid.UniqueId]bool)}
}

// Mark records id as failed.
func (t *Tracker) Mark(id uid.UniqueId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed[id] = true
}

// Failed reports whether id has been marked failed.
func (t *Tracker) Failed(id uid.UniqueId) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.failed[id]
}

// AnyFailed reports whether any of ids has been marked failed.
func (t *Tracker) AnyFailed(ids []uid.UniqueId) (uid.UniqueId, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range ids {
		if t.failed[id] {
			return id, true
		}
	}
	return uid.UniqueId{}, false
}

// PropagateToDependents inserts every direct dependent of id (looked up in
// reverseDependencyGraph, "who-depends-on-me") into the tracker without recursing —
// each dependent will itself observe the failure and cascade outward when
// it is next visited (spec §4.4.6).
func (t *Tracker) PropagateToDependents(id uid.UniqueId, reverseDependencyGraph map[uid.UniqueId][]uid.UniqueId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, dependent := range reverseDependencyGraph[id] {
		t.failed[dependent] = true
	}
}

// Snapshot returns a copy of every id currently marked failed.
func (t *Tracker) Snapshot() []uid.UniqueId {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uid.UniqueId, 0, len(t.failed))
	for id := range t.failed {
		out = append(out, id)
	}
	return out
}
