package extension

import (
	"sync"
	"time"

	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/platformops"
	"github.com/sunholo/extrt/internal/uid"
)

// MethodTable records which optional lifecycle hooks a loaded language
// module or plugin implements; the core omits calls when a bit is clear
// (spec §6.1).
type MethodTable struct {
	HasUpdate bool
	HasStart  bool
	HasEnd    bool
	HasExport bool
}

// MethodAddress pairs a manifest-declared method with its resolved native
// address, produced by a language module's on_plugin_load.
type MethodAddress struct {
	Method  manifest.Method
	Address uintptr
}

// Extension is the mutable aggregate that flows through the pipeline: the
// identity + manifest + runtime state + timing + diagnostics central data
// object described in spec §3/§2 (component C4).
type Extension struct {
	mu sync.Mutex

	// Immutable after parsing.
	ID       uid.UniqueId
	Type     manifest.Type
	Location string
	Manifest *manifest.Manifest

	// Runtime slots.
	state         State
	MethodTable   MethodTable
	UserData      uintptr
	LanguageModule uintptr // non-owning handle into the hosting module; 0 for modules initially
	Assembly      *platformops.Assembly
	MethodData    []MethodAddress

	// Diagnostics.
	Errors   []string
	Warnings []string

	// Timing.
	durations         map[State]time.Duration
	lastOperationStart time.Time
}

// New constructs an Extension in the Unknown state; callers immediately
// transition it to Discovered.
func New(id uid.UniqueId, typ manifest.Type, location string) *Extension {
	return &Extension{
		ID:        id,
		Type:      typ,
		Location:  location,
		state:     Unknown,
		durations: make(map[State]time.Duration),
	}
}

// State returns the extension's current lifecycle position.
func (e *Extension) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// StartOperation records the start timestamp and transitions to newState,
// recording timing for the operation that follows (spec §4.1).
func (e *Extension) StartOperation(newState State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !canTransition(e.state, newState) {
		return &IllegalTransitionError{From: e.state, To: newState}
	}
	e.lastOperationStart = now()
	e.state = newState
	return nil
}

// EndOperation accumulates now-lastOperationStart into the *previous*
// state's duration bucket, then transitions to newState (spec §4.1).
func (e *Extension) EndOperation(newState State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.state
	if !canTransition(prev, newState) {
		return &IllegalTransitionError{From: prev, To: newState}
	}
	if !e.lastOperationStart.IsZero() {
		e.durations[prev] += now().Sub(e.lastOperationStart)
	}
	e.state = newState
	e.lastOperationStart = time.Time{}
	return nil
}

// SetState transitions without any timing side effect.
func (e *Extension) SetState(newState State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !canTransition(e.state, newState) {
		return &IllegalTransitionError{From: e.state, To: newState}
	}
	e.state = newState
	return nil
}

// ForceState sets the state without legality checks. Used by the resolver
// (Unresolved), by runtime.Bootstrap and ResolutionStage when excluding
// extensions by policy or platform (Disabled), and by the loading,
// exporting and starting stages when a dependency failed (Skipped).
func (e *Extension) ForceState(newState State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = newState
}

// AddError appends a diagnostic and is safe to call from the single thread
// currently owning this extension in a pipeline stage (spec §5: no
// cross-thread writes to an individual extension).
func (e *Extension) AddError(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Errors = append(e.Errors, msg)
}

// AddWarning appends a non-fatal diagnostic.
func (e *Extension) AddWarning(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Warnings = append(e.Warnings, msg)
}

// Duration returns the accumulated time spent in a given state.
func (e *Extension) Duration(s State) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.durations[s]
}

// TotalDuration sums every per-state bucket, the invariant checked by
// spec §8 property 2 (timing conservation).
func (e *Extension) TotalDuration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total time.Duration
	for _, d := range e.durations {
		total += d
	}
	return total
}

// Durations returns a copy of the per-state timing table.
func (e *Extension) Durations() map[State]time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[State]time.Duration, len(e.durations))
	for k, v := range e.durations {
		out[k] = v
	}
	return out
}

// now is a seam so tests can control timing determinism if ever needed.
var now = time.Now
