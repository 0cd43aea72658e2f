// Package extension implements the extension state machine and the
// Extension aggregate that flows through the pipeline (spec §3, §4.1):
// identity + manifest + runtime state + timing + diagnostics.
package extension

import "fmt"

// State is a position in the extension lifecycle.
type State uint8

const (
	Unknown State = iota
	Discovered
	Parsing
	Parsed
	Corrupted
	Resolving
	Resolved
	Unresolved
	Disabled
	Skipped
	Loading
	Loaded
	Failed
	Exporting
	Exported
	Starting
	Started
	Running
	Ending
	Ended
	Terminating
	Terminated
)

var stateNames = map[State]string{
	Unknown: "Unknown", Discovered: "Discovered", Parsing: "Parsing", Parsed: "Parsed",
	Corrupted: "Corrupted", Resolving: "Resolving", Resolved: "Resolved",
	Unresolved: "Unresolved", Disabled: "Disabled", Skipped: "Skipped",
	Loading: "Loading", Loaded: "Loaded", Failed: "Failed",
	Exporting: "Exporting", Exported: "Exported", Starting: "Starting", Started: "Started",
	Running: "Running", Ending: "Ending", Ended: "Ended",
	Terminating: "Terminating", Terminated: "Terminated",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// terminalErrorStates are the states from which an extension can never
// progress to Running (spec §3).
var terminalErrorStates = map[State]bool{
	Corrupted: true, Failed: true, Disabled: true, Skipped: true,
	Unresolved: true, Terminated: true,
}

// IsTerminalError reports whether s is one of the lifecycle's error sinks.
func (s State) IsTerminalError() bool { return terminalErrorStates[s] }

// legalEdges enumerates every (prev, next) pair allowed by spec §3's state
// diagram. An implementation must reject any other transition.
var legalEdges = map[State]map[State]bool{
	Unknown:     {Discovered: true},
	Discovered:  {Parsing: true},
	Parsing:     {Parsed: true, Corrupted: true},
	Parsed:      {Resolving: true},
	Resolving:   {Resolved: true, Unresolved: true, Disabled: true, Skipped: true},
	Resolved:    {Loading: true},
	Loading:     {Loaded: true, Failed: true, Skipped: true},
	Loaded:      {Exporting: true, Running: true},
	Exporting:   {Exported: true, Failed: true},
	Exported:    {Starting: true},
	Starting:    {Started: true, Failed: true},
	Started:     {Running: true},
	Running:     {Ending: true},
	Ending:      {Ended: true},
	Ended:       {Terminating: true},
	Terminating: {Terminated: true},
}

// IllegalTransitionError reports an attempted transition outside
// legalEdges; the state machine never fails silently (spec §4.1).
type IllegalTransitionError struct {
	From, To State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("extension: illegal state transition %s -> %s", e.From, e.To)
}

// canTransition checks legality without mutating anything.
func canTransition(from, to State) bool {
	edges, ok := legalEdges[from]
	return ok && edges[to]
}
