package types

import "strings"

// EventKind is the tagged-enum discriminant for Event. It is a Go
// string-enum so the persisted JSON stays self-describing.
type EventKind string

const (
	EventKindFunctionEnter EventKind = "function_enter"
	EventKindFunctionExit  EventKind = "function_exit"
	EventKindStdout        EventKind = "stdout"
	EventKindStderr        EventKind = "stderr"
	EventKindPause         EventKind = "pause"
	EventKindResume        EventKind = "resume"
	EventKindWatchChange   EventKind = "watch_change"
	EventKindLog           EventKind = "log"
	EventKindFault         EventKind = "fault"
)

// Event is the universal record persisted by the Event Store. Required
// fields are always present; the rest are populated depending on Kind
// and left zero-valued otherwise, matching the sum-type-over-kinds
// shape described for the persisted schema.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Kind      EventKind `json:"kind"`
	TimestampNanos int64 `json:"timestampNanos"`
	ThreadID  string    `json:"threadId"`

	// FunctionEnter / FunctionExit
	FunctionName      string `json:"functionName,omitempty"`
	FunctionNameRaw   string `json:"functionNameRaw,omitempty"`
	SourceFile        string `json:"sourceFile,omitempty"`
	Line              int    `json:"line,omitempty"`
	Arguments         any    `json:"arguments,omitempty"`
	ReturnValue       any    `json:"returnValue,omitempty"`
	DurationNanos     int64  `json:"durationNanos,omitempty"`
	ParentEventID     string `json:"parentEventId,omitempty"`

	// Stdout / Stderr
	Text string `json:"text,omitempty"`

	// WatchChange
	WatchValues map[string]any `json:"watchValues,omitempty"`

	// Pause / Log
	BreakpointID    string `json:"breakpointId,omitempty"`
	LogPointMessage string `json:"logPointMessage,omitempty"`

	// Fault
	Signal     string   `json:"signal,omitempty"`
	FaultAddr  string   `json:"faultAddr,omitempty"`
	Registers  map[string]string `json:"registers,omitempty"`
	Backtrace  []string `json:"backtrace,omitempty"`
}

// EventFilter narrows a query_events call.
type EventFilter struct {
	Kinds               []EventKind
	FunctionNameContains string
	SinceNanos          int64
	UntilNanos          int64
	Descending          bool
	Limit               int
}

const (
	DefaultQueryLimit = 500
	MaxQueryLimit     = 5000
)

// Normalize fills in the documented default/limit and returns the
// normalized copy; it never mutates the receiver.
func (f EventFilter) Normalize() EventFilter {
	out := f
	if out.Limit <= 0 {
		out.Limit = DefaultQueryLimit
	}
	if out.Limit > MaxQueryLimit {
		out.Limit = MaxQueryLimit
	}
	return out
}

// Matches reports whether e satisfies the filter's kind/name/time
// constraints (limit and order are applied by the caller over a
// sequence, not per-event).
func (f EventFilter) Matches(e Event) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == e.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.FunctionNameContains != "" && !strings.Contains(e.FunctionName, f.FunctionNameContains) {
		return false
	}
	if f.SinceNanos != 0 && e.TimestampNanos < f.SinceNanos {
		return false
	}
	if f.UntilNanos != 0 && e.TimestampNanos > f.UntilNanos {
		return false
	}
	return true
}
