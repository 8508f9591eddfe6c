// Package events defines the event type taxonomy and base structures for the
// cellpilot event system. Every component reports what it does through these
// events; sinks and the TUI consume them.
package events

import "time"

// EventType identifies the category and nature of an event.
type EventType string

// Event types.
const (
	// Run lifecycle events
	EventRunStart        EventType = "run.start"
	EventRunStop         EventType = "run.stop"
	EventRunStateChanged EventType = "run.state_changed"

	// Unit events
	EventUnitStart  EventType = "unit.start"
	EventUnitEnd    EventType = "unit.end"
	EventUnitOutput EventType = "unit.output"

	// Notebook events
	EventRestartDetected  EventType = "restart.detected"
	EventArtifactFound    EventType = "artifact.found"
	EventConnectionStatus EventType = "connection.status"

	// Error events
	EventError EventType = "error"
)

// Source constants identify the origin of events.
const (
	SourceInternal = "cellpilot"
	SourceNotebook = "notebook"
)

// Event is the base interface for all events in the system.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
	Src       string    `json:"source"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// Source returns the origin of the event.
func (e BaseEvent) Source() string {
	return e.Src
}

// RunStartEvent is emitted when a sequence run begins.
type RunStartEvent struct {
	BaseEvent
	RunID       string `json:"run_id"`
	NotebookURL string `json:"notebook_url,omitempty"`
	Total       int    `json:"total"`
	MaxRestarts int    `json:"max_restarts"`
}

// RunStopEvent is emitted when a sequence run ends for any reason.
type RunStopEvent struct {
	BaseEvent
	RunID      string `json:"run_id"`
	Final      string `json:"final"`
	Reason     string `json:"reason,omitempty"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	Restarts   int    `json:"restarts"`
	DurationMs int64  `json:"duration_ms"`
}

// RunStateChangedEvent is emitted when the controller state changes.
type RunStateChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// UnitStartEvent is emitted when a unit is triggered.
type UnitStartEvent struct {
	BaseEvent
	Index      int `json:"index"`
	Total      int `json:"total"`
	Generation int `json:"generation"`
}

// UnitEndEvent is emitted with the outcome of a unit.
type UnitEndEvent struct {
	BaseEvent
	Index      int    `json:"index"`
	Outcome    string `json:"outcome"`
	DurationMs int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// UnitOutputEvent carries output lines not seen on an earlier poll.
type UnitOutputEvent struct {
	BaseEvent
	Index int      `json:"index"`
	Lines []string `json:"lines"`
}

// RestartDetectedEvent is emitted when the restart dialog appears.
type RestartDetectedEvent struct {
	BaseEvent
	Index       int `json:"index"`
	Restarts    int `json:"restarts"`
	MaxRestarts int `json:"max_restarts"`
}

// ArtifactFoundEvent is emitted the first time a run sees an artifact URL.
type ArtifactFoundEvent struct {
	BaseEvent
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// ConnectionStatusEvent is emitted when the runtime connection status changes.
type ConnectionStatusEvent struct {
	BaseEvent
	Status string `json:"status"`
	Label  string `json:"label,omitempty"`
}

// Severity constants for error events.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
	SeverityFatal   = "fatal"
)

// ErrorEvent is emitted for any error condition.
type ErrorEvent struct {
	BaseEvent
	Message  string            `json:"message"`
	Severity string            `json:"severity"`
	Index    *int              `json:"index,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}

// NewEvent creates a BaseEvent with the given type and source.
func NewEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
		Src:       source,
	}
}

// NewInternalEvent creates a BaseEvent with cellpilot as the source.
func NewInternalEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceInternal)
}

// NewNotebookEvent creates a BaseEvent for something observed on the page.
func NewNotebookEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceNotebook)
}

// UnitStatus is the recorded state of a unit in the run history.
type UnitStatus string

// UnitStatus constants.
const (
	UnitPending   UnitStatus = "pending"
	UnitRunning   UnitStatus = "running"
	UnitCompleted UnitStatus = "completed"
	UnitFailed    UnitStatus = "failed"
)

// UnitHistory tracks what happened to one unit across a run.
// It is shared between the controller and the state sink.
type UnitHistory struct {
	Index       int        `json:"index"`
	Status      UnitStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	LastOutcome string     `json:"last_outcome,omitempty"`
	LastAttempt time.Time  `json:"last_attempt"`
	LastError   string     `json:"last_error,omitempty"`
}

// Emitter accepts events. *Router satisfies it.
type Emitter interface {
	Emit(Event)
}
