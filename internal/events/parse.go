package events

import (
	"encoding/json"
	"log/slog"
)

// eventEnvelope is used for initial JSON parsing to determine event type.
type eventEnvelope struct {
	Type EventType `json:"type"`
}

// ParseEvent parses a JSON line into a typed Event.
// Returns nil with no error for unknown event types (for forward compatibility).
func ParseEvent(line []byte) (Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, err
	}

	var ev Event
	switch envelope.Type {
	case EventRunStart:
		ev = &RunStartEvent{}
	case EventRunStop:
		ev = &RunStopEvent{}
	case EventRunStateChanged:
		ev = &RunStateChangedEvent{}
	case EventUnitStart:
		ev = &UnitStartEvent{}
	case EventUnitEnd:
		ev = &UnitEndEvent{}
	case EventUnitOutput:
		ev = &UnitOutputEvent{}
	case EventRestartDetected:
		ev = &RestartDetectedEvent{}
	case EventArtifactFound:
		ev = &ArtifactFoundEvent{}
	case EventConnectionStatus:
		ev = &ConnectionStatusEvent{}
	case EventError:
		ev = &ErrorEvent{}
	default:
		slog.Debug("unknown event type", "type", envelope.Type)
		return nil, nil
	}

	if err := json.Unmarshal(line, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// UnitIndex extracts the unit index from an event, if present.
func UnitIndex(ev Event) (int, bool) {
	switch e := ev.(type) {
	case *UnitStartEvent:
		return e.Index, true
	case *UnitEndEvent:
		return e.Index, true
	case *UnitOutputEvent:
		return e.Index, true
	case *RestartDetectedEvent:
		return e.Index, true
	case *ArtifactFoundEvent:
		return e.Index, true
	case *ErrorEvent:
		if e.Index != nil {
			return *e.Index, true
		}
	}
	return 0, false
}
