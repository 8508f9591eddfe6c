// Package connection tracks whether the notebook's compute runtime is
// attached and drives the connect control until it is.
package connection

import "strings"

// Status is the runtime connection state read off the notebook toolbar.
type Status int

// Connection states.
const (
	Unknown Status = iota
	Idle
	Connecting
	Connected
	Reconnecting
)

var statusNames = map[Status]string{
	Unknown:      "unknown",
	Idle:         "idle",
	Connecting:   "connecting",
	Connected:    "connected",
	Reconnecting: "reconnecting",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[Unknown]
}

// MarshalText renders the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NeedsConnect reports whether the connect control should be clicked.
func (s Status) NeedsConnect() bool {
	return s == Idle || s == Reconnecting
}

// Classify maps the toolbar button label and its disabled flag to a Status.
// This is the only place that interprets toolbar text.
func Classify(label string, disabled bool) Status {
	if disabled {
		return Connecting
	}
	switch {
	case strings.Contains(label, "Connecting"):
		return Connecting
	case strings.Contains(label, "Connected"),
		strings.Contains(label, "RAM"),
		strings.Contains(label, "Disk"):
		return Connected
	case strings.Contains(label, "Reconnect"),
		strings.Contains(label, "Click to connect"):
		return Reconnecting
	case strings.Contains(label, "Connect"):
		return Idle
	default:
		return Unknown
	}
}
