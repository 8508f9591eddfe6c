package connection

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		label    string
		disabled bool
		want     Status
	}{
		{"Connect", false, Idle},
		{"Connect to a new runtime", false, Idle},
		{"Connecting", false, Connecting},
		{"Connect", true, Connecting},
		{"Connected to Python 3 Google Compute Engine backend", false, Connected},
		{"RAM: 0.99 GB/12.67 GB", false, Connected},
		{"Disk: 39.06 GB/107.72 GB", false, Connected},
		{"Reconnect", false, Reconnecting},
		{"Click to connect", false, Reconnecting},
		{"", false, Unknown},
		{"Busy", false, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := Classify(tt.label, tt.disabled); got != tt.want {
				t.Errorf("Classify(%q, %v) = %s, want %s", tt.label, tt.disabled, got, tt.want)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		Unknown:      "unknown",
		Idle:         "idle",
		Connecting:   "connecting",
		Connected:    "connected",
		Reconnecting: "reconnecting",
		Status(42):   "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(s), got, want)
		}
		text, _ := s.MarshalText()
		if string(text) != want {
			t.Errorf("Status(%d).MarshalText() = %q, want %q", int(s), text, want)
		}
	}
}

func TestNeedsConnect(t *testing.T) {
	for _, s := range []Status{Idle, Reconnecting} {
		if !s.NeedsConnect() {
			t.Errorf("%s.NeedsConnect() = false", s)
		}
	}
	for _, s := range []Status{Unknown, Connecting, Connected} {
		if s.NeedsConnect() {
			t.Errorf("%s.NeedsConnect() = true", s)
		}
	}
}
