package tui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/npratt/cellpilot/internal/events"
)

func TestPrintEvents(t *testing.T) {
	ch := make(chan events.Event, 4)
	ch <- &events.UnitStartEvent{BaseEvent: events.NewInternalEvent(events.EventUnitStart), Index: 0, Total: 2, Generation: 1}
	ch <- nil
	ch <- &events.ArtifactFoundEvent{BaseEvent: events.NewNotebookEvent(events.EventArtifactFound), Index: 0, URL: "https://a.example.live"}
	close(ch)

	var buf bytes.Buffer
	if err := printEvents(&buf, ch, make(chan os.Signal)); err != nil {
		t.Fatalf("printEvents: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "https://a.example.live") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestPrintEventsStopsOnSignal(t *testing.T) {
	stop := make(chan os.Signal, 1)
	stop <- os.Interrupt
	if err := printEvents(&bytes.Buffer{}, make(chan events.Event), stop); err != nil {
		t.Errorf("printEvents: %v", err)
	}
}
