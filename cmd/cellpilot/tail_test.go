package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/npratt/cellpilot/internal/events"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func eventLine(t *testing.T, index int) string {
	t.Helper()
	ev := &events.UnitStartEvent{
		BaseEvent:  events.NewInternalEvent(events.EventUnitStart),
		Index:      index,
		Total:      4,
		Generation: 1,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func waitForOutput(t *testing.T, buf *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, got:\n%s", want, buf.String())
}

func TestPrintEventLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"event formatted", eventLine(t, 1), "unit 2/4 started"},
		{"plain text passed through", "not json", "not json"},
		{"unknown type passed through", `{"type":"other"}`, `{"type":"other"}`},
		{"blank skipped", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printEventLine(&buf, tt.line)
			got := strings.TrimSpace(buf.String())
			if tt.want == "" {
				if got != "" {
					t.Errorf("output = %q, want nothing", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("output = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestTailLast(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		if err := tailLast(&buf, filepath.Join(t.TempDir(), "events.log"), 5); err != nil {
			t.Fatalf("tailLast failed: %v", err)
		}
		if !strings.Contains(buf.String(), "does not exist") {
			t.Errorf("output = %q", buf.String())
		}
	})

	t.Run("last n lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "events.log")
		var lines []string
		for i := range 4 {
			lines = append(lines, eventLine(t, i))
		}
		if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		var buf bytes.Buffer
		if err := tailLast(&buf, path, 2); err != nil {
			t.Fatalf("tailLast failed: %v", err)
		}
		out := buf.String()
		if strings.Contains(out, "unit 2/4") {
			t.Errorf("output includes a line before the last two:\n%s", out)
		}
		if !strings.Contains(out, "unit 3/4") || !strings.Contains(out, "unit 4/4") {
			t.Errorf("output missing the last two lines:\n%s", out)
		}
	})
}

func TestTailFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	if err := os.WriteFile(path, []byte(eventLine(t, 0)+"\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	buf := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- tailFollow(ctx, buf, path) }()

	waitForOutput(t, buf, "Following events")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	// Split the line across two writes to exercise partial reads.
	line := eventLine(t, 2)
	_, _ = f.WriteString(line[:10])
	_ = f.Sync()
	time.Sleep(20 * time.Millisecond)
	_, _ = f.WriteString(line[10:] + "\n")
	_ = f.Close()

	waitForOutput(t, buf, "unit 3/4 started")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("tailFollow returned %v", err)
	}
	if strings.Contains(buf.String(), "unit 1/4 started") {
		t.Error("follow printed content that existed before it started")
	}
}

func TestTailFollow_WaitsForFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.log")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	buf := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- tailFollow(ctx, buf, path) }()

	waitForOutput(t, buf, "Waiting for log file")
	waitForOutput(t, buf, "Following events")

	if err := os.WriteFile(path, []byte(eventLine(t, 1)+"\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	waitForOutput(t, buf, "unit 2/4 started")

	cancel()
	<-done
}
