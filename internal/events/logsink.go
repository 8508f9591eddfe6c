package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink consumes events from the router.
type Sink interface {
	Start(ctx context.Context, events <-chan Event) error
	Stop() error
}

// Rotation limits for the event log.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultRotation keeps a handful of moderately sized event logs.
var DefaultRotation = Rotation{MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 14}

// LogSink writes events to a JSON lines file. Each run starts a fresh file;
// the previous one is kept as a rotated backup.
type LogSink struct {
	path     string
	rotation Rotation
	out      *lumberjack.Logger
	encoder  *json.Encoder
	mu       sync.Mutex
	done     chan struct{}
}

// NewLogSink creates a LogSink that writes to path with DefaultRotation.
func NewLogSink(path string) *LogSink {
	return NewRotatingLogSink(path, DefaultRotation)
}

// NewRotatingLogSink creates a LogSink with explicit rotation limits.
func NewRotatingLogSink(path string, rotation Rotation) *LogSink {
	return &LogSink{
		path:     path,
		rotation: rotation,
		done:     make(chan struct{}),
	}
}

// Start opens the log file and begins processing events.
// It runs until the context is canceled or the events channel is closed.
func (s *LogSink) Start(ctx context.Context, events <-chan Event) error {
	if err := s.open(); err != nil {
		return err
	}

	go s.run(ctx, events)
	return nil
}

func (s *LogSink) open() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	out := &lumberjack.Logger{
		Filename:   s.path,
		MaxSize:    s.rotation.MaxSizeMB,
		MaxBackups: s.rotation.MaxBackups,
		MaxAge:     s.rotation.MaxAgeDays,
		Compress:   s.rotation.Compress,
	}

	info, err := os.Stat(s.path)
	switch {
	case err == nil && info.Size() > 0:
		// Fresh file per run so `events --follow` starts at the new run.
		if err := out.Rotate(); err != nil {
			return fmt.Errorf("rotate log file: %w", err)
		}
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("stat log file: %w", err)
	}

	s.mu.Lock()
	s.out = out
	s.encoder = json.NewEncoder(out)
	s.mu.Unlock()
	return nil
}

func (s *LogSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.write(event)
		}
	}
}

func (s *LogSink) write(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encoder == nil {
		return
	}
	if err := s.encoder.Encode(event); err != nil {
		fmt.Fprintf(os.Stderr, "log sink: failed to write event: %v\n", err)
	}
}

// Stop waits for the writer goroutine and closes the log file.
func (s *LogSink) Stop() error {
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out != nil {
		err := s.out.Close()
		s.out = nil
		s.encoder = nil
		return err
	}
	return nil
}

// Path returns the log file path.
func (s *LogSink) Path() string {
	return s.path
}
