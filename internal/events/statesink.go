package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateBufferSize is the recommended buffer size for state sink subscriptions.
const StateBufferSize = 1000

// CurrentStateVersion is the current state file format version.
// Increment this when making incompatible changes to RunState.
const CurrentStateVersion = 1

// RunState is the persisted view of the latest sequence run.
type RunState struct {
	Version     int                  `json:"version"`
	Status      string               `json:"status"`
	RunID       string               `json:"run_id,omitempty"`
	NotebookURL string               `json:"notebook_url,omitempty"`
	Total       int                  `json:"total"`
	Generation  int                  `json:"generation"`
	Restarts    int                  `json:"restarts"`
	CurrentUnit *int                 `json:"current_unit,omitempty"`
	History     map[int]*UnitHistory `json:"history"`
	Artifacts   []string             `json:"artifacts,omitempty"`
	Connection  string               `json:"connection,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// DefaultMinSaveDelay is the minimum time between saves.
const DefaultMinSaveDelay = 5 * time.Second

// StateSink persists RunState to a JSON file so status survives the process.
type StateSink struct {
	path     string
	state    *RunState
	dirty    bool
	mu       sync.Mutex
	done     chan struct{}
	lastSave time.Time
	minDelay time.Duration
}

// NewStateSink creates a new StateSink that writes to the specified path.
func NewStateSink(path string) *StateSink {
	return &StateSink{
		path:     path,
		state:    freshState(),
		done:     make(chan struct{}),
		minDelay: DefaultMinSaveDelay,
	}
}

func freshState() *RunState {
	return &RunState{
		Version: CurrentStateVersion,
		History: make(map[int]*UnitHistory),
	}
}

// Start ensures the directory exists, loads existing state, and begins processing events.
func (s *StateSink) Start(ctx context.Context, events <-chan Event) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load state: %w", err)
	}

	go s.run(ctx, events)
	return nil
}

func (s *StateSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.flushIfDirty()
			return
		case event, ok := <-events:
			if !ok {
				s.flushIfDirty()
				return
			}
			s.handleEvent(event)
		}
	}
}

func (s *StateSink) handleEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := event.(type) {
	case *RunStartEvent:
		s.state = freshState()
		s.state.Status = "running"
		s.state.RunID = e.RunID
		s.state.NotebookURL = e.NotebookURL
		s.state.Total = e.Total
		s.dirty = true

	case *RunStateChangedEvent:
		s.state.Status = e.To
		s.dirty = true

	case *RunStopEvent:
		s.state.Status = e.Final
		s.state.Reason = e.Reason
		s.state.Restarts = e.Restarts
		s.state.CurrentUnit = nil
		s.dirty = true
		s.saveUnlocked()
		return

	case *UnitStartEvent:
		idx := e.Index
		s.state.CurrentUnit = &idx
		s.state.Generation = e.Generation
		h := s.historyFor(e.Index)
		h.Status = UnitRunning
		h.Attempts++
		h.LastAttempt = event.Timestamp()
		s.dirty = true

	case *UnitEndEvent:
		s.state.CurrentUnit = nil
		h := s.historyFor(e.Index)
		h.LastOutcome = e.Outcome
		switch e.Outcome {
		case "completed":
			h.Status = UnitCompleted
			h.LastError = ""
		case "errored", "timed_out":
			h.Status = UnitFailed
			h.LastError = e.Reason
		default:
			h.Status = UnitPending
		}
		s.dirty = true

	case *RestartDetectedEvent:
		s.state.Restarts = e.Restarts
		s.dirty = true

	case *ArtifactFoundEvent:
		s.state.Artifacts = append(s.state.Artifacts, e.URL)
		s.dirty = true

	case *ConnectionStatusEvent:
		s.state.Connection = e.Status
		s.dirty = true
	}

	if s.dirty && time.Since(s.lastSave) >= s.minDelay {
		s.saveUnlocked()
	}
}

// historyFor returns the history entry for index, creating it if needed.
// Must be called with s.mu held.
func (s *StateSink) historyFor(index int) *UnitHistory {
	h := s.state.History[index]
	if h == nil {
		h = &UnitHistory{Index: index, Status: UnitPending}
		s.state.History[index] = h
	}
	return h
}

func (s *StateSink) saveUnlocked() {
	s.state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "state sink: marshal error: %v\n", err)
		return
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "state sink: write error: %v\n", err)
		return
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		fmt.Fprintf(os.Stderr, "state sink: rename error: %v\n", err)
		return
	}

	s.dirty = false
	s.lastSave = time.Now()
}

func (s *StateSink) flushIfDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.saveUnlocked()
	}
}

// Stop waits for the run goroutine to finish. Pending changes are flushed
// by the goroutine itself.
func (s *StateSink) Stop() error {
	<-s.done
	return nil
}

// Load reads the state file from disk. A corrupt or incompatible file is
// moved aside to .backup and a fresh state is used.
func (s *StateSink) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		s.discard("state file corrupted", slog.String("error", err.Error()))
		return nil
	}

	if state.Version != CurrentStateVersion {
		s.discard("incompatible state version",
			slog.Int("file_version", state.Version),
			slog.Int("current_version", CurrentStateVersion))
		return nil
	}

	if state.History == nil {
		state.History = make(map[int]*UnitHistory)
	}
	s.state = &state
	return nil
}

// discard backs up the state file and resets. Must be called with s.mu held.
func (s *StateSink) discard(msg string, attrs ...slog.Attr) {
	args := []any{slog.String("path", s.path)}
	for _, a := range attrs {
		args = append(args, a)
	}
	if err := os.Rename(s.path, s.path+".backup"); err != nil {
		args = append(args, slog.String("backup_error", err.Error()))
		slog.Warn(msg+", failed to backup", args...)
	} else {
		slog.Warn(msg+", backed up and starting fresh", args...)
	}
	s.state = freshState()
}

// State returns a copy of the current state.
func (s *StateSink) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *s.state
	cp.History = make(map[int]*UnitHistory, len(s.state.History))
	for k, v := range s.state.History {
		h := *v
		cp.History[k] = &h
	}
	cp.Artifacts = append([]string(nil), s.state.Artifacts...)
	if s.state.CurrentUnit != nil {
		idx := *s.state.CurrentUnit
		cp.CurrentUnit = &idx
	}
	return cp
}

// Path returns the state file path.
func (s *StateSink) Path() string {
	return s.path
}

// SetMinDelay sets the minimum delay between saves (for testing).
func (s *StateSink) SetMinDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minDelay = d
}

// ReadState loads a state file without starting a sink. Used by the status
// command when no daemon is running.
func ReadState(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if state.Version != CurrentStateVersion {
		return nil, fmt.Errorf("state file version %d, want %d", state.Version, CurrentStateVersion)
	}
	return &state, nil
}
