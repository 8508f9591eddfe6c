// Package controller runs a notebook's units in order, replaying the whole
// sequence from unit 0 whenever the notebook restarts its runtime.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/npratt/cellpilot/internal/artifact"
	"github.com/npratt/cellpilot/internal/config"
	"github.com/npratt/cellpilot/internal/events"
	"github.com/npratt/cellpilot/internal/executor"
	"github.com/npratt/cellpilot/internal/notebook"
)

// State represents the controller's current state.
type State string

// Controller states.
const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateRestarting State = "restarting"
	StatePaused     State = "paused"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
	StateDone       State = "done"
	StateAborted    State = "aborted"
)

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateStopped
}

// Abort reasons.
const (
	ReasonMaxRestarts = "max restarts exceeded"
	ReasonStop        = "stop requested"
	ReasonCancelled   = "context cancelled"
)

// Gatekeeper blocks until the notebook runtime is usable.
// *connection.Gate satisfies it.
type Gatekeeper interface {
	WaitReady(ctx context.Context) error
}

// Summary is the result of one sequence run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Final     State         `json:"final"`
	Reason    string        `json:"reason,omitempty"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Restarts  int           `json:"restarts"`
	Visited   []int         `json:"visited"`
	Artifacts []string      `json:"artifacts"`
	Duration  time.Duration `json:"duration"`
}

// Artifact returns the first artifact of the run, the one handed to callers.
func (s *Summary) Artifact() (string, bool) {
	if s == nil || len(s.Artifacts) == 0 {
		return "", false
	}
	return s.Artifacts[0], true
}

// Stats is a point-in-time view of a run for status displays.
type Stats struct {
	RunID       string
	State       State
	Index       int
	Total       int
	Generation  int
	Restarts    int
	MaxRestarts int
	Completed   int
	Failed      int
	Artifacts   []string
	StartedAt   time.Time
}

// Option configures optional collaborators.
type Option func(*Controller)

// WithGate waits for a connected runtime before unit 0 and after each restart.
func WithGate(g Gatekeeper) Option {
	return func(c *Controller) { c.gate = g }
}

// WithHook delivers each new artifact through h.
func WithHook(h *artifact.Hook) Option {
	return func(c *Controller) { c.hook = h }
}

// WithNotebookURL records the notebook address in run events.
func WithNotebookURL(url string) Option {
	return func(c *Controller) { c.notebookURL = url }
}

// Controller owns the sequence state machine.
type Controller struct {
	config      *config.Config
	nb          notebook.Notebook
	runner      *executor.Runner
	gate        Gatekeeper
	hook        *artifact.Hook
	emitter     events.Emitter
	logger      *slog.Logger
	notebookURL string

	state   State
	stateMu sync.RWMutex
	cancel  context.CancelFunc
	stopped bool

	wg sync.WaitGroup

	// Control signals for pause/resume/stop
	pauseSignal  chan struct{}
	resumeSignal chan struct{}
	stopSignal   chan struct{}

	statsMu   sync.RWMutex
	stats     Stats
	visited   []int
	artifacts *artifact.Set
}

// New creates a Controller. emitter and logger may be nil.
func New(cfg *config.Config, nb notebook.Notebook, runner *executor.Runner, emitter events.Emitter, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		config:       cfg,
		nb:           nb,
		runner:       runner,
		emitter:      emitter,
		logger:       logger,
		state:        StateIdle,
		pauseSignal:  make(chan struct{}, 1),
		resumeSignal: make(chan struct{}, 1),
		stopSignal:   make(chan struct{}, 1),
		artifacts:    artifact.NewSet(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is the mutable bookkeeping of a single Run call.
type run struct {
	ctx     context.Context
	start   time.Time
	tracker *executor.OutputTracker
}

// Run executes every unit in order until the sequence is done, aborted or
// stopped. Every ordinary ending is reported through the Summary; the error
// is non-nil only when the notebook could not be read or the runtime never
// connected.
func (c *Controller) Run(ctx context.Context) (*Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.stateMu.Lock()
	c.cancel = cancel
	stopEarly := c.stopped
	c.stateMu.Unlock()
	if stopEarly {
		cancel()
	}

	r := &run{ctx: ctx, start: time.Now(), tracker: executor.NewOutputTracker()}

	total, err := c.nb.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count units: %w", err)
	}

	c.statsMu.Lock()
	c.stats = Stats{
		RunID:       uuid.NewString(),
		Total:       total,
		Generation:  1,
		MaxRestarts: c.config.Notebook.MaxRestarts,
		StartedAt:   r.start,
	}
	runID := c.stats.RunID
	c.statsMu.Unlock()

	c.emit(&events.RunStartEvent{
		BaseEvent:   events.NewInternalEvent(events.EventRunStart),
		RunID:       runID,
		NotebookURL: c.notebookURL,
		Total:       total,
		MaxRestarts: c.config.Notebook.MaxRestarts,
	})
	c.logger.Info("run started",
		"run_id", runID,
		"units", total,
		"max_restarts", c.config.Notebook.MaxRestarts,
		"on_failure", c.config.Notebook.OnFailure,
	)

	c.setState(StateRunning)

	if c.gate != nil {
		if err := c.gate.WaitReady(ctx); err != nil {
			if ctx.Err() != nil {
				return c.finish(r, StateStopped, c.cancelReason()), nil
			}
			return c.finish(r, StateAborted, err.Error()), fmt.Errorf("wait for runtime: %w", err)
		}
	}

	index := 0
	for {
		select {
		case <-ctx.Done():
			return c.finish(r, StateStopped, c.cancelReason()), nil
		case <-c.stopSignal:
			return c.finish(r, StateStopped, ReasonStop), nil
		case <-c.pauseSignal:
			if !c.runPaused(ctx) {
				return c.finish(r, StateStopped, c.cancelReason()), nil
			}
			continue
		default:
		}

		if index >= total {
			return c.finish(r, StateDone, ""), nil
		}

		if c.nb.Present(ctx) {
			c.logger.Info("restart dialog before unit", "index", index)
			if final, reason, err := c.restart(r, index); final != "" {
				return c.finish(r, final, reason), err
			}
			index = 0
			continue
		}

		out := c.runUnit(r, index, total)

		switch out.Kind {
		case executor.KindCompleted:
			c.updateStats(func(s *Stats) { s.Completed++ })
		case executor.KindErrored, executor.KindTimedOut:
			c.updateStats(func(s *Stats) { s.Failed++ })
			c.emitError(index, fmt.Sprintf("unit %d %s: %s", index, out.Kind, out.Reason), events.SeverityWarning)
			if c.config.Notebook.OnFailure == config.OnFailureHalt {
				return c.finish(r, StateAborted, fmt.Sprintf("unit %d failed: %s", index, out.Reason)), nil
			}
		case executor.KindInterrupted:
			if final, reason, err := c.restart(r, index); final != "" {
				return c.finish(r, final, reason), err
			}
			index = 0
			continue
		case executor.KindCancelled:
			return c.finish(r, StateStopped, c.cancelReason()), nil
		}

		index++
	}
}

// runUnit runs one unit and publishes what it produced.
func (c *Controller) runUnit(r *run, index, total int) executor.Outcome {
	c.statsMu.Lock()
	c.stats.Index = index
	gen := c.stats.Generation
	runID := c.stats.RunID
	c.visited = append(c.visited, index)
	c.statsMu.Unlock()

	c.logger.Info("unit starting", "index", index, "total", total, "generation", gen)
	c.emit(&events.UnitStartEvent{
		BaseEvent:  events.NewInternalEvent(events.EventUnitStart),
		Index:      index,
		Total:      total,
		Generation: gen,
	})

	out := c.runner.RunUnit(r.ctx, index, r.tracker)

	for _, url := range c.artifacts.Add(out.Artifacts...) {
		c.emit(&events.ArtifactFoundEvent{
			BaseEvent: events.NewNotebookEvent(events.EventArtifactFound),
			Index:     index,
			URL:       url,
		})
		c.deliver(artifact.HookVars{URL: url, RunID: runID, Index: index})
	}

	c.emit(&events.UnitEndEvent{
		BaseEvent:  events.NewInternalEvent(events.EventUnitEnd),
		Index:      index,
		Outcome:    string(out.Kind),
		DurationMs: out.Elapsed.Milliseconds(),
		Reason:     out.Reason,
	})
	return out
}

// restart acknowledges the dialog and prepares a fresh generation. A
// non-empty final state means the run must end.
func (c *Controller) restart(r *run, index int) (State, string, error) {
	c.setState(StateRestarting)

	if err := c.nb.Acknowledge(r.ctx); err != nil {
		c.logger.Warn("restart dialog acknowledge failed", "index", index, "error", err)
	}

	var restarts int
	c.updateStats(func(s *Stats) {
		s.Restarts++
		restarts = s.Restarts
	})
	maxRestarts := c.config.Notebook.MaxRestarts

	c.logger.Info("restart detected", "index", index, "restarts", restarts, "max_restarts", maxRestarts)
	c.emit(&events.RestartDetectedEvent{
		BaseEvent:   events.NewNotebookEvent(events.EventRestartDetected),
		Index:       index,
		Restarts:    restarts,
		MaxRestarts: maxRestarts,
	})

	if restarts >= maxRestarts {
		return StateAborted, ReasonMaxRestarts, nil
	}

	if c.gate != nil {
		if err := c.gate.WaitReady(r.ctx); err != nil {
			if r.ctx.Err() != nil {
				return StateStopped, c.cancelReason(), nil
			}
			return StateAborted, err.Error(), fmt.Errorf("wait for runtime after restart: %w", err)
		}
	}

	r.tracker = executor.NewOutputTracker()
	c.updateStats(func(s *Stats) {
		s.Generation++
		s.Completed = 0
		s.Failed = 0
		s.Index = 0
	})
	c.setState(StateRunning)
	return "", "", nil
}

// runPaused waits for resume. It returns false when the run should stop.
func (c *Controller) runPaused(ctx context.Context) bool {
	select {
	case <-c.resumeSignal:
	default:
	}
	c.setState(StatePaused)
	c.logger.Info("paused between units")
	select {
	case <-c.resumeSignal:
		c.setState(StateRunning)
		c.logger.Info("resumed")
		return true
	case <-c.stopSignal:
		return false
	case <-ctx.Done():
		return false
	}
}

// finish records the final state, waits for in-flight hooks and builds the
// summary.
func (c *Controller) finish(r *run, final State, reason string) *Summary {
	if final == StateStopped {
		c.setState(StateStopping)
	}
	c.wg.Wait()
	c.setState(final)

	c.statsMu.RLock()
	summary := &Summary{
		RunID:     c.stats.RunID,
		Final:     final,
		Reason:    reason,
		Total:     c.stats.Total,
		Completed: c.stats.Completed,
		Failed:    c.stats.Failed,
		Restarts:  c.stats.Restarts,
		Visited:   append([]int(nil), c.visited...),
		Artifacts: c.artifacts.All(),
		Duration:  time.Since(r.start),
	}
	c.statsMu.RUnlock()

	c.emit(&events.RunStopEvent{
		BaseEvent:  events.NewInternalEvent(events.EventRunStop),
		RunID:      summary.RunID,
		Final:      string(final),
		Reason:     reason,
		Completed:  summary.Completed,
		Failed:     summary.Failed,
		Restarts:   summary.Restarts,
		DurationMs: summary.Duration.Milliseconds(),
	})
	c.logger.Info("run finished",
		"run_id", summary.RunID,
		"final", final,
		"reason", reason,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"restarts", summary.Restarts,
		"artifacts", len(summary.Artifacts),
		"duration", summary.Duration,
	)
	return summary
}

// deliver hands an artifact to the hook without holding up the sequence.
func (c *Controller) deliver(vars artifact.HookVars) {
	if !c.hook.Enabled() {
		return
	}
	timeout := c.config.Artifact.HookTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.hook.Deliver(ctx, vars); err != nil {
			c.emitError(vars.Index, fmt.Sprintf("artifact hook: %v", err), events.SeverityWarning)
		}
	}()
}

// Stop requests shutdown. The in-flight unit is cancelled; use Run's return
// to wait for completion.
func (c *Controller) Stop() {
	select {
	case c.stopSignal <- struct{}{}:
	default:
	}
	c.stateMu.Lock()
	c.stopped = true
	cancel := c.cancel
	c.stateMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Pause requests a pause before the next unit starts.
func (c *Controller) Pause() {
	select {
	case c.pauseSignal <- struct{}{}:
		c.logger.Info("pause requested")
	default:
	}
}

// Resume continues a paused run. A pause that has not taken effect yet is
// withdrawn; otherwise Resume does nothing unless the run is paused.
func (c *Controller) Resume() {
	select {
	case <-c.pauseSignal:
		c.logger.Info("pending pause withdrawn")
		return
	default:
	}
	if c.getState() != StatePaused {
		return
	}
	select {
	case c.resumeSignal <- struct{}{}:
		c.logger.Info("resume requested")
	default:
	}
}

// State returns the current controller state.
func (c *Controller) State() State {
	return c.getState()
}

// Stats returns a snapshot of the current run.
func (c *Controller) Stats() Stats {
	c.statsMu.RLock()
	s := c.stats
	c.statsMu.RUnlock()
	s.State = c.getState()
	s.Artifacts = c.artifacts.All()
	return s
}

func (c *Controller) updateStats(fn func(*Stats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	c.statsMu.Unlock()
}

func (c *Controller) cancelReason() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.stopped {
		return ReasonStop
	}
	return ReasonCancelled
}

// getState returns the current state (thread-safe).
func (c *Controller) getState() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// setState updates the state and announces real transitions.
func (c *Controller) setState(s State) {
	c.stateMu.Lock()
	from := c.state
	c.state = s
	c.stateMu.Unlock()

	if from == s {
		return
	}
	c.logger.Debug("state changed", "from", from, "to", s)
	c.emit(&events.RunStateChangedEvent{
		BaseEvent: events.NewInternalEvent(events.EventRunStateChanged),
		From:      string(from),
		To:        string(s),
	})
}

func (c *Controller) emitError(index int, msg, severity string) {
	idx := index
	c.emit(&events.ErrorEvent{
		BaseEvent: events.NewInternalEvent(events.EventError),
		Message:   msg,
		Severity:  severity,
		Index:     &idx,
	})
}

// emit sends an event to the emitter if available.
func (c *Controller) emit(event events.Event) {
	if c.emitter != nil {
		c.emitter.Emit(event)
	}
}

// ErrAborted marks a summary that ended in StateAborted. Callers use it to
// pick an exit code.
var ErrAborted = errors.New("run aborted")

// Err converts a summary into an error for non-successful endings.
func (s *Summary) Err() error {
	if s == nil || s.Final != StateAborted {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAborted, s.Reason)
}
