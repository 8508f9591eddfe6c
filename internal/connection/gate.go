package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/npratt/cellpilot/internal/events"
	"github.com/npratt/cellpilot/internal/poll"
)

// ErrNotConnected is returned when the runtime never reaches Connected.
var ErrNotConnected = errors.New("runtime not connected")

// Reader reads and operates the toolbar connect control.
type Reader interface {
	// Toolbar returns the control's label text and whether it is disabled.
	Toolbar(ctx context.Context) (label string, disabled bool, err error)
	// Connect clicks the control.
	Connect(ctx context.Context) error
}

// GateOptions bounds how long and how often the gate tries.
type GateOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration
	MaxAttempts  int
}

// DefaultGateOptions polls every 3s for up to a minute with three clicks.
func DefaultGateOptions() GateOptions {
	return GateOptions{
		PollInterval: 3 * time.Second,
		Timeout:      60 * time.Second,
		MaxAttempts:  3,
	}
}

// Gate blocks until the runtime is connected, clicking connect when the
// toolbar asks for it.
type Gate struct {
	reader  Reader
	opts    GateOptions
	logger  *slog.Logger
	emitter events.Emitter
}

// NewGate creates a Gate. emitter may be nil.
func NewGate(reader Reader, opts GateOptions, logger *slog.Logger, emitter events.Emitter) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{reader: reader, opts: opts, logger: logger, emitter: emitter}
}

// Check reads the current status once.
func (g *Gate) Check(ctx context.Context) (Status, string) {
	label, disabled, err := g.reader.Toolbar(ctx)
	if err != nil {
		g.logger.Debug("toolbar unreadable", "error", err)
		return Unknown, ""
	}
	return Classify(label, disabled), label
}

// WaitReady returns nil once the runtime is Connected. It returns an error
// wrapping ErrNotConnected when the timeout passes or the connect budget is
// spent, and ctx.Err() when cancelled.
func (g *Gate) WaitReady(ctx context.Context) error {
	clicks := 0
	last := Status(-1)

	res := poll.Until(ctx, poll.Options{Interval: g.opts.PollInterval, Timeout: g.opts.Timeout},
		func(ctx context.Context) (bool, error) {
			status, label := g.Check(ctx)
			if status != last {
				g.logger.Info("runtime status", "status", status, "label", label)
				g.emit(&events.ConnectionStatusEvent{
					BaseEvent: events.NewNotebookEvent(events.EventConnectionStatus),
					Status:    status.String(),
					Label:     label,
				})
				last = status
			}

			if status == Connected {
				return true, nil
			}
			if !status.NeedsConnect() {
				return false, nil
			}
			if g.opts.MaxAttempts > 0 && clicks >= g.opts.MaxAttempts {
				return false, fmt.Errorf("%w: still %s after %d connect attempts", ErrNotConnected, status, clicks)
			}
			clicks++
			if err := g.reader.Connect(ctx); err != nil {
				g.logger.Warn("connect click failed", "attempt", clicks, "error", err)
			}
			return false, nil
		})

	switch res.Status {
	case poll.StatusSuccess:
		return nil
	case poll.StatusTimeout:
		return fmt.Errorf("%w: still %s after %s", ErrNotConnected, last, g.opts.Timeout)
	default:
		return res.Err
	}
}

func (g *Gate) emit(ev events.Event) {
	if g.emitter != nil {
		g.emitter.Emit(ev)
	}
}
