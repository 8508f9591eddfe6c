// Package executor runs one notebook unit to a terminal outcome: it triggers
// the unit, polls its status, streams new output to the artifact extractor
// and watches for the restart dialog.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/npratt/cellpilot/internal/artifact"
	"github.com/npratt/cellpilot/internal/events"
	"github.com/npratt/cellpilot/internal/notebook"
	"github.com/npratt/cellpilot/internal/poll"
)

// Kind is the terminal result of running a unit.
type Kind string

// Unit outcomes.
const (
	KindCompleted   Kind = "completed"
	KindErrored     Kind = "errored"
	KindTimedOut    Kind = "timed_out"
	KindInterrupted Kind = "interrupted"
	KindCancelled   Kind = "cancelled"
)

// Failed reports whether the outcome counts against the unit.
func (k Kind) Failed() bool {
	return k == KindErrored || k == KindTimedOut
}

// Outcome describes how a unit ended.
type Outcome struct {
	Kind      Kind
	Index     int
	Elapsed   time.Duration
	Attempts  int
	Output    []string
	Artifacts []string
	Reason    string
}

// Options controls the polling cadence for a unit.
type Options struct {
	PollInterval time.Duration
	UnitTimeout  time.Duration
	SettleDelay  time.Duration
}

// DefaultOptions returns the standard cadence: poll every 2s, give up after
// 120s, wait 2s after triggering before the first probe.
func DefaultOptions() Options {
	return Options{
		PollInterval: 2 * time.Second,
		UnitTimeout:  120 * time.Second,
		SettleDelay:  2 * time.Second,
	}
}

// Runner executes single units against a notebook.
type Runner struct {
	nb        notebook.Notebook
	extractor *artifact.Extractor
	opts      Options
	logger    *slog.Logger
	emitter   events.Emitter
}

// New creates a Runner. A nil extractor uses the default marker; a nil
// emitter discards events.
func New(nb notebook.Notebook, ex *artifact.Extractor, opts Options, logger *slog.Logger, emitter events.Emitter) *Runner {
	if ex == nil {
		ex = artifact.NewExtractor("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		nb:        nb,
		extractor: ex,
		opts:      opts,
		logger:    logger,
		emitter:   emitter,
	}
}

// Options returns the cadence the runner was built with.
func (r *Runner) Options() Options {
	return r.opts
}

// RunUnit triggers the unit at index and waits for a terminal outcome.
// It never retries; the caller decides what a failed outcome means.
func (r *Runner) RunUnit(ctx context.Context, index int, tracker *OutputTracker) Outcome {
	if tracker == nil {
		tracker = NewOutputTracker()
	}
	start := time.Now()
	out := Outcome{Index: index}
	seenArtifacts := make(map[string]struct{})

	finish := func(kind Kind, reason string) Outcome {
		out.Kind = kind
		out.Reason = reason
		out.Elapsed = time.Since(start)
		out.Output = tracker.Last(index)
		r.logger.Info("unit finished",
			"index", index,
			"outcome", kind,
			"elapsed", out.Elapsed,
			"attempts", out.Attempts,
			"reason", reason,
		)
		return out
	}

	if err := r.nb.Run(ctx, index); err != nil {
		if ctx.Err() != nil {
			return finish(KindCancelled, ctx.Err().Error())
		}
		if errors.Is(err, notebook.ErrControlNotFound) {
			return finish(KindErrored, "run control not found")
		}
		return finish(KindErrored, fmt.Sprintf("trigger: %v", err))
	}

	if !poll.Sleep(ctx, r.opts.SettleDelay) {
		return finish(KindCancelled, ctx.Err().Error())
	}

	var terminal Kind
	var reason string

	res := poll.Until(ctx, poll.Options{Interval: r.opts.PollInterval, Timeout: r.opts.UnitTimeout},
		func(ctx context.Context) (bool, error) {
			out.Attempts++
			probe := r.nb.Probe(ctx, index)
			attempt := notebook.Attempt{
				Index:   index,
				Elapsed: time.Since(start),
				Probe:   probe,
			}

			if probe.OK {
				attempt.Phase = probe.Status.Phase()
				attempt.OutputLen = len(probe.Status.Output)
				r.observeOutput(index, tracker.Diff(index, probe.Status.Output))
				r.collectArtifacts(index, settledLines(probe.Status), &out, seenArtifacts)
			}

			r.logger.Debug("unit poll",
				"index", attempt.Index,
				"elapsed", attempt.Elapsed,
				"phase", attempt.Phase,
				"output_len", attempt.OutputLen,
				"probe_ok", probe.OK,
				"probe_reason", probe.Reason,
			)

			if r.nb.Present(ctx) {
				return false, notebook.ErrInterrupted
			}

			if !probe.OK {
				return false, nil
			}
			switch attempt.Phase {
			case notebook.PhaseError:
				terminal, reason = KindErrored, "unit reported an error"
				return true, nil
			case notebook.PhaseCompleted:
				terminal = KindCompleted
				return true, nil
			}
			return false, nil
		})

	switch res.Status {
	case poll.StatusSuccess:
		return finish(terminal, reason)
	case poll.StatusTimeout:
		return finish(KindTimedOut, fmt.Sprintf("no completion within %s", r.opts.UnitTimeout))
	default:
		if errors.Is(res.Err, notebook.ErrInterrupted) {
			return finish(KindInterrupted, "restart dialog appeared")
		}
		return finish(KindCancelled, res.Err.Error())
	}
}

// observeOutput emits fresh lines.
func (r *Runner) observeOutput(index int, fresh []string) {
	if !hasText(fresh) {
		return
	}
	r.emit(&events.UnitOutputEvent{
		BaseEvent: events.NewNotebookEvent(events.EventUnitOutput),
		Index:     index,
		Lines:     fresh,
	})
}

// collectArtifacts records URLs from lines not collected before.
func (r *Runner) collectArtifacts(index int, lines []string, out *Outcome, seen map[string]struct{}) {
	for _, url := range r.extractor.Extract(lines) {
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		out.Artifacts = append(out.Artifacts, url)
		r.logger.Info("artifact observed", "index", index, "url", url)
	}
}

// settledLines returns the output lines that can no longer change. While a
// unit runs its last line may still be mid-write, so it is held back until
// another line follows it or the unit stops.
func settledLines(s notebook.Status) []string {
	if s.Phase() != notebook.PhaseRunning || len(s.Output) == 0 {
		return s.Output
	}
	return s.Output[:len(s.Output)-1]
}

func (r *Runner) emit(ev events.Event) {
	if r.emitter != nil {
		r.emitter.Emit(ev)
	}
}

func hasText(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}
