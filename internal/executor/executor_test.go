package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/npratt/cellpilot/internal/artifact"
	"github.com/npratt/cellpilot/internal/events"
	"github.com/npratt/cellpilot/internal/notebook"
	"github.com/npratt/cellpilot/internal/testutil"
)

func fastOptions() Options {
	return Options{
		PollInterval: 5 * time.Millisecond,
		UnitTimeout:  500 * time.Millisecond,
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", opts.PollInterval)
	}
	if opts.UnitTimeout != 120*time.Second {
		t.Errorf("UnitTimeout = %v, want 120s", opts.UnitTimeout)
	}
	if opts.SettleDelay != 2*time.Second {
		t.Errorf("SettleDelay = %v, want 2s", opts.SettleDelay)
	}
}

func TestRunUnit(t *testing.T) {
	tests := []struct {
		name         string
		script       []notebook.Probe
		runErr       error
		wantKind     Kind
		wantReason   string
		wantOutput   []string
		wantArtifact []string
	}{
		{
			name: "completes after running",
			script: []notebook.Probe{
				testutil.Running(),
				testutil.Running("Loading"),
				testutil.Finished("Loading", "Ready"),
			},
			wantKind:   KindCompleted,
			wantOutput: []string{"Loading", "Ready"},
		},
		{
			name: "extracts artifact from streamed output",
			script: []notebook.Probe{
				testutil.Running("Fetching model..."),
				testutil.Running("Fetching model...", "Running on public URL: https://abcd1234.example.live"),
				testutil.Finished("Fetching model...", "Running on public URL: https://abcd1234.example.live", ""),
			},
			wantKind:     KindCompleted,
			wantOutput:   []string{"Fetching model...", "Running on public URL: https://abcd1234.example.live", ""},
			wantArtifact: []string{"https://abcd1234.example.live"},
		},
		{
			name: "partial last line is not an artifact",
			script: []notebook.Probe{
				testutil.Running("Running on public URL: https://abcd"),
				testutil.Finished("Running on public URL: https://abcd1234.example.live"),
			},
			wantKind:     KindCompleted,
			wantOutput:   []string{"Running on public URL: https://abcd1234.example.live"},
			wantArtifact: []string{"https://abcd1234.example.live"},
		},
		{
			name: "line followed by more output is collected while running",
			script: []notebook.Probe{
				testutil.Running("Running on public URL: https://abcd1234.example.live", "Keepalive"),
				testutil.Running("Running on public URL: https://abcd1234.example.live", "Keepalive", "Keepal"),
				testutil.Finished("Running on public URL: https://abcd1234.example.live", "Keepalive", "Keepalive 2"),
			},
			wantKind:     KindCompleted,
			wantOutput:   []string{"Running on public URL: https://abcd1234.example.live", "Keepalive", "Keepalive 2"},
			wantArtifact: []string{"https://abcd1234.example.live"},
		},
		{
			name:       "error flag ends the unit",
			script:     []notebook.Probe{testutil.Running("x"), testutil.Failed("Traceback")},
			wantKind:   KindErrored,
			wantReason: "unit reported an error",
			wantOutput: []string{"Traceback"},
		},
		{
			name:       "missing run control",
			runErr:     notebook.ErrControlNotFound,
			wantKind:   KindErrored,
			wantReason: "run control not found",
		},
		{
			name:       "other trigger failure",
			runErr:     errors.New("evaluate: target closed"),
			wantKind:   KindErrored,
			wantReason: "trigger: evaluate: target closed",
		},
		{
			name: "unavailable probe is not ready yet",
			script: []notebook.Probe{
				notebook.Unavailable("output container not found"),
				notebook.Unavailable("output container not found"),
				testutil.Finished("ok"),
			},
			wantKind:   KindCompleted,
			wantOutput: []string{"ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nb := testutil.NewFakeNotebook(1)
			if tt.script != nil {
				nb.Scripts[0] = tt.script
			}
			if tt.runErr != nil {
				nb.RunErrs[0] = tt.runErr
			}

			r := New(nb, artifact.NewExtractor(""), fastOptions(), nil, nil)
			out := r.RunUnit(context.Background(), 0, NewOutputTracker())

			if out.Kind != tt.wantKind {
				t.Fatalf("Kind = %s, want %s (reason %q)", out.Kind, tt.wantKind, out.Reason)
			}
			if out.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", out.Reason, tt.wantReason)
			}
			if diff := cmp.Diff(tt.wantOutput, out.Output, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Output mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantArtifact, out.Artifacts); diff != "" {
				t.Errorf("Artifacts mismatch (-want +got):\n%s", diff)
			}
			if out.Index != 0 {
				t.Errorf("Index = %d, want 0", out.Index)
			}
		})
	}
}

func TestRunUnitTimeoutIsNotEarly(t *testing.T) {
	nb := testutil.NewFakeNotebook(1)
	nb.Scripts[0] = []notebook.Probe{testutil.Running("still going")}

	opts := Options{PollInterval: 10 * time.Millisecond, UnitTimeout: 80 * time.Millisecond}
	r := New(nb, nil, opts, nil, nil)
	out := r.RunUnit(context.Background(), 0, NewOutputTracker())

	if out.Kind != KindTimedOut {
		t.Fatalf("Kind = %s, want %s", out.Kind, KindTimedOut)
	}
	if out.Elapsed < opts.UnitTimeout {
		t.Errorf("Elapsed %v shorter than UnitTimeout %v", out.Elapsed, opts.UnitTimeout)
	}
	if !out.Kind.Failed() {
		t.Error("timed out outcome should count as failed")
	}
	if !strings.Contains(out.Reason, "80ms") {
		t.Errorf("Reason = %q, want timeout mentioned", out.Reason)
	}
}

func TestRunUnitBlankOutputIsNotCompletion(t *testing.T) {
	nb := testutil.NewFakeNotebook(1)
	nb.Scripts[0] = []notebook.Probe{testutil.Finished("", "  ")}

	opts := Options{PollInterval: 5 * time.Millisecond, UnitTimeout: 40 * time.Millisecond}
	out := New(nb, nil, opts, nil, nil).RunUnit(context.Background(), 0, NewOutputTracker())

	if out.Kind != KindTimedOut {
		t.Errorf("Kind = %s, want %s", out.Kind, KindTimedOut)
	}
}

func TestRunUnitInterrupted(t *testing.T) {
	nb := testutil.NewFakeNotebook(1)
	nb.Scripts[0] = []notebook.Probe{testutil.Running("working")}
	nb.OnRun = func(f *testutil.FakeNotebook, index, call int) { f.RaiseDialog() }

	out := New(nb, nil, fastOptions(), nil, nil).RunUnit(context.Background(), 0, NewOutputTracker())

	if out.Kind != KindInterrupted {
		t.Fatalf("Kind = %s, want %s", out.Kind, KindInterrupted)
	}
	if out.Kind.Failed() {
		t.Error("interrupted outcome should not count as failed")
	}
	if nb.Acks() != 0 {
		t.Error("runner must leave the dialog for the controller to acknowledge")
	}
}

func TestRunUnitInterruptBeatsCompletion(t *testing.T) {
	nb := testutil.NewFakeNotebook(1)
	nb.OnRun = func(f *testutil.FakeNotebook, index, call int) { f.RaiseDialog() }

	out := New(nb, nil, fastOptions(), nil, nil).RunUnit(context.Background(), 0, NewOutputTracker())
	if out.Kind != KindInterrupted {
		t.Errorf("Kind = %s, want %s", out.Kind, KindInterrupted)
	}
}

func TestRunUnitCancelled(t *testing.T) {
	nb := testutil.NewFakeNotebook(1)
	nb.Scripts[0] = []notebook.Probe{testutil.Running()}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	out := New(nb, nil, fastOptions(), nil, nil).RunUnit(ctx, 0, NewOutputTracker())
	if out.Kind != KindCancelled {
		t.Errorf("Kind = %s, want %s", out.Kind, KindCancelled)
	}
}

func TestRunUnitCancelledDuringSettle(t *testing.T) {
	nb := testutil.NewFakeNotebook(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := fastOptions()
	opts.SettleDelay = time.Hour
	out := New(nb, nil, opts, nil, nil).RunUnit(ctx, 0, NewOutputTracker())
	if out.Kind != KindCancelled {
		t.Errorf("Kind = %s, want %s", out.Kind, KindCancelled)
	}
}

func TestRunUnitEmitsOnlyNewOutput(t *testing.T) {
	nb := testutil.NewFakeNotebook(1)
	nb.Scripts[0] = []notebook.Probe{
		testutil.Running("a"),
		testutil.Running("a"),
		testutil.Running("a", "b"),
		testutil.Finished("a", "b"),
	}
	rec := &testutil.RecordingEmitter{}

	out := New(nb, nil, fastOptions(), nil, rec).RunUnit(context.Background(), 0, NewOutputTracker())
	if out.Kind != KindCompleted {
		t.Fatalf("Kind = %s, want completed", out.Kind)
	}

	var got [][]string
	for _, ev := range rec.OfType(events.EventUnitOutput) {
		got = append(got, ev.(*events.UnitOutputEvent).Lines)
	}
	want := [][]string{{"a"}, {"b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output events mismatch (-want +got):\n%s", diff)
	}
}

func TestRunUnitTrackerCarriesAcrossCalls(t *testing.T) {
	nb := testutil.NewFakeNotebook(1)
	nb.Scripts[0] = []notebook.Probe{testutil.Finished("Running on public URL: https://same.example.live")}

	r := New(nb, nil, fastOptions(), nil, nil)
	tracker := NewOutputTracker()

	first := r.RunUnit(context.Background(), 0, tracker)
	second := r.RunUnit(context.Background(), 0, tracker)

	if len(first.Artifacts) != 1 {
		t.Errorf("first run artifacts = %v, want one", first.Artifacts)
	}
	if len(second.Artifacts) != 0 {
		t.Errorf("second run re-reported artifacts %v from unchanged output", second.Artifacts)
	}
}

func TestRunUnitNilTracker(t *testing.T) {
	nb := testutil.NewFakeNotebook(1)
	out := New(nb, nil, fastOptions(), nil, nil).RunUnit(context.Background(), 0, nil)
	if out.Kind != KindCompleted {
		t.Errorf("Kind = %s, want completed", out.Kind)
	}
}
