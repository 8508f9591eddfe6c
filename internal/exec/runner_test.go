package exec

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

func TestExecRunnerRun(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name       string
		runner     *ExecRunner
		script     string
		wantOut    string
		wantErr    bool
		wantErrHas string
	}{
		{
			name:    "stdout returned",
			runner:  NewExecRunner(),
			script:  "printf hello",
			wantOut: "hello",
		},
		{
			name:    "extra env visible",
			runner:  NewExecRunner("CELLPILOT_TEST_VALUE=42"),
			script:  `printf "$CELLPILOT_TEST_VALUE"`,
			wantOut: "42",
		},
		{
			name:       "stderr folded into error",
			runner:     NewExecRunner(),
			script:     "echo boom >&2; exit 3",
			wantErr:    true,
			wantErrHas: "boom",
		},
		{
			name:    "exit without stderr",
			runner:  NewExecRunner(),
			script:  "exit 1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.runner.Run(context.Background(), "sh", "-c", tt.script)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErrHas != "" && !strings.Contains(err.Error(), tt.wantErrHas) {
				t.Errorf("err = %v, want it to contain %q", err, tt.wantErrHas)
			}
			if !tt.wantErr && string(out) != tt.wantOut {
				t.Errorf("out = %q, want %q", out, tt.wantOut)
			}
		})
	}
}

func TestExecRunnerContextTimeout(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewExecRunner().Run(ctx, "sh", "-c", "sleep 5")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := NewExecRunner().Run(context.Background(), "cellpilot-no-such-binary")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestTail(t *testing.T) {
	if got := tail("  short  ", 10); got != "short" {
		t.Errorf("tail() = %q", got)
	}
	if got := tail("abcdefghij", 4); got != "...ghij" {
		t.Errorf("tail() = %q", got)
	}
}
