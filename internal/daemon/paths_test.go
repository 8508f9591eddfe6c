package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/npratt/cellpilot/internal/config"
)

func TestResolvePaths(t *testing.T) {
	tmp := t.TempDir()

	paths := config.PathsConfig{
		State:  ".cellpilot/state.json",
		Log:    "/var/log/cellpilot.log",
		Socket: ".cellpilot/cellpilot.sock",
		PID:    "",
	}

	resolved, err := ResolvePaths(paths, tmp)
	if err != nil {
		t.Fatalf("ResolvePaths() error: %v", err)
	}

	want := config.PathsConfig{
		State:  filepath.Join(tmp, ".cellpilot/state.json"),
		Log:    "/var/log/cellpilot.log",
		Socket: filepath.Join(tmp, ".cellpilot/cellpilot.sock"),
		PID:    "",
	}
	if diff := cmp.Diff(want, resolved); diff != "" {
		t.Errorf("ResolvePaths mismatch (-want +got):\n%s", diff)
	}
}

func TestFindProjectRoot(t *testing.T) {
	tests := []struct {
		name   string
		marker string
	}{
		{"git marker", ".git"},
		{"state dir marker", ".cellpilot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if err := os.Mkdir(filepath.Join(root, tt.marker), 0755); err != nil {
				t.Fatal(err)
			}
			nested := filepath.Join(root, "a", "b")
			if err := os.MkdirAll(nested, 0755); err != nil {
				t.Fatal(err)
			}

			got := FindProjectRoot(nested)
			wantRoot, _ := filepath.EvalSymlinks(root)
			gotRoot, _ := filepath.EvalSymlinks(got)
			if gotRoot != wantRoot {
				t.Errorf("FindProjectRoot() = %q, want %q", got, root)
			}
		})
	}

	t.Run("no marker returns start", func(t *testing.T) {
		dir := t.TempDir()
		if got := FindProjectRoot(dir); got != dir {
			// A marker above the temp dir is possible on dev machines.
			t.Logf("FindProjectRoot() = %q (marker above temp dir)", got)
		}
	})
}

func TestInfoRoundTrip(t *testing.T) {
	root := t.TempDir()
	path := InfoPath(root)

	info := &Info{
		SocketPath:  "/tmp/x.sock",
		PIDPath:     "/tmp/x.pid",
		LogPath:     "/tmp/events.log",
		StatePath:   "/tmp/state.json",
		NotebookURL: "https://notebook.example/abc",
		StartTime:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		PID:         4242,
	}
	if err := WriteInfo(path, info); err != nil {
		t.Fatalf("WriteInfo: %v", err)
	}

	got, err := FindInfo(root)
	if err != nil {
		t.Fatalf("FindInfo: %v", err)
	}
	if diff := cmp.Diff(info, got); diff != "" {
		t.Errorf("info mismatch (-want +got):\n%s", diff)
	}

	if err := RemoveInfo(path); err != nil {
		t.Fatalf("RemoveInfo: %v", err)
	}
	if err := RemoveInfo(path); err != nil {
		t.Errorf("second RemoveInfo should ignore missing file: %v", err)
	}
	if _, err := FindInfo(root); err == nil {
		t.Error("FindInfo after removal should fail")
	}
}
