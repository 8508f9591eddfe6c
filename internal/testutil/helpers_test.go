package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWriteAndReadFile(t *testing.T) {
	dir := t.TempDir()

	path := WriteFile(t, dir, "nested/dir/test.txt", "hello world")
	if path != filepath.Join(dir, "nested/dir/test.txt") {
		t.Errorf("path = %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file should exist: %v", err)
	}
	if got := ReadFile(t, path); got != "hello world" {
		t.Errorf("content = %q, want %q", got, "hello world")
	}
}

func TestEventually(t *testing.T) {
	var n atomic.Int32
	go func() {
		time.Sleep(10 * time.Millisecond)
		n.Store(1)
	}()
	Eventually(t, time.Second, func() bool { return n.Load() == 1 }, "value never set")
}

func TestAssertHelpers(t *testing.T) {
	mock := NewMockRunner()
	mock.SetResponse("notify", nil, nil)

	ctx := context.Background()
	_, _ = mock.Run(ctx, "notify", "https://a")
	_, _ = mock.Run(ctx, "notify", "https://b")

	AssertCalled(t, mock, "notify", "https://a")
	AssertCallCount(t, mock, "notify", 2)
	AssertNotCalled(t, mock, "other")
}
