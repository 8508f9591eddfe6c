package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUntil(t *testing.T) {
	t.Run("immediate success checks once", func(t *testing.T) {
		res := Until(context.Background(), Options{Interval: time.Hour, Timeout: time.Second},
			func(ctx context.Context) (bool, error) { return true, nil })

		if res.Status != StatusSuccess {
			t.Fatalf("status = %s, want %s", res.Status, StatusSuccess)
		}
		if res.Attempts != 1 {
			t.Errorf("attempts = %d, want 1", res.Attempts)
		}
		if !res.OK() {
			t.Error("OK() = false for success")
		}
	})

	t.Run("succeeds after several polls", func(t *testing.T) {
		calls := 0
		res := Until(context.Background(), Options{Interval: time.Millisecond, Timeout: time.Second},
			func(ctx context.Context) (bool, error) {
				calls++
				return calls == 3, nil
			})

		if res.Status != StatusSuccess {
			t.Fatalf("status = %s, want %s", res.Status, StatusSuccess)
		}
		if res.Attempts != 3 {
			t.Errorf("attempts = %d, want 3", res.Attempts)
		}
	})

	t.Run("timeout is not reported early", func(t *testing.T) {
		timeout := 60 * time.Millisecond
		res := Until(context.Background(), Options{Interval: 25 * time.Millisecond, Timeout: timeout},
			func(ctx context.Context) (bool, error) { return false, nil })

		if res.Status != StatusTimeout {
			t.Fatalf("status = %s, want %s", res.Status, StatusTimeout)
		}
		if res.Elapsed < timeout {
			t.Errorf("elapsed %v is shorter than timeout %v", res.Elapsed, timeout)
		}
		if res.Err != nil {
			t.Errorf("unexpected error on timeout: %v", res.Err)
		}
	})

	t.Run("condition error ends the loop", func(t *testing.T) {
		boom := errors.New("boom")
		res := Until(context.Background(), Options{Interval: time.Millisecond, Timeout: time.Second},
			func(ctx context.Context) (bool, error) { return false, boom })

		if res.Status != StatusError {
			t.Fatalf("status = %s, want %s", res.Status, StatusError)
		}
		if !errors.Is(res.Err, boom) {
			t.Errorf("err = %v, want %v", res.Err, boom)
		}
	})

	t.Run("context cancellation ends the loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		res := Until(ctx, Options{Interval: 5 * time.Millisecond},
			func(ctx context.Context) (bool, error) { return false, nil })

		if res.Status != StatusError {
			t.Fatalf("status = %s, want %s", res.Status, StatusError)
		}
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", res.Err)
		}
	})

	t.Run("zero timeout means no deadline", func(t *testing.T) {
		calls := 0
		res := Until(context.Background(), Options{Interval: time.Millisecond},
			func(ctx context.Context) (bool, error) {
				calls++
				return calls == 20, nil
			})
		if res.Status != StatusSuccess {
			t.Fatalf("status = %s, want %s", res.Status, StatusSuccess)
		}
	})
}

func TestSleep(t *testing.T) {
	t.Run("completes", func(t *testing.T) {
		if !Sleep(context.Background(), time.Millisecond) {
			t.Error("Sleep returned false without cancellation")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if Sleep(ctx, time.Hour) {
			t.Error("Sleep returned true on cancelled context")
		}
	})

	t.Run("zero duration respects cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if Sleep(ctx, 0) {
			t.Error("Sleep(0) returned true on cancelled context")
		}
	})
}
