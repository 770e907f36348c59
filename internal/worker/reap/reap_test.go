package reap

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

// mockDeleter はDeleterのモック実装。
type mockDeleter struct {
	deleteFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockDeleter) DeleteOlderThanAllStores(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.deleteFn(ctx, cutoff)
}

// mockMetrics はMetricsのモック実装。
type mockMetrics struct {
	reaped int64
}

func (m *mockMetrics) RecordRequestsReaped(count int64) {
	m.reaped += count
}

// TestSweepJob_Run は保持期間から算出したカットオフで削除が実行されることを検証する。
func TestSweepJob_Run(t *testing.T) {
	fixed := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	var gotCutoff time.Time

	deleter := &mockDeleter{
		deleteFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 5, nil
		},
	}
	metrics := &mockMetrics{}
	job := NewSweepJob(deleter, metrics, slog.Default())
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if want := fixed.Add(-24 * time.Hour); !gotCutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", gotCutoff, want)
	}
	if metrics.reaped != 5 {
		t.Errorf("reaped metric = %d, want 5", metrics.reaped)
	}
}

// TestSweepJob_RunNoTargets は削除対象なしでもエラーにならないことを検証する（冪等）。
func TestSweepJob_RunNoTargets(t *testing.T) {
	deleter := &mockDeleter{
		deleteFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 0, nil
		},
	}
	metrics := &mockMetrics{}
	job := NewSweepJob(deleter, metrics, slog.Default())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if metrics.reaped != 0 {
		t.Errorf("reaped metric = %d, want 0", metrics.reaped)
	}
}

// TestSweepJob_RunError は削除失敗がエラーとして返ることを検証する。
func TestSweepJob_RunError(t *testing.T) {
	deleter := &mockDeleter{
		deleteFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 0, errors.New("deadlock detected")
		},
	}
	job := NewSweepJob(deleter, nil, slog.Default())

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// TestSweepJob_RunPeriodic は起動直後の実行とキャンセルでの停止を検証する。
func TestSweepJob_RunPeriodic(t *testing.T) {
	runs := make(chan struct{}, 10)
	deleter := &mockDeleter{
		deleteFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			runs <- struct{}{}
			return 0, nil
		},
	}
	job := NewSweepJob(deleter, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		job.RunPeriodic(ctx, time.Hour)
	}()

	// 起動直後に1回実行される
	select {
	case <-runs:
	case <-time.After(time.Second):
		t.Fatal("initial sweep did not run")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop after cancel")
	}
}
