// internal/progress/tracker_test.go
package progress

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	tracker, err := Open(filepath.Join(t.TempDir(), "state", "progress.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { tracker.Close() })
	return tracker
}

func TestTracker_MarkAndPending(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)

	if err := tracker.MarkDone(ctx, "tacobell", "10001"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	if err := tracker.MarkFailed(ctx, "tacobell", "10002"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if err := tracker.MarkDone(ctx, "sweetgreen", "10003"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	done, err := tracker.IsDone(ctx, "tacobell", "10001")
	if err != nil || !done {
		t.Errorf("IsDone(10001) = %v, %v; want true", done, err)
	}
	done, err = tracker.IsDone(ctx, "tacobell", "10002")
	if err != nil || done {
		t.Errorf("IsDone(10002) = %v, %v; want false", done, err)
	}
	done, err = tracker.IsDone(ctx, "tacobell", "99999")
	if err != nil || done {
		t.Errorf("IsDone(99999) = %v, %v; want false", done, err)
	}

	pending, err := tracker.Pending(ctx, "tacobell", []string{"10001", "10002", "10003", "10004"})
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if diff := cmp.Diff([]string{"10002", "10003", "10004"}, pending); diff != "" {
		t.Errorf("Pending mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_RetryThenDone(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)

	tracker.MarkFailed(ctx, "walmart", "a")
	tracker.MarkDone(ctx, "walmart", "a")

	if n, _ := tracker.Count(ctx, "walmart", StatusDone); n != 1 {
		t.Errorf("expected 1 done seed, got %d", n)
	}
	if n, _ := tracker.Count(ctx, "walmart", StatusFailed); n != 0 {
		t.Errorf("expected 0 failed seeds, got %d", n)
	}
}

func TestTracker_Reset(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)

	tracker.MarkDone(ctx, "tacobell", "10001")
	tracker.MarkDone(ctx, "sweetgreen", "10001")

	if err := tracker.Reset(ctx, "tacobell"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if done, _ := tracker.IsDone(ctx, "tacobell", "10001"); done {
		t.Error("expected tacobell progress to be cleared")
	}
	if done, _ := tracker.IsDone(ctx, "sweetgreen", "10001"); !done {
		t.Error("expected sweetgreen progress to survive")
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}
