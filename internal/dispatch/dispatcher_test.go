package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestEnqueueRuns(t *testing.T) {
	d := New(discard())

	var mu sync.Mutex
	var ran []string
	done := make(chan struct{})

	d.Enqueue(Task{Name: "audit", Fn: func(ctx context.Context) error {
		mu.Lock()
		ran = append(ran, "audit")
		mu.Unlock()
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
	d.Close()

	if stats := d.Stats(); stats.Completed != 1 || stats.Enqueued != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFailureIsIsolated(t *testing.T) {
	d := NewWithSize(8, 1, discard())

	done := make(chan struct{})
	d.Enqueue(Task{Name: "bad", Fn: func(ctx context.Context) error {
		return errors.New("downstream unavailable")
	}})
	d.Enqueue(Task{Name: "worse", Fn: func(ctx context.Context) error {
		panic("boom")
	}})
	d.Enqueue(Task{Name: "good", Fn: func(ctx context.Context) error {
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task after failures never ran")
	}
	d.Close()

	stats := d.Stats()
	if stats.Failed != 2 {
		t.Errorf("Failed = %d, want 2", stats.Failed)
	}
	if stats.Completed != 1 {
		t.Errorf("Completed = %d, want 1", stats.Completed)
	}
}

func TestSaturationDropsOldest(t *testing.T) {
	d := NewWithSize(2, 1, discard())

	gate := make(chan struct{})
	started := make(chan struct{})
	d.Enqueue(Task{Name: "blocker", Fn: func(ctx context.Context) error {
		close(started)
		<-gate
		return nil
	}})
	<-started

	// Queue capacity is 2; the third enqueue must evict the oldest.
	for i := 0; i < 3; i++ {
		d.Enqueue(Task{Name: "filler", Fn: func(ctx context.Context) error { return nil }})
	}

	if stats := d.Stats(); stats.Dropped == 0 {
		t.Errorf("Dropped = 0, want at least 1 under saturation")
	}

	close(gate)
	d.Close()
}

func TestEnqueueAfterClose(t *testing.T) {
	d := New(discard())
	d.Close()

	// Must not panic.
	d.Enqueue(Task{Name: "late", Fn: func(ctx context.Context) error { return nil }})

	if stats := d.Stats(); stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	d := NewWithSize(16, 2, discard())

	var mu sync.Mutex
	count := 0
	for i := 0; i < 10; i++ {
		d.Enqueue(Task{Name: "drain", Fn: func(ctx context.Context) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		}})
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 10 {
		t.Errorf("ran %d tasks before close returned, want 10", count)
	}
}
