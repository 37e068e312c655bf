// Package dispatch runs fire-and-forget side effects (attribution, audit,
// owner notifications, message logging) on a bounded worker pool. Side
// effects never block or fail the request that enqueued them.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize = 256
	defaultWorkers   = 4
	taskTimeout      = 15 * time.Second
)

// Task is one side effect. The name appears in logs and stats; the context
// passed to fn carries the task deadline, not the request lifetime.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Stats is a point-in-time snapshot of dispatcher counters.
type Stats struct {
	Enqueued  uint64
	Completed uint64
	Failed    uint64
	Dropped   uint64
	QueueLen  int
}

// Dispatcher owns the queue and worker pool.
type Dispatcher struct {
	queue   chan Task
	logger  *slog.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	metrics struct {
		enqueued  atomic.Uint64
		completed atomic.Uint64
		failed    atomic.Uint64
		dropped   atomic.Uint64
	}
}

// New creates a Dispatcher with the default queue size and worker count and
// starts its workers.
func New(logger *slog.Logger) *Dispatcher {
	return NewWithSize(defaultQueueSize, defaultWorkers, logger)
}

// NewWithSize creates a Dispatcher with explicit sizing.
func NewWithSize(queueSize, workers int, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	d := &Dispatcher{
		queue:  make(chan Task, queueSize),
		logger: logger.With("subsystem", "dispatch"),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue submits a task without blocking. When the queue is full the
// oldest queued task is dropped to make room; newer effects carry more
// recent state and are worth more.
func (d *Dispatcher) Enqueue(task Task) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.metrics.dropped.Add(1)
		d.logger.Warn("task dropped, dispatcher closed", "task", task.Name)
		return
	}

	for {
		select {
		case d.queue <- task:
			d.metrics.enqueued.Add(1)
			return
		default:
		}

		select {
		case old := <-d.queue:
			d.metrics.dropped.Add(1)
			d.logger.Warn("queue saturated, dropped oldest task", "task", old.Name)
		default:
		}
	}
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued:  d.metrics.enqueued.Load(),
		Completed: d.metrics.completed.Load(),
		Failed:    d.metrics.failed.Load(),
		Dropped:   d.metrics.dropped.Load(),
		QueueLen:  len(d.queue),
	}
}

// Close stops accepting tasks, drains the queue, and waits for workers to
// finish. Safe to call once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for task := range d.queue {
		d.run(task)
	}
}

// run executes one task inside its own timeout and panic boundary.
func (d *Dispatcher) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.metrics.failed.Add(1)
			d.logger.Error("task panicked",
				"task", task.Name,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := task.Fn(ctx); err != nil {
		d.metrics.failed.Add(1)
		d.logger.Warn("task failed",
			"task", task.Name,
			"error", err,
		)
		return
	}
	d.metrics.completed.Add(1)
}
