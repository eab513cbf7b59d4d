package pipes

import (
	"context"
	"time"
)

// Op is a pipe lifecycle operation.
type Op string

const (
	OpStart Op = "start"
	OpStop  Op = "stop"
)

// Result reports the outcome of one dispatched operation.
type Result struct {
	Op       Op
	Err      error
	Duration time.Duration
}

const workerQueueCap = 16

// Worker runs Start/Stop off the caller's goroutine, one at a time, in
// submission order, and reports each outcome on Results.
type Worker struct {
	manager *Manager
	jobs    chan Op
	results chan Result
}

// NewWorker creates a worker for m. Call Run to process jobs.
func NewWorker(m *Manager) *Worker {
	return &Worker{
		manager: m,
		jobs:    make(chan Op, workerQueueCap),
		results: make(chan Result, workerQueueCap),
	}
}

// Submit queues op. It blocks only when the queue is full.
func (w *Worker) Submit(ctx context.Context, op Op) {
	select {
	case w.jobs <- op:
	case <-ctx.Done():
	}
}

// Results delivers operation outcomes.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-w.jobs:
			start := time.Now()
			var err error
			switch op {
			case OpStart:
				err = w.manager.Start(ctx)
			case OpStop:
				err = w.manager.Stop(ctx)
			}

			select {
			case w.results <- Result{Op: op, Err: err, Duration: time.Since(start)}:
			case <-ctx.Done():
				return
			}
		}
	}
}
