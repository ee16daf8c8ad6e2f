// Package device implements the per-resource background worker that the
// Runtime Executor (internal/executor) forks device commands onto: one
// worker per forkable resource (wash, disp, incu), each draining
// a FIFO queue of commands on its own goroutine so Fork can hand off work
// and return immediately while Sequence moves on.
//
// Grounded on pkg/queue/worker.go's Worker (idle/working status tracking,
// a run loop goroutine, Stop via a close-once channel + WaitGroup) and on
// pkg/mcp/recovery.go's ClassifyError (transient-vs-fatal error
// classification), generalized from "MCP session failures" to the single
// literal transient condition original_source/robots.py's Biotek.loop
// retries on: status 99 with "Error code: 6061" and "Port is no longer
// available" both present in the response details.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pharmbio/cellpaint/internal/command"
)

// Status is the worker's current state, mirroring queue.WorkerStatus.
type Status string

const (
	StatusReady Status = "ready"
	StatusBusy  Status = "busy"
)

// Execute runs one device command to completion (or returns an error).
// Built per resource in internal/executor from a deviceclient and a
// runconfig.Config.
type Execute func(ctx context.Context, cmd command.Command) error

// Job is one queued unit of work: the command to run and the callback to
// invoke with its outcome once the worker gets to it.
type Job struct {
	Cmd        command.Command
	OnFinished func(error)
}

// Worker drains a FIFO queue of Jobs for a single resource, one at a time,
// on a dedicated goroutine — never two jobs concurrently, and never
// preempted mid-job, matching the executor's cooperative scheduling model.
type Worker struct {
	resource command.Resource
	execute  Execute

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Job
	status Status
	closed bool

	wg sync.WaitGroup
}

// NewWorker builds a worker for resource, backed by execute.
func NewWorker(resource command.Resource, execute Execute) *Worker {
	w := &Worker{resource: resource, execute: execute, status: StatusReady}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Start launches the worker's run loop.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop drains and stops accepting new jobs, then waits for the loop to
// exit after its current job (if any) finishes.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
	w.wg.Wait()
}

// Submit enqueues a job. It never blocks: the queue is unbounded, matching
// Python's SimpleQueue semantics in robots.py's Biotek.
func (w *Worker) Submit(job Job) {
	w.mu.Lock()
	w.queue = append(w.queue, job)
	w.status = StatusBusy
	w.cond.Broadcast()
	w.mu.Unlock()
}

// IsReady reports whether the queue is empty and no job is in flight —
// the condition WaitForResourceCmd blocks on.
func (w *Worker) IsReady() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status == StatusReady
}

// QueueLen reports how many jobs are waiting (not counting one in flight).
func (w *Worker) QueueLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// WaitIdle blocks until the queue is empty and no job is in flight — the
// barrier WaitForResourceCmd reinstates the at-most-one invariant with.
func (w *Worker) WaitIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.status != StatusReady {
		w.cond.Wait()
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("resource", string(w.resource))

	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 && w.closed {
			w.mu.Unlock()
			return
		}
		job := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		err := w.execute(ctx, job.Cmd)
		if err != nil {
			log.Error("device command failed", "cmd", job.Cmd.String(), "error", err)
		}

		w.mu.Lock()
		if len(w.queue) == 0 {
			w.status = StatusReady
			w.cond.Broadcast()
		}
		w.mu.Unlock()

		if job.OnFinished != nil {
			job.OnFinished(err)
		}
	}
}

// ErrTransientBiotek6061 is the one retryable condition robots.py's
// Biotek.loop special-cases: the LHC bridge reports its serial port
// briefly unavailable. Every other non-success status is fatal.
var ErrTransientBiotek6061 = fmt.Errorf("device: biotek port temporarily unavailable (code 6061)")

// ClassifyBiotekResult inspects an LHC_RunProtocol response and reports
// whether it succeeded, should be retried, or is a fatal protocol error.
// status=="1" with "eOK" or "eReady" in details is success; status=="99"
// with both "Error code: 6061" and "Port is no longer available" present
// is the one retryable condition; anything else is fatal.
func ClassifyBiotekResult(status, details string) (done bool, retry bool, err error) {
	if status == "1" && (strings.Contains(details, "eOK") || strings.Contains(details, "eReady")) {
		return true, false, nil
	}
	if status == "99" && strings.Contains(details, "Error code: 6061") && strings.Contains(details, "Port is no longer available") {
		return false, true, ErrTransientBiotek6061
	}
	return false, false, fmt.Errorf("device: unexpected biotek result: status=%s details=%s", status, details)
}
