// Package worker implements the worker loop (C9, §4.9): popping
// requests off the queue, enforcing the whole-request deadline,
// driving the dispatcher at the root file, and finalizing the event
// stream exactly once per handled request.
package worker

import (
	"context"
	"math"
	"time"

	"github.com/scanforge/filescand/internal/audit"
	"github.com/scanforge/filescand/internal/dispatch"
	"github.com/scanforge/filescand/internal/eventsink"
	"github.com/scanforge/filescand/internal/file"
	"github.com/scanforge/filescand/internal/metrics"
	"github.com/scanforge/filescand/internal/queue"
	"github.com/scanforge/filescand/pkg/log"
)

// idlePoll is how long the worker sleeps between empty queue polls.
const idlePoll = 50 * time.Millisecond

// Worker pops requests from a queue.Backend and drives them through a
// dispatch.Dispatcher, one at a time, per §5's "dispatch is
// single-threaded within a worker; parallelism is achieved by running
// multiple worker processes."
type Worker struct {
	queue      queue.Backend
	sink       eventsink.Backend
	dispatcher *dispatch.Dispatcher
	maxFiles   int
	ttlBudget  time.Duration
	metrics    *metrics.Registry
	ledger     *audit.Ledger
}

// SetMetrics attaches a metrics.Registry that Run reports per-request
// completion observations to, and keeps the queue-depth gauge fresh.
// Optional.
func (w *Worker) SetMetrics(m *metrics.Registry) {
	w.metrics = m
}

// SetAuditLedger attaches an audit.Ledger that records one row per
// finalized request (file count, scanner error count, duration),
// supplementing the ephemeral event stream with a durable operational
// record. Optional.
func (w *Worker) SetAuditLedger(l *audit.Ledger) {
	w.ledger = l
}

// New constructs a Worker. maxFiles and ttlBudget of 0 mean unlimited,
// matching §6's "0 = unlimited" configuration semantics.
func New(q queue.Backend, sink eventsink.Backend, d *dispatch.Dispatcher, maxFiles int, ttlBudget time.Duration) *Worker {
	return &Worker{queue: q, sink: sink, dispatcher: d, maxFiles: maxFiles, ttlBudget: ttlBudget}
}

// Run drives the loop until ctx is canceled, maxFiles requests have
// been handled, or the worker's own TTL budget is exhausted (§4.9
// step 4).
func (w *Worker) Run(ctx context.Context) {
	start := time.Now()
	handled := 0

	for {
		if ctx.Err() != nil {
			log.Infof("worker: stopping, context canceled")
			return
		}
		if w.maxFiles > 0 && handled >= w.maxFiles {
			log.Infof("worker: stopping, handled max_files=%d", w.maxFiles)
			return
		}
		if w.ttlBudget > 0 && time.Since(start) >= w.ttlBudget {
			log.Infof("worker: stopping, time_to_live budget exhausted")
			return
		}

		entry, ok, err := w.queue.PopNext(ctx)
		if w.metrics != nil {
			if sized, isSized := w.queue.(interface{ Len() int }); isSized {
				w.metrics.QueueDepthGauge.Set(float64(sized.Len()))
			}
		}
		if err != nil {
			log.Errorf("worker: popping queue failed: %v", err)
			time.Sleep(idlePoll)
			continue
		}
		if !ok {
			time.Sleep(idlePoll)
			continue
		}

		// §4.9 step 1: timeout = ceil(deadline - now); skip if <= 0.
		remaining := time.Until(entry.Deadline)
		timeoutSeconds := math.Ceil(remaining.Seconds())
		if timeoutSeconds <= 0 {
			log.Warnf("worker: skipping %s, already past its deadline", entry.Pointer)
			continue
		}

		w.handleRequest(ctx, entry.Pointer, entry.Deadline, time.Duration(timeoutSeconds*float64(time.Second)))
		handled++
	}
}

// handleRequest installs the request-wide deadline, drives the
// dispatcher at the root file, and always finalizes the stream — on
// normal return, on request timeout, and on any other failure (§4.9
// step 3, §7 RequestTimeout propagation policy).
func (w *Worker) handleRequest(ctx context.Context, rootID string, deadline time.Time, timeout time.Duration) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	w.dispatcher.BeginRequest()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("worker: recovered panic handling %s: %v", rootID, r)
		}
		// Finalize must not be bound to reqCtx: it runs precisely when
		// reqCtx may have just expired, and must still succeed (§4.9
		// step 3, §8 "ends with exactly one FIN").
		finalizeCtx, finalizeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer finalizeCancel()
		if err := w.sink.Finalize(finalizeCtx, rootID, deadline); err != nil {
			log.Errorf("worker: finalizing stream for %s failed: %v", rootID, err)
		}
		if w.metrics != nil {
			w.metrics.ObserveRequest(reqCtx.Err() != nil)
		}
		if w.ledger != nil {
			files, scannerErrors := w.dispatcher.Stats()
			w.ledger.Record(audit.Completion{
				RootPointer:       rootID,
				FileCount:         files,
				ScannerErrorCount: scannerErrors,
				Duration:          time.Since(start),
				CompletedAt:       time.Now(),
			})
		}
	}()

	w.dispatcher.Process(reqCtx, rootID, file.New(rootID))
}
