// Package harness implements the scanner invocation harness (C6,
// §4.6): running one scanner against one file under a per-scan
// deadline, isolating its failures, and producing a composed
// ScanResult. This is the engine's core behavioral contract.
package harness

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/scanforge/filescand/internal/blobstore"
	"github.com/scanforge/filescand/internal/errs"
	"github.com/scanforge/filescand/internal/file"
	"github.com/scanforge/filescand/internal/format"
	"github.com/scanforge/filescand/internal/metrics"
	"github.com/scanforge/filescand/internal/scanner"
)

// defaultScannerTimeout is used when neither per-call options nor
// backend configuration supply one, per §4.6 step 2's
// options > config > default precedence.
const defaultScannerTimeout = 10 * time.Second

// Harness runs scanners against files. One Harness is shared by a
// worker's dispatcher across every file it processes; it is
// stateless aside from its configured default timeout, blob store,
// and the defensive spawn-rate limiter.
type Harness struct {
	blobs          blobstore.Backend
	configDefault  time.Duration
	spawnLimiter   *rate.Limiter
	metrics        *metrics.Registry
}

// SetMetrics attaches a metrics.Registry that Invoke reports
// per-scanner duration, timeout, and crash observations to. Optional;
// a Harness with no metrics attached behaves identically, just without
// the observability side effect.
func (h *Harness) SetMetrics(m *metrics.Registry) {
	h.metrics = m
}

// New returns a Harness. configDefault is the configured
// limits.scanner value (0 means "unset", falling through to
// defaultScannerTimeout). spawnRPS bounds how many scanner invocations
// per second this worker will start, a defensive throttle on
// subprocess-shelling scanners (YARA, OCR, text extractors). 0 disables
// the limiter.
func New(blobs blobstore.Backend, configDefault time.Duration, spawnRPS float64) *Harness {
	h := &Harness{blobs: blobs, configDefault: configDefault}
	if spawnRPS > 0 {
		h.spawnLimiter = rate.NewLimiter(rate.Limit(spawnRPS), 1)
	}
	return h
}

// Outcome is everything the harness produces from one invocation: the
// children the scanner extracted, and the fully composed result.
type Outcome struct {
	Children []*file.File
	Result   format.ScanResult
}

// Invoke runs one scanner against one file. ctx carries the
// distribution (and, nested within it, request) deadline; Invoke
// derives its own scanner deadline from it, so an outer deadline
// firing is visible to the scanner and distinguishable from the
// scanner's own timeout firing.
//
// Invoke never returns a scanner-local failure as an error: crashes
// and scanner-deadline expiry are both folded into the returned
// Outcome (flags + exception field), per §4.6 steps 4-5. The only
// errors Invoke returns are the outer distribution/request deadline
// firing, which must propagate upward without being swallowed.
func (h *Harness) Invoke(
	ctx context.Context,
	sc scanner.Scanner,
	key string,
	data []byte,
	f *file.File,
	options map[string]any,
) (Outcome, error) {
	if h.spawnLimiter != nil {
		if err := h.spawnLimiter.Wait(ctx); err != nil {
			return Outcome{}, err
		}
	}

	timeout := h.scannerTimeout(options)
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	inv := scanner.NewInvocation(key, h.upload)

	type scanOutcome struct {
		err error
	}
	done := make(chan scanOutcome, 1)
	start := time.Now()

	go func() {
		var out scanOutcome
		defer func() {
			if r := recover(); r != nil {
				out.err = fmt.Errorf("%w: %v", errs.ErrScannerCrash, r)
			}
			done <- out
		}()
		out.err = sc.Scan(scanCtx, inv, data, f, options)
	}()

	var scanErr error
	select {
	case outcome := <-done:
		scanErr = outcome.err
	case <-scanCtx.Done():
		if ctx.Err() != nil {
			// The outer (distribution or request) deadline fired, not
			// this scanner's own timeout. Propagate upward unswallowed,
			// per §4.6 step 4.
			if ctx.Err() == context.DeadlineExceeded {
				return Outcome{}, fmt.Errorf("%w", errs.ErrDistributionTimeout)
			}
			return Outcome{}, ctx.Err()
		}
		inv.Flag("timed_out")
	}

	elapsed := time.Since(start).Seconds()

	result := format.ScanResult{
		Elapsed:    elapsed,
		Flags:      inv.Flags,
		FieldOrder: inv.FieldOrder,
		Fields:     inv.Fields,
	}
	for _, rec := range inv.IOCs.Records {
		result.IOCs = append(result.IOCs, rec)
	}
	if scanErr != nil {
		result.Exception = scanErr.Error()
		result.Flags = append(result.Flags, "uncaught_exception")
	}

	if h.metrics != nil {
		timedOut := false
		for _, flag := range result.Flags {
			if flag == "timed_out" {
				timedOut = true
				break
			}
		}
		h.metrics.ObserveScan(key, time.Since(start), timedOut, scanErr != nil)
	}

	return Outcome{Children: inv.Children, Result: result}, nil
}

// scannerTimeout computes scanner_timeout per §4.6 step 2 and the
// options > config > 10s precedence decision.
func (h *Harness) scannerTimeout(options map[string]any) time.Duration {
	if options != nil {
		if v, ok := options["scanner_timeout"]; ok {
			if d, ok := toDuration(v); ok {
				return d
			}
		}
	}
	if h.configDefault > 0 {
		return h.configDefault
	}
	return defaultScannerTimeout
}

func toDuration(v any) (time.Duration, bool) {
	switch n := v.(type) {
	case int:
		return time.Duration(n) * time.Second, true
	case int64:
		return time.Duration(n) * time.Second, true
	case float64:
		return time.Duration(n * float64(time.Second)), true
	default:
		return 0, false
	}
}

func (h *Harness) upload(ctx context.Context, pointer string, chunk []byte, deadline time.Time) error {
	return h.blobs.Append(ctx, pointer, chunk, deadline)
}
