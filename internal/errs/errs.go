// Package errs defines the engine's error kinds (§7): distinct
// sentinel values every layer wraps with fmt.Errorf("%w: ...", ...) so
// callers distinguish them with errors.Is/errors.As instead of string
// comparison.
package errs

import "errors"

var (
	// ErrScannerTimeout means the scanner deadline (§5.1) fired.
	// Recovered locally by the harness: a flag, never propagated.
	ErrScannerTimeout = errors.New("scanner deadline exceeded")

	// ErrDistributionTimeout means the per-file deadline (§5.2) fired.
	// Recovered at the dispatcher: the current file's event may or may
	// not have already been emitted; subtree recursion is skipped.
	ErrDistributionTimeout = errors.New("distribution deadline exceeded")

	// ErrRequestTimeout means the whole-request deadline (§5.3) fired.
	// Only the worker loop catches this; FIN is still emitted.
	ErrRequestTimeout = errors.New("request deadline exceeded")

	// ErrScannerCrash means a scanner call failed or panicked. Always
	// converted into a flag plus an exception field; never escalates.
	ErrScannerCrash = errors.New("scanner crashed")

	// ErrMissingScanner means a name in the mapping table could not be
	// resolved in the registry. Logged; omitted from the event; other
	// scanners still run.
	ErrMissingScanner = errors.New("scanner not registered")

	// ErrTasterLoadFailure means the rule set failed to compile at
	// startup. Fatal to the worker.
	ErrTasterLoadFailure = errors.New("taster rule set failed to compile")

	// ErrFormatFailure means an event could not be serialized. Logged;
	// FIN is still emitted for the request.
	ErrFormatFailure = errors.New("event formatting failed")
)
