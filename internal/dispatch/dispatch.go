// Package dispatch implements the dispatcher (C8, §4.8): the per-file
// lifecycle that streams bytes, tastes them, assigns scanners, invokes
// them, emits the composed event, and recurses into extracted
// children. This is where C1, C4, C5, C6, C7, C10, C11 meet.
package dispatch

import (
	"context"
	"time"

	"github.com/scanforge/filescand/internal/assign"
	"github.com/scanforge/filescand/internal/blobstore"
	"github.com/scanforge/filescand/internal/eventsink"
	"github.com/scanforge/filescand/internal/file"
	"github.com/scanforge/filescand/internal/format"
	"github.com/scanforge/filescand/internal/harness"
	"github.com/scanforge/filescand/internal/metrics"
	"github.com/scanforge/filescand/internal/registry"
	"github.com/scanforge/filescand/internal/scanner"
	"github.com/scanforge/filescand/internal/taste"
	"github.com/scanforge/filescand/pkg/log"
)

// Dispatcher drives §4.8's per-file lifecycle. Dispatch is
// single-threaded within a worker (§5); one Dispatcher is owned by one
// worker goroutine and never shared.
type Dispatcher struct {
	blobs              blobstore.Backend
	sink               eventsink.Backend
	taster             *taste.Taster
	assigner           *assign.Engine
	registry           *registry.Registry
	harness            *harness.Harness
	maxDepth           int
	distributionBudget time.Duration
	metrics            *metrics.Registry

	// fileCount and scannerErrors tally the request currently being
	// processed, for internal/audit's per-request ledger row.
	// Dispatch is single-threaded within a worker (§5), so these need
	// no synchronization; BeginRequest resets them.
	fileCount     int
	scannerErrors int
}

// SetMetrics attaches a metrics.Registry that Process reports
// per-file dispatch observations to. Optional.
func (d *Dispatcher) SetMetrics(m *metrics.Registry) {
	d.metrics = m
}

// BeginRequest resets the per-request file/error tally. Call once
// before Process at the root of a new request.
func (d *Dispatcher) BeginRequest() {
	d.fileCount = 0
	d.scannerErrors = 0
}

// Stats reports the file and scanner-error counts tallied since the
// last BeginRequest, for internal/audit.
func (d *Dispatcher) Stats() (files, scannerErrors int) {
	return d.fileCount, d.scannerErrors
}

// New wires a Dispatcher from its component collaborators.
func New(
	blobs blobstore.Backend,
	sink eventsink.Backend,
	taster *taste.Taster,
	assigner *assign.Engine,
	reg *registry.Registry,
	h *harness.Harness,
	maxDepth int,
	distributionBudget time.Duration,
) *Dispatcher {
	return &Dispatcher{
		blobs:              blobs,
		sink:               sink,
		taster:             taster,
		assigner:           assigner,
		registry:           reg,
		harness:            h,
		maxDepth:           maxDepth,
		distributionBudget: distributionBudget,
	}
}

// Process runs the full lifecycle for one File within the request
// rooted at rootID. ctx carries the request deadline (§5.3); Process
// derives a fresh distribution deadline (§5.2) for this file from it.
//
// Depth-first recursion mirrors the reference's call-stack traversal
// directly (§9 Design Notes: "external behavior must be unchanged:
// same event order"); recursion depth is bounded by maxDepth so there
// is no unbounded stack growth to guard against.
func (d *Dispatcher) Process(ctx context.Context, rootID string, f *file.File) {
	if f.Depth > d.maxDepth {
		return
	}
	d.fileCount++
	if d.metrics != nil {
		d.metrics.ObserveFile(f.Depth)
	}

	distCtx, cancel := context.WithTimeout(ctx, d.distributionBudget)
	defer cancel()

	data, err := d.blobs.Drain(distCtx, f.Pointer)
	if err != nil {
		log.Warnf("dispatch: draining %s failed: %v", f.Pointer, err)
		return
	}
	if distCtx.Err() != nil {
		log.Warnf("dispatch: distribution deadline exceeded draining %s", f.Pointer)
		return
	}

	contentType := d.taster.TasteContentType(data)
	ruleTags := d.taster.TasteRules(data)
	f.AddFlavors(file.Flavors{
		file.ContentType: contentType,
		file.Rule:        ruleTags,
	})

	flavorSet := f.FlavorSet()
	assignments := d.assigner.Assign(flavorSet, f.Name, f.Source, len(data))

	var scanNames []string
	scanMap := map[string]format.ScanResult{}
	var children []*file.File

	for _, a := range assignments {
		if distCtx.Err() != nil {
			log.Warnf("dispatch: distribution deadline exceeded assigning scanners for %s", f.Identity)
			return
		}

		sc, ok := d.registry.Resolve(a.Name)
		if !ok {
			continue
		}

		key := scanner.Key(sc.Name())
		outcome, err := d.harness.Invoke(distCtx, sc, key, data, f, a.Options)
		if err != nil {
			log.Warnf("dispatch: aborting %s after scanner %q: %v", f.Identity, a.Name, err)
			return
		}

		scanNames = append(scanNames, key)
		scanMap[key] = outcome.Result
		children = append(children, outcome.Children...)
		if outcome.Result.Exception != "" {
			d.scannerErrors++
		}
	}

	event := format.Event{
		File: format.FileMeta{
			Depth:    f.Depth,
			Name:     f.Name,
			Flavors:  f.Flavors,
			Scanners: scanNames,
			Size:     len(data),
			Source:   f.Source,
			Tree:     treeMeta(f.TreeFor(rootID)),
		},
		ScanOrder: scanNames,
		Scan:      scanMap,
	}

	raw, err := format.Render(event)
	if err != nil {
		log.Errorf("dispatch: formatting event for %s failed: %v", f.Identity, err)
		return
	}

	requestDeadline, _ := ctx.Deadline()
	if err := d.sink.AppendEvent(ctx, rootID, raw, requestDeadline); err != nil {
		log.Errorf("dispatch: appending event for %s failed: %v", f.Identity, err)
	}

	if distCtx.Err() != nil {
		log.Warnf("dispatch: distribution deadline exceeded after emitting %s, skipping recursion", f.Identity)
		return
	}

	for _, child := range children {
		child.Link(f)
		d.Process(ctx, rootID, child)
	}
}

func treeMeta(t file.Tree) format.TreeMeta {
	return format.TreeMeta{Node: t.Node, Parent: t.Parent, Root: t.Root}
}
