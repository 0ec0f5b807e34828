// Package scanner defines the scanner contract (§4.6, §4.12): the
// abstraction every content scanner implements, and the per-invocation
// context the harness hands it so reused scanner instances never leak
// state between files.
package scanner

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/scanforge/filescand/internal/file"
	"github.com/scanforge/filescand/internal/ioc"
)

// Scanner is the abstraction every content scanner implements. It is
// polymorphic only over Scan and the optional Init hook, per §9 Design
// Notes ("Polymorphism surface").
type Scanner interface {
	// Name returns the scanner's stable, class-like identifier, e.g.
	// "ScanStrings". Key() derives the event key from it.
	Name() string
	// Scan runs the scanner against data, writing results into inv.
	// ctx carries the scanner deadline (§5); Scan must observe
	// ctx.Done() on any blocking operation.
	Scan(ctx context.Context, inv *Invocation, data []byte, f *file.File, options map[string]any) error
}

// Initializer is an optional capability: scanners that need one-time
// setup against backend configuration implement it. The registry calls
// Init exactly once, at first resolution.
type Initializer interface {
	Init(config map[string]any) error
}

// Uploader streams a child file's bytes into the blob store. The
// harness supplies a concrete implementation backed by
// internal/blobstore; scanner code never talks to the blob store
// directly.
type Uploader func(ctx context.Context, pointer string, chunk []byte, deadline time.Time) error

// Invocation is the fresh per-call state handed to a scanner, matching
// the harness's "reset per invocation" contract (§4.6 step 1) and
// Design Notes option (a): a fresh invocation context rather than
// mutable fields reset by the harness.
type Invocation struct {
	Fields     map[string]any
	FieldOrder []string
	Flags      []string
	Children   []*file.File
	IOCs       *ioc.Recorder

	upload Uploader
}

// NewInvocation returns a zeroed Invocation attributed to scannerKey,
// wired to upload via up.
func NewInvocation(scannerKey string, up Uploader) *Invocation {
	return &Invocation{
		Fields: map[string]any{},
		IOCs:   ioc.NewRecorder(scannerKey),
		upload: up,
	}
}

// Set writes a result field, recording first-write order so the
// formatter can preserve it (§4.10: "Field-insertion order from
// scanners is preserved through formatting").
func (inv *Invocation) Set(key string, value any) {
	if _, exists := inv.Fields[key]; !exists {
		inv.FieldOrder = append(inv.FieldOrder, key)
	}
	inv.Fields[key] = value
}

// Flag appends a short tag to the invocation's flag list.
func (inv *Invocation) Flag(tag string) {
	inv.Flags = append(inv.Flags, tag)
}

// AddIOCs records one or more indicators via the invocation's recorder,
// matching §4.6's add_iocs surface.
func (inv *Invocation) AddIOCs(values []string, kind ioc.Kind, description string, malicious bool) {
	inv.IOCs.Add(values, kind, description, malicious)
}

// NewChild allocates a child File produced by this scanner and appends
// it to Children, where the dispatcher later links it to its parent
// and recurses into it (§4.6's "allocate a
// child File ... append the File to its children list").
func (inv *Invocation) NewChild(name string, source string) *file.File {
	c := file.NewChild(name, source)
	inv.Children = append(inv.Children, c)
	return c
}

// Upload streams chunk bytes for child's pointer through the wired
// Uploader, honoring deadline.
func (inv *Invocation) Upload(ctx context.Context, child *file.File, chunk []byte, deadline time.Time) error {
	return inv.upload(ctx, child.Pointer, chunk, deadline)
}

var scanPrefix = regexp.MustCompile(`^Scan`)
var keyCapsRun = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
var keyCamel = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// Key derives the event key from a scanner's stable name: the "Scan"
// prefix is stripped, then the remainder is snake_cased and lowered,
// per §4.12.
func Key(name string) string {
	s := scanPrefix.ReplaceAllString(name, "")
	s = keyCapsRun.ReplaceAllString(s, "${1}_${2}")
	s = keyCamel.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}
