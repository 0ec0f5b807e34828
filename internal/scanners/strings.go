// Package scanners holds the small built-in set of reference content
// scanners used by the engine's own tests and as a worked example of
// the C12 contract (§1's Non-goals: the real scanner catalogue -
// document parsers, YARA, x509, OCR, and so on - is an external
// collaborator out of scope for this repo).
package scanners

import (
	"bufio"
	"bytes"
	"context"
	"unicode"

	"github.com/scanforge/filescand/internal/eventsink"
	"github.com/scanforge/filescand/internal/file"
	"github.com/scanforge/filescand/internal/scanner"
)

// minStringLength is the shortest run of printable characters the
// Strings scanner reports, mirroring the conventional default of the
// Unix strings(1) utility.
const minStringLength = 4

// Strings extracts printable ASCII runs from a file's bytes: a
// minimal, dependency-free scanner good enough to exercise the
// harness and formatter end to end.
type Strings struct {
	minLength int
}

// NewStrings is a registry.Factory for the Strings scanner.
func NewStrings(cfg map[string]any, _ eventsink.Backend) (scanner.Scanner, error) {
	min := minStringLength
	if v, ok := cfg["min_length"]; ok {
		if n, ok := v.(float64); ok && n > 0 {
			min = int(n)
		}
	}
	return &Strings{minLength: min}, nil
}

// Name returns the scanner's stable identifier; Key() derives
// "strings" from it per §4.12.
func (s *Strings) Name() string { return "ScanStrings" }

// Scan walks data once, emitting every printable run of at least
// minLength characters into the invocation's "strings" field.
func (s *Strings) Scan(ctx context.Context, inv *scanner.Invocation, data []byte, _ *file.File, _ map[string]any) error {
	var found []string
	var run []rune

	flush := func() {
		if len(run) >= s.minLength {
			found = append(found, scanner.NormalizeWhitespace(string(run)))
		}
		run = run[:0]
	}

	reader := bufio.NewReaderSize(bytes.NewReader(data), 64*1024)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r, _, err := reader.ReadRune()
		if err != nil {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsPrint(r) || r == ' ') {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()

	inv.Set("strings", dedupe(found))
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
