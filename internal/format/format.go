// Package format implements the event formatter (C10, §4.10): turning
// the dispatcher's per-file bookkeeping and each scanner's raw
// invocation state into the on-the-wire FileEvent record, with byte
// values normalized to UTF-8 text and empty values pruned.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// OM is a minimal ordered map: it remembers insertion order so the
// formatter can guarantee the key ordering §4.10 requires (elapsed,
// flags, then scanner fields in insertion order; scan sub-keys in
// scanner-assignment order) without fighting encoding/json's
// alphabetical map-key sorting.
type OM struct {
	keys []string
	vals map[string]any
	keep map[string]struct{}
}

// NewOM returns an empty ordered map.
func NewOM() *OM {
	return &OM{vals: map[string]any{}}
}

// Set assigns key to value, appending key to the order if it is new.
func (m *OM) Set(key string, value any) *OM {
	if _, exists := m.vals[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
	return m
}

// SetRequired is Set, but marks key as exempt from prune's empty-value
// drop: it survives with its zero value (e.g. an empty list) even when
// every other empty field at this level is removed.
func (m *OM) SetRequired(key string, value any) *OM {
	m.Set(key, value)
	if m.keep == nil {
		m.keep = map[string]struct{}{}
	}
	m.keep[key] = struct{}{}
	return m
}

// Len reports the number of keys currently set.
func (m *OM) Len() int {
	return len(m.keys)
}

// MarshalJSON writes the map's keys in insertion order.
func (m *OM) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ScanResult is the per-scanner composed result (§3's ScanResult, minus
// the key which is the enclosing map's own key).
type ScanResult struct {
	Elapsed    float64
	Flags      []string
	IOCs       []any
	Exception  string
	FieldOrder []string
	Fields     map[string]any
}

// toOM renders r in the §4.10-mandated key order: elapsed, flags, iocs,
// exception, then scanner fields in their original insertion order.
// elapsed and flags are fixed fields of every scanner result (§6's
// record schema) and survive pruning even when flags is empty; iocs,
// exception, and the scanner-provided Fields are pruned normally.
func (r ScanResult) toOM() *OM {
	m := NewOM()
	m.SetRequired("elapsed", roundElapsed(r.Elapsed))
	m.SetRequired("flags", toAnySlice(r.Flags))
	m.Set("iocs", r.IOCs)
	if r.Exception != "" {
		m.Set("exception", r.Exception)
	}
	for _, k := range r.FieldOrder {
		m.Set(k, r.Fields[k])
	}
	return m
}

func roundElapsed(seconds float64) float64 {
	// Six-decimal precision, per §4.6 step 6 ("6-decimal seconds").
	scaled := seconds * 1e6
	return float64(int64(scaled+0.5)) / 1e6
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// FileMeta is the fixed shape of the file_dict composed in §4.8 step 5.
type FileMeta struct {
	Depth    int
	Name     string
	Flavors  map[string][]string
	Scanners []string
	Size     int
	Source   string
	Tree     TreeMeta
}

// TreeMeta is the tree_dict of §4.8 step 5.
type TreeMeta struct {
	Node   string
	Parent string
	Root   string
}

func (f FileMeta) toOM() *OM {
	m := NewOM()
	m.Set("depth", f.Depth)
	m.Set("name", f.Name)
	flavors := NewOM()
	// Deterministic key order keeps output stable across runs even
	// though flavor sources are stored in a plain Go map upstream.
	sourceKeys := make([]string, 0, len(f.Flavors))
	for k := range f.Flavors {
		sourceKeys = append(sourceKeys, k)
	}
	sort.Strings(sourceKeys)
	for _, k := range sourceKeys {
		flavors.Set(k, toAnySlice(f.Flavors[k]))
	}
	m.Set("flavors", flavors)
	m.Set("scanners", toAnySlice(f.Scanners))
	m.Set("size", f.Size)
	m.Set("source", f.Source)
	tree := NewOM()
	tree.Set("node", f.Tree.Node)
	tree.Set("parent", f.Tree.Parent)
	tree.Set("root", f.Tree.Root)
	m.Set("tree", tree)
	return m
}

// Event is the full {file, scan} record of §6's record schema.
// ScanOrder lists scanner keys in the order they should appear in the
// composed "scan" object (assignment/priority order, §5 "Ordering
// guarantees").
type Event struct {
	File      FileMeta
	ScanOrder []string
	Scan      map[string]ScanResult
}

// Render builds the pruned, ordered JSON document for e, ready to hand
// to the event sink as a single line. Byte-valued fields anywhere in
// Fields/IOCs are normalized to UTF-8 text first.
func Render(e Event) ([]byte, error) {
	root := NewOM()
	root.Set("file", e.File.toOM())

	scan := NewOM()
	for _, key := range e.ScanOrder {
		res, ok := e.Scan[key]
		if !ok {
			continue
		}
		scan.Set(key, res.toOM())
	}
	root.Set("scan", scan)

	normalized := normalizeBytes(root)
	pruned := prune(normalized)
	return json.Marshal(pruned)
}

// normalizeBytes recursively replaces []byte values with UTF-8 text,
// substituting the replacement character for invalid sequences,
// matching §4.10's "Recursively replace byte values with text".
func normalizeBytes(v any) any {
	switch t := v.(type) {
	case []byte:
		return toValidUTF8(t)
	case *OM:
		out := NewOM()
		for _, k := range t.keys {
			if _, required := t.keep[k]; required {
				out.SetRequired(k, normalizeBytes(t.vals[k]))
				continue
			}
			out.Set(k, normalizeBytes(t.vals[k]))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeBytes(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeBytes(val)
		}
		return out
	default:
		return v
	}
}

func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// prune recursively drops keys/elements whose value is an empty
// string, empty list, empty map, or nil, per §4.10.
func prune(v any) any {
	switch t := v.(type) {
	case *OM:
		out := NewOM()
		for _, k := range t.keys {
			pv := prune(t.vals[k])
			_, required := t.keep[k]
			if !required && isEmpty(pv) {
				continue
			}
			if required {
				out.SetRequired(k, pv)
				continue
			}
			out.Set(k, pv)
		}
		return out
	case map[string]any:
		out := make(map[string]any)
		for k, val := range t {
			pv := prune(val)
			if isEmpty(pv) {
				continue
			}
			out[k] = pv
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			pv := prune(val)
			if isEmpty(pv) {
				continue
			}
			out = append(out, pv)
		}
		return out
	default:
		return v
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case *OM:
		return t.Len() == 0
	default:
		return false
	}
}

// FIN is the terminator record appended to a request's event stream,
// per §6.
const FIN = "FIN"

// Error wraps a serialization failure, mapped to the FormatFailure
// error kind of §7: logged, never fatal to the worker.
type Error struct {
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("format: %v", e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
