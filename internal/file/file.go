// Package file implements the decomposition-tree node (§3, §4.11):
// identity, parent linkage, depth, and the flavor map scanners and the
// taster populate as a file moves through the dispatcher.
package file

import (
	"crypto/rand"
	"encoding/hex"
)

// Flavors maps a flavor source (the well-known sources are External,
// ContentType and Rule) to the set of string tags that source attached.
type Flavors map[string][]string

// Well-known flavor sources, per §3.
const (
	External    = "external"
	ContentType = "content-type"
	Rule        = "rule"
)

// File is one node of a request's decomposition tree. It is local to a
// single request and is never shared across workers.
type File struct {
	Identity string
	Pointer  string
	Depth    int
	Parent   string
	Name     string
	Source   string
	Flavors  Flavors
}

// NewIdentity returns a fresh 16-byte random hex identity, matching
// §3's "process-wide-unique id (16-byte random is sufficient)".
func NewIdentity() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// New constructs a root File: depth 0, no parent, no source, pointer
// equal to the supplied root pointer (the request id).
func New(pointer string) *File {
	return &File{
		Identity: NewIdentity(),
		Pointer:  pointer,
		Depth:    0,
		Flavors:  Flavors{},
	}
}

// NewChild constructs a File produced by a scanner. Pointer defaults to
// the new file's identity when not supplied, matching §4.11. Depth and
// parent are set by the caller (the dispatcher) when the child is
// actually linked into the tree, so this constructor leaves them zero;
// use Link to finish wiring it in.
func NewChild(name, source string) *File {
	f := &File{
		Identity: NewIdentity(),
		Name:     name,
		Source:   source,
		Flavors:  Flavors{},
	}
	f.Pointer = f.Identity
	return f
}

// Link attaches a child to its producing parent: sets parent identity
// and depth = parent.Depth+1, per §4.8 step 8.
func (f *File) Link(parent *File) {
	f.Parent = parent.Identity
	f.Depth = parent.Depth + 1
}

// AddFlavors merges a per-source flavor mapping into the file's
// existing flavors. New values overwrite under duplicate source keys,
// per §4.11.
func (f *File) AddFlavors(m Flavors) {
	if f.Flavors == nil {
		f.Flavors = Flavors{}
	}
	for source, tags := range m {
		f.Flavors[source] = tags
	}
}

// FlavorSet flattens every source's tags into one deduplicated set,
// matching §4.8 step 4's "flavors = external ∪ content-type ∪ rule".
func (f *File) FlavorSet() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tags := range f.Flavors {
		for _, t := range tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Tree describes the tree_dict composed in §4.8 step 5.
type Tree struct {
	Node   string `json:"node"`
	Parent string `json:"parent,omitempty"`
	Root   string `json:"root"`
}

// TreeFor computes the tree descriptor for f within a request rooted at
// rootID, following the depth-0/depth-1/otherwise rules of §4.8 step 5.
func (f *File) TreeFor(rootID string) Tree {
	switch f.Depth {
	case 0:
		return Tree{Node: rootID, Root: rootID}
	case 1:
		return Tree{Node: f.Identity, Parent: rootID, Root: rootID}
	default:
		return Tree{Node: f.Identity, Parent: f.Parent, Root: rootID}
	}
}
