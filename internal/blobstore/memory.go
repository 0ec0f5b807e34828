package blobstore

import (
	"context"
	"sync"
	"time"
)

// entry is one pointer's pending chunk queue and expiry.
type entry struct {
	chunks  [][]byte
	expires time.Time
}

// Memory is the default in-process Backend: a map of pointer to FIFO
// chunk queue, guarded by a mutex. Suitable for single-process testing
// and the reference scanner tests; production deployments with
// multiple worker processes use the S3-backed variant.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemory returns an empty in-memory Backend.
func NewMemory() *Memory {
	return &Memory{entries: map[string]*entry{}}
}

// Append implements Backend.
func (m *Memory) Append(_ context.Context, pointer string, chunk []byte, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[pointer]
	if !ok {
		e = &entry{}
		m.entries[pointer] = e
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	e.chunks = append(e.chunks, cp)
	e.expires = deadline
	return nil
}

// Drain implements Backend: pops every chunk for pointer and removes
// the entry, per §4.1's "reading is destructive".
func (m *Memory) Drain(_ context.Context, pointer string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[pointer]
	if !ok {
		return nil, nil
	}
	delete(m.entries, pointer)

	var total int
	for _, c := range e.chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range e.chunks {
		out = append(out, c...)
	}
	return out, nil
}

// Sweep drops any pointer whose TTL has already passed, called
// periodically from internal/maintenance.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for p, e := range m.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(m.entries, p)
			removed++
		}
	}
	return removed
}
