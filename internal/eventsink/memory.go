package eventsink

import (
	"context"
	"sync"
	"time"
)

// stream is one request's ordered record list and expiry.
type stream struct {
	records  [][]byte
	finished bool
	expires  time.Time
}

// Memory is the default in-process Backend, matching blobstore.Memory
// and queue.Memory in spirit: an append-only map of request id to
// ordered record slice.
type Memory struct {
	mu      sync.Mutex
	streams map[string]*stream
}

// NewMemory returns an empty in-memory event sink.
func NewMemory() *Memory {
	return &Memory{streams: map[string]*stream{}}
}

// AppendEvent implements Backend.
func (m *Memory) AppendEvent(_ context.Context, requestID string, serialized []byte, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(requestID)
	cp := make([]byte, len(serialized))
	copy(cp, serialized)
	s.records = append(s.records, cp)
	s.expires = deadline
	return nil
}

// Finalize implements Backend.
func (m *Memory) Finalize(_ context.Context, requestID string, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(requestID)
	if s.finished {
		return nil
	}
	s.records = append(s.records, append([]byte(nil), finLine...))
	s.finished = true
	s.expires = deadline
	return nil
}

func (m *Memory) get(requestID string) *stream {
	s, ok := m.streams[requestID]
	if !ok {
		s = &stream{}
		m.streams[requestID] = s
	}
	return s
}

// Records returns a copy of requestID's records so far, for tests.
func (m *Memory) Records(requestID string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[requestID]
	if !ok {
		return nil
	}
	out := make([][]byte, len(s.records))
	copy(out, s.records)
	return out
}

// Sweep drops any stream whose TTL has passed.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.streams {
		if !s.expires.IsZero() && now.After(s.expires) {
			delete(m.streams, id)
			removed++
		}
	}
	return removed
}
