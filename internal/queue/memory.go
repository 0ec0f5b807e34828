package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// heapItem is one entry in the priority heap, ordered by deadline.
type heapItem struct {
	entry Entry
	index int
}

type entryHeap []*heapItem

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	return h[i].entry.Deadline.Before(h[j].entry.Deadline)
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Memory is a priority-ordered in-process Backend: the earliest
// deadline always pops first, matching §4.2's "sorted set" contract.
type Memory struct {
	mu sync.Mutex
	h  entryHeap
}

// NewMemory returns an empty in-memory queue.
func NewMemory() *Memory {
	m := &Memory{}
	heap.Init(&m.h)
	return m
}

// Push enqueues a pending request. Not part of the Backend interface —
// producers are out of scope (§6) — but used by tests.
func (m *Memory) Push(pointer string, deadline time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	heap.Push(&m.h, &heapItem{entry: Entry{Pointer: pointer, Deadline: deadline}})
}

// PopNext implements Backend.
func (m *Memory) PopNext(_ context.Context) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.h.Len() == 0 {
		return Entry{}, false, nil
	}
	item := heap.Pop(&m.h).(*heapItem)
	return item.entry, true, nil
}

// Len reports the number of pending entries, used by internal/metrics
// for queue-depth reporting.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.Len()
}
