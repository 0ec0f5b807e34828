// Package queue implements the queue adapter (C2, §4.2): a
// priority-ordered pending set of (root_pointer, expire_at) entries,
// pluggable by backend kind like internal/blobstore.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one pending request popped from the queue.
type Entry struct {
	Pointer  string
	Deadline time.Time
}

// Backend is the queue contract of §4.2/§6.
type Backend interface {
	// PopNext removes and returns the earliest-deadline pending entry,
	// or ok=false if the queue is empty. Non-blocking.
	PopNext(ctx context.Context) (entry Entry, ok bool, err error)
}

type rawConfig struct {
	Kind string `json:"kind"`
}

// Init constructs the configured Backend, dispatching on "kind" like
// blobstore.Init. "memory" (default) and "nats" are supported.
func Init(cfg json.RawMessage) (Backend, error) {
	if len(cfg) == 0 {
		return NewMemory(), nil
	}
	var rc rawConfig
	if err := json.Unmarshal(cfg, &rc); err != nil {
		return nil, fmt.Errorf("queue: decoding config: %w", err)
	}
	switch rc.Kind {
	case "", "memory":
		return NewMemory(), nil
	case "nats":
		return newNATSFromConfig(cfg)
	default:
		return nil, fmt.Errorf("queue: unknown backend kind %q", rc.Kind)
	}
}
