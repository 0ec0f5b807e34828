// Package blobstore implements the blob I/O adapter (C1, §4.1): a
// keyed append-only byte queue with a TTL per pointer, pluggable by
// backend kind.
package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Backend is the blob store contract of §4.1/§6.
type Backend interface {
	// Append appends chunk to pointer's byte queue and sets its TTL to
	// deadline, atomically.
	Append(ctx context.Context, pointer string, chunk []byte, deadline time.Time) error
	// Drain pops every chunk for pointer in FIFO order and returns
	// their concatenation. Reading is destructive.
	Drain(ctx context.Context, pointer string) ([]byte, error)
}

// rawConfig is the backend-selection envelope: a "kind" discriminator
// plus backend-specific fields.
type rawConfig struct {
	Kind string `json:"kind"`
}

// Init constructs the configured Backend from a raw JSON configuration
// blob, dispatching on its "kind" field. "memory" (the default when
// cfg is empty) and "s3" are supported.
func Init(cfg json.RawMessage) (Backend, error) {
	if len(cfg) == 0 {
		return NewMemory(), nil
	}
	var rc rawConfig
	if err := json.Unmarshal(cfg, &rc); err != nil {
		return nil, fmt.Errorf("blobstore: decoding config: %w", err)
	}
	switch rc.Kind {
	case "", "memory":
		return NewMemory(), nil
	case "s3":
		return newS3FromConfig(cfg)
	default:
		return nil, fmt.Errorf("blobstore: unknown backend kind %q", rc.Kind)
	}
}
