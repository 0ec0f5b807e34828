// Package eventsink implements the event sink (C3, §4.3): an
// append-only, ordered per-request event stream terminated by the FIN
// sentinel, pluggable by backend kind like internal/blobstore and
// internal/queue.
package eventsink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scanforge/filescand/internal/format"
)

// Backend is the event-stream contract of §4.3/§6.
type Backend interface {
	// AppendEvent appends serialized to requestID's ordered stream and
	// sets the stream's TTL to deadline.
	AppendEvent(ctx context.Context, requestID string, serialized []byte, deadline time.Time) error
	// Finalize appends the FIN sentinel and sets the stream's TTL.
	// Must be called exactly once per handled request (§4.3, §8).
	Finalize(ctx context.Context, requestID string, deadline time.Time) error
}

type rawConfig struct {
	Kind string `json:"kind"`
}

// Init constructs the configured Backend, dispatching on "kind".
// "memory" (default) and "nats" are supported; "ndjson" writes each
// request's stream to a file under a configured directory, useful for
// local operator inspection.
func Init(cfg json.RawMessage) (Backend, error) {
	if len(cfg) == 0 {
		return NewMemory(), nil
	}
	var rc rawConfig
	if err := json.Unmarshal(cfg, &rc); err != nil {
		return nil, fmt.Errorf("eventsink: decoding config: %w", err)
	}
	switch rc.Kind {
	case "", "memory":
		return NewMemory(), nil
	case "ndjson":
		return newNDJSONFromConfig(cfg)
	case "nats":
		return newNATSFromConfig(cfg)
	default:
		return nil, fmt.Errorf("eventsink: unknown backend kind %q", rc.Kind)
	}
}

// finLine is the literal FIN record, per §4.3/§6.
var finLine = []byte(format.FIN)
