package eventsink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ndjsonConfig is the "ndjson"-kind backend's configuration.
type ndjsonConfig struct {
	Kind string `json:"kind"`
	Dir  string `json:"dir"`
}

// NDJSON writes each request's stream to <dir>/<requestID>.ndjson, one
// record per line, for operators who want to tail a file.
type NDJSON struct {
	dir string
	mu  sync.Mutex
}

func newNDJSONFromConfig(raw json.RawMessage) (*NDJSON, error) {
	var cfg ndjsonConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("eventsink: decoding ndjson config: %w", err)
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("eventsink: ndjson backend requires dir")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("eventsink: creating ndjson dir: %w", err)
	}
	return &NDJSON{dir: cfg.Dir}, nil
}

func (n *NDJSON) path(requestID string) string {
	return filepath.Join(n.dir, requestID+".ndjson")
}

func (n *NDJSON) append(requestID string, line []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	f, err := os.OpenFile(n.path(requestID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return err
	}
	_, err = f.Write([]byte("\n"))
	return err
}

// AppendEvent implements Backend. The deadline is not separately
// enforced here; file lifetime is managed by operator-level log
// rotation rather than a per-file TTL primitive.
func (n *NDJSON) AppendEvent(_ context.Context, requestID string, serialized []byte, _ time.Time) error {
	return n.append(requestID, serialized)
}

// Finalize implements Backend.
func (n *NDJSON) Finalize(_ context.Context, requestID string, _ time.Time) error {
	return n.append(requestID, finLine)
}
