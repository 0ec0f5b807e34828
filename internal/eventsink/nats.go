package eventsink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/scanforge/filescand/pkg/log"
)

// natsConfig is the "nats"-kind backend's configuration: events are
// published to "<subjectPrefix>.<requestID>".
type natsConfig struct {
	Kind          string `json:"kind"`
	URL           string `json:"url"`
	SubjectPrefix string `json:"subject_prefix"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	CredsFile     string `json:"creds_file,omitempty"`
}

// NATS is a Backend that publishes each event (and the final FIN) as
// its own NATS message on a per-request subject, for operators that
// want the stream consumed by a downstream subscriber instead of
// polled.
type NATS struct {
	conn   *nats.Conn
	prefix string
}

func newNATSFromConfig(raw json.RawMessage) (*NATS, error) {
	var cfg natsConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("eventsink: decoding nats config: %w", err)
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "filescand.events"
	}

	opts := []nats.Option{nats.Name("filescand-eventsink")}
	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	} else if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("eventsink: connecting to nats: %w", err)
	}

	log.Infof("eventsink: nats backend publishing under %q", cfg.SubjectPrefix)
	return &NATS{conn: conn, prefix: cfg.SubjectPrefix}, nil
}

func (n *NATS) subject(requestID string) string {
	return n.prefix + "." + requestID
}

// AppendEvent implements Backend.
func (n *NATS) AppendEvent(_ context.Context, requestID string, serialized []byte, _ time.Time) error {
	return n.conn.Publish(n.subject(requestID), serialized)
}

// Finalize implements Backend.
func (n *NATS) Finalize(_ context.Context, requestID string, _ time.Time) error {
	return n.conn.Publish(n.subject(requestID), finLine)
}

// Close releases the underlying NATS connection.
func (n *NATS) Close() {
	n.conn.Close()
}
