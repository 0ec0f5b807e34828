package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/scanforge/filescand/pkg/log"
)

// natsConfig is the "nats"-kind backend's configuration.
type natsConfig struct {
	Kind          string `json:"kind"`
	URL           string `json:"url"`
	Stream        string `json:"stream"`
	Subject       string `json:"subject"`
	Consumer      string `json:"consumer"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	CredsFile     string `json:"creds_file,omitempty"`
}

// natsEntryPayload is the wire shape of a single queue message body.
type natsEntryPayload struct {
	Pointer  string `json:"pointer"`
	Deadline int64  `json:"deadline"`
}

// NATS is a Backend backed by a JetStream consumer: each pending
// request is one durable message, with the expiry carried in the
// message body rather than a native TTL, since JetStream's own
// per-message expiry is stream-wide, not per-entry.
type NATS struct {
	conn     *nats.Conn
	consumer jetstream.Consumer
}

func newNATSFromConfig(raw json.RawMessage) (*NATS, error) {
	var cfg natsConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("queue: decoding nats config: %w", err)
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Stream == "" || cfg.Subject == "" {
		return nil, fmt.Errorf("queue: nats backend requires stream and subject")
	}

	opts := []nats.Option{nats.Name("filescand-queue")}
	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	} else if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("queue: connecting to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: creating jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := js.Stream(ctx, cfg.Stream)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: resolving stream %q: %w", cfg.Stream, err)
	}

	consumerName := cfg.Consumer
	if consumerName == "" {
		consumerName = "filescand-workers"
	}
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: cfg.Subject,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: creating consumer %q: %w", consumerName, err)
	}

	log.Infof("queue: nats backend consuming %q on stream %q", cfg.Subject, cfg.Stream)
	return &NATS{conn: conn, consumer: consumer}, nil
}

// PopNext implements Backend: fetches at most one pending message,
// acknowledges it, and surfaces its pointer/deadline. A message whose
// carried deadline has already passed is acked and skipped rather than
// handed to a worker that would just discard it immediately.
//
// Messages come back in stream order; they are not reordered by
// deadline. A call waits up to 200ms for a message to arrive.
func (n *NATS) PopNext(ctx context.Context) (Entry, bool, error) {
	msgs, err := n.consumer.Fetch(1, jetstream.FetchMaxWait(200*time.Millisecond))
	if err != nil {
		return Entry{}, false, nil
	}
	for msg := range msgs.Messages() {
		var payload natsEntryPayload
		if err := json.Unmarshal(msg.Data(), &payload); err != nil {
			log.Warnf("queue: dropping malformed nats message: %v", err)
			_ = msg.Ack()
			continue
		}
		_ = msg.Ack()
		deadline := time.Unix(payload.Deadline, 0)
		if !deadline.After(time.Now()) {
			log.Debugf("queue: skipping expired request %s", payload.Pointer)
			continue
		}
		return Entry{
			Pointer:  payload.Pointer,
			Deadline: deadline,
		}, true, nil
	}
	if err := msgs.Error(); err != nil && err != context.DeadlineExceeded {
		return Entry{}, false, err
	}
	return Entry{}, false, nil
}

// Publish enqueues one pending request, used by tests and by producer
// tooling that sits outside the engine's normative scope (§6).
func (n *NATS) Publish(ctx context.Context, subject, pointer string, deadline time.Time) error {
	payload, err := json.Marshal(natsEntryPayload{
		Pointer:  pointer,
		Deadline: deadline.Unix(),
	})
	if err != nil {
		return err
	}
	_, err = n.conn.Request(subject, payload, time.Second)
	if err == nats.ErrNoResponders {
		return n.conn.Publish(subject, payload)
	}
	return err
}

// Close releases the underlying NATS connection.
func (n *NATS) Close() {
	n.conn.Close()
}
