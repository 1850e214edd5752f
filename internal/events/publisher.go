// Package events publishes retention pass summaries to NATS JetStream so
// operators can watch checkpoint activity without scraping logs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// PassEvent describes one completed (or failed) retention pass.
type PassEvent struct {
	ID        string    `json:"id"`
	Pass      string    `json:"pass"` // save|load|reconcile
	Outcome   string    `json:"outcome"`
	Written   int       `json:"written,omitempty"`
	Read      int       `json:"read,omitempty"`
	Deleted   int       `json:"deleted,omitempty"`
	Skipped   int       `json:"skipped,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher manages the NATS connection and JetStream context for pass events.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewPublisher connects to NATS and prepares a JetStream context.
func NewPublisher(url, subject string) (*Publisher, error) {
	if subject == "" {
		return nil, fmt.Errorf("event subject is required")
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS pass-event publisher initialized", "url", url, "subject", subject)

	return &Publisher{conn: conn, js: js, subject: subject}, nil
}

// Publish sends a pass event. Publishing is best-effort observability:
// callers log failures and carry on with the pass result.
func (p *Publisher) Publish(event *PassEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("Published retention pass event",
		"pass", event.Pass,
		"outcome", event.Outcome,
		"id", event.ID)

	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
