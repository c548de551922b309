// Package events publishes domain events so other services (notification
// fan-out, dashboards) can react to grading progress without polling us.
package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultSubject is the NATS subject batch completion events are published on.
const DefaultSubject = "gradeflow.batches.completed"

// BatchCompletedEvent announces that every submission of a batch reached a
// terminal status.
type BatchCompletedEvent struct {
	BatchID       string           `json:"batch_id"`
	GradingItemID int64            `json:"grading_item_id"`
	Final         map[int64]string `json:"final"`
	CompletedAt   time.Time        `json:"completed_at"`
}

// Publisher emits events over NATS. A nil connection turns every publish
// into a no-op, so callers never need to guard.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewPublisher constructs an event publisher. Pass a nil connection to
// disable publishing.
func NewPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

// BatchCompleted publishes a batch completion event. Publish failures are
// logged, not propagated; events are best-effort.
func (p *Publisher) BatchCompleted(event BatchCompletedEvent) {
	if p == nil || p.conn == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("batch_id", event.BatchID).Msg("failed to encode batch completed event")
		return
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("batch_id", event.BatchID).Msg("failed to publish batch completed event")
		return
	}

	p.logger.Debug().Str("batch_id", event.BatchID).Msg("batch completed event published")
}
