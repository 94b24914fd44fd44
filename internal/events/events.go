// Package events publishes mediation decisions and feedback to NATS so
// other services (analytics, moderation dashboards) can follow a room.
//
// Subjects have the form:
//
//	{prefix}.{room_id}.decision
//	{prefix}.{room_id}.feedback
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "mediation"

// Event types.
const (
	TypeDecision = "decision"
	TypeFeedback = "feedback"
)

// Event is one published message.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id,omitempty"`
	DecisionID string    `json:"decision_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards events.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

// NATSPublisher publishes events as JSON on core NATS subjects.
type NATSPublisher struct {
	nc       *nats.Conn
	prefix   string
	ownsConn bool
	logger   *zap.Logger
}

// NewNATSPublisher wraps an existing connection. The caller keeps
// ownership of nc.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// Connect dials url and returns a publisher that closes the connection on
// Close.
func Connect(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("mediatord"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := NewNATSPublisher(nc, prefix, logger)
	p.ownsConn = true
	return p, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := Subject(p.prefix, e.RoomID, e.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("published event", zap.String("subject", subject), zap.String("event.id", e.ID))
	return nil
}

// Close drains the connection when the publisher owns it.
func (p *NATSPublisher) Close() error {
	if !p.ownsConn {
		return nil
	}
	return p.nc.Drain()
}

var subjectEscaper = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_", "\n", "_")

// Subject builds the subject for an event. Room IDs are escaped so they
// always form a single token.
func Subject(prefix, roomID, eventType string) string {
	if roomID == "" {
		roomID = "_"
	}
	return prefix + "." + subjectEscaper.Replace(roomID) + "." + eventType
}
