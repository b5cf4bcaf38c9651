// Package events publishes display-number slot lifecycle events so that
// kitchen and pickup screens can follow number changes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	EventSlotAllocated = "slot.allocated"
	EventSlotReleased  = "slot.released"
	EventSlotReclaimed = "slot.reclaimed"
)

// SlotEvent is the payload published for every slot transition.
type SlotEvent struct {
	EventType     string     `json:"event_type"`
	RestaurantID  int64      `json:"restaurant_id"`
	DisplayNumber int        `json:"display_number"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// Publisher delivers a raw payload on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// NoopPublisher drops everything. It is used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }

// NATSPublisher publishes on a core NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("display-order-numbers"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	return p.conn.Publish(subject, payload)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// SlotEmitter encodes slot events and publishes them under a subject prefix,
// e.g. orders.display_numbers.allocated.
type SlotEmitter struct {
	pub    Publisher
	prefix string
}

// NewSlotEmitter builds an emitter. A nil publisher drops all events.
func NewSlotEmitter(pub Publisher, prefix string) *SlotEmitter {
	if pub == nil {
		pub = NoopPublisher{}
	}
	return &SlotEmitter{pub: pub, prefix: prefix}
}

// Subject returns the subject an event type is published on.
func (e *SlotEmitter) Subject(eventType string) string {
	switch eventType {
	case EventSlotAllocated:
		return e.prefix + ".allocated"
	case EventSlotReleased:
		return e.prefix + ".released"
	case EventSlotReclaimed:
		return e.prefix + ".reclaimed"
	}
	return e.prefix + "." + eventType
}

// Emit publishes ev, stamping OccurredAt when unset.
func (e *SlotEmitter) Emit(ctx context.Context, ev SlotEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode slot event: %w", err)
	}
	if err := e.pub.Publish(ctx, e.Subject(ev.EventType), payload); err != nil {
		return fmt.Errorf("publish %s: %w", ev.EventType, err)
	}
	return nil
}
