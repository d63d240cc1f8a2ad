package notify

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject signal lifecycle events publish to
// when the caller doesn't override it (§6.1 of the expanded spec).
const DefaultSubject = "signals.notify"

// Bus decouples notification dispatch from the hot path: the emitter and
// fast tracker publish onto a subject and a separate subscriber goroutine
// drains it into the Notifier, so a slow or unreachable webhook never
// blocks the 100 ms loop (§9 "Notifier decoupling").
type Bus struct {
	conn    *nats.Conn
	subject string
}

// NewBus connects to a NATS server. A connection failure is non-fatal to
// the caller; it returns a nil-safe Bus whose Publish becomes a no-op so
// the rest of the system degrades gracefully when no broker is
// configured.
func NewBus(url, subject string) (*Bus, error) {
	if url == "" {
		return &Bus{}, nil
	}
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url, nats.MaxReconnects(-1), nats.ReconnectWait(2))
	if err != nil {
		return nil, fmt.Errorf("connect to notification bus: %w", err)
	}
	return &Bus{conn: conn, subject: subject}, nil
}

// Publish enqueues msg for asynchronous delivery. A publish failure is
// logged, never propagated: closure persistence must not block on the
// notifier (§9).
func (b *Bus) Publish(msg Message) {
	if b == nil || b.conn == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("⚠️  failed to marshal notification for bus: %v", err)
		return
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		log.Printf("⚠️  failed to publish notification to bus: %v", err)
	}
}

// Subscribe starts a queue-group subscriber that drains published
// messages into handle. Returns an unsubscribe function.
func (b *Bus) Subscribe(queueGroup string, handle func(Message)) (func(), error) {
	if b == nil || b.conn == nil {
		return func() {}, nil
	}

	sub, err := b.conn.QueueSubscribe(b.subject, queueGroup, func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Printf("⚠️  failed to decode bus notification: %v", err)
			return
		}
		handle(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to notification bus: %w", err)
	}

	return func() { _ = sub.Unsubscribe() }, nil
}

// Close drains and closes the underlying connection.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	b.conn.Close()
}
