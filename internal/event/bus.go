// Package event carries alert lifecycle events from the command handlers to
// the interested outbound components (kafka producer, websocket hub, webhook
// notifier, metrics).
package event

import (
	"sync"
	"time"

	"github.com/halcyonops/intel-console/internal/alert"
)

// Type identifies what happened to an alert.
type Type string

const (
	TypeCreated      Type = "alert.created"
	TypeUpdated      Type = "alert.updated"
	TypeAcknowledged Type = "alert.acknowledged"
	TypeResolved     Type = "alert.resolved"
	TypeEscalated    Type = "alert.escalated"
	TypeDeleted      Type = "alert.deleted"
)

// Event is a snapshot of an alert lifecycle change.
type Event struct {
	Type       Type           `json:"type"`
	AlertID    string         `json:"alert_id"`
	Name       string         `json:"name"`
	Severity   alert.Severity `json:"severity"`
	Status     alert.Status   `json:"status"`
	Source     string         `json:"source"`
	Actor      string         `json:"actor"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Handler receives published events. Handlers must not block; slow consumers
// should buffer internally.
type Handler func(Event)

// Bus is an in-process fan-out of lifecycle events.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all future events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
