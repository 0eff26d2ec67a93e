/*
Package notify delivers best-effort real-time events.

PURPOSE:
  The engine emits "violation.detected" and "rating.updated" events to
  interested subscribers (dashboards, bots). Delivery is explicitly
  best-effort: a failed or dropped notification must never fail or roll
  back the data mutation that produced it. The engine logs and swallows
  every error from this package.

IMPLEMENTATIONS:
  - LogNotifier: writes events to the process log (default)
  - Broker:      buffered fan-out with non-blocking publish, suitable for
                 wiring a WebSocket layer on top
*/
package notify

import (
	"context"
	"log"
	"sync"
	"time"
)

// Event names emitted by the engine.
const (
	EventViolationDetected = "violation.detected"
	EventRatingUpdated     = "rating.updated"
)

// Event is one notification payload.
type Event struct {
	Name       string    `json:"name"`
	CompanyID  string    `json:"company_id"`
	EmployeeID string    `json:"employee_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier publishes events to subscribers. Publish must not block
// indefinitely and its errors are advisory only.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// =============================================================================
// LOG NOTIFIER
// =============================================================================

// LogNotifier writes events to the standard log. Never fails.
type LogNotifier struct{}

func (LogNotifier) Publish(_ context.Context, e Event) error {
	log.Printf("[Notify] %s company=%s employee=%s %s", e.Name, e.CompanyID, e.EmployeeID, e.Detail)
	return nil
}

// =============================================================================
// BROKER - Buffered in-process fan-out
// =============================================================================

// Broker fans events out to subscriber channels. Publish is non-blocking:
// when a subscriber's buffer is full the event is dropped for that
// subscriber, per the best-effort contract.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	size int
}

// NewBroker creates a broker whose subscriber channels buffer size events.
func NewBroker(size int) *Broker {
	if size <= 0 {
		size = 16
	}
	return &Broker{subs: make(map[chan Event]struct{}), size: size}
}

// Subscribe registers a new subscriber channel. Call the returned cancel
// function to unsubscribe and close the channel.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.size)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer room.
func (b *Broker) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber too slow; drop rather than block the engine.
		}
	}
	return nil
}
