// Package analytics is the outbound event channel for product analytics.
// Everything here is fire-and-forget: events that can't be delivered are
// dropped, never retried, and never block the request path.
package analytics

import (
	"sync"
	"time"
)

// Event is one analytics event ready for capture.
type Event struct {
	Name       string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Sink accepts events for delivery to an analytics collector. Implementations
// are swapped at construction time (real capture client in production, memory
// sink in tests, nop when analytics is disabled) rather than branching on the
// environment at call sites.
type Sink interface {
	Enqueue(Event)
	Close() error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Enqueue(Event) {}
func (NopSink) Close() error  { return nil }

// MemorySink records events for test assertions.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) Enqueue(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *MemorySink) Close() error { return nil }

// Events returns a copy of everything enqueued so far.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Named returns the recorded events with the given name.
func (m *MemorySink) Named(name string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
