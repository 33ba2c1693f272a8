// Package memory records run events in-memory for tests and dry runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// Event is one recorded publish. Data holds the JSON encoding that would
// have been sent to a broker.
type Event struct {
	ID      string
	Type    string
	Payload any
	Data    []byte
}

// Publisher implements digest.Publisher without a broker.
type Publisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes later publishes return err. A nil err restores success.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Publish encodes payload as JSON and records it under a sequential ID.
func (p *Publisher) Publish(_ context.Context, eventType string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	id := fmt.Sprintf("memory-%d", len(p.events)+1)
	p.events = append(p.events, Event{ID: id, Type: eventType, Payload: payload, Data: data})
	return id, nil
}

// Events returns a copy of the recorded events, optionally filtered by type.
func (p *Publisher) Events(types ...string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, 0, len(p.events))
	for _, e := range p.events {
		if len(types) == 0 || slices.Contains(types, e.Type) {
			out = append(out, e)
		}
	}
	return out
}
