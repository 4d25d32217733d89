// Package events relays domain events to every connected client. Delivery is
// best effort: there is no ordering, retry or acknowledgement.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event types
const (
	PickupCreated  = "pickup:created"
	PickupUpdated  = "pickup:updated"
	WasteLogged    = "waste:logged"
	UserRegistered = "user:registered"
	DriverUpdated  = "driver:updated"
)

// Event is the envelope sent to clients. UserID and DriverID let clients
// filter what concerns them.
type Event struct {
	Type      string    `json:"event"`
	Data      any       `json:"data"`
	UserID    string    `json:"userID,omitempty"`
	DriverID  string    `json:"driverID,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Sink receives encoded events. The websocket hub is the main one.
type Sink interface {
	Broadcast(message []byte)
}

// Relay carries encoded events between server instances.
type Relay interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, func(), error)
}

type Bus struct {
	mu    sync.RWMutex
	sinks []Sink
	relay Relay
}

var _ Publisher = (*Bus)(nil)

// NewBus creates a bus; relay may be nil for a single instance.
func NewBus(relay Relay) *Bus {
	return &Bus{relay: relay}
}

func (b *Bus) Attach(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Type, err)
	}

	if b.relay != nil {
		err := b.relay.Publish(ctx, payload)
		if err == nil {
			// Delivered back to us by Run like to every other instance.
			return nil
		}
		log.Warn().Err(err).Str("event", e.Type).Msg("relay publish failed, delivering locally")
	}
	b.fanOut(payload)
	return nil
}

// Run forwards relayed events to the local sinks until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	if b.relay == nil {
		<-ctx.Done()
		return nil
	}

	messages, cleanup, err := b.relay.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe relay: %w", err)
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.fanOut(msg)
		}
	}
}

func (b *Bus) fanOut(payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.sinks {
		s.Broadcast(payload)
	}
}

// Emit publishes and only logs failures; callers never fail a request
// because a notification could not be sent.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Error().Err(err).Str("event", e.Type).Msg("publish event")
	}
}
