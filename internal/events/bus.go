// internal/events/bus.go
package events

import (
	"sync"

	"go.uber.org/zap"

	"greymatter/internal/model"
)

// AllEvents subscribes to every event type.
const AllEvents model.EventType = "*"

// Publisher accepts events for distribution.
type Publisher interface {
	Publish(event model.Event)
}

// Bus manages event distribution
type Bus struct {
	subscribers map[model.EventType][]chan model.Event
	events      chan model.Event
	mutex       sync.RWMutex
	logger      *zap.Logger
	stopOnce    sync.Once
	stopped     bool
}

// NewBus creates a new event bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subscribers: make(map[model.EventType][]chan model.Event),
		events:      make(chan model.Event, 1000),
		logger:      logger.With(zap.String("component", "event-bus")),
	}
}

// Start distributes events until Stop is called.
func (b *Bus) Start() {
	for event := range b.events {
		b.distribute(event)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub)
		}
	}
	b.subscribers = make(map[model.EventType][]chan model.Event)
}

// Stop ends distribution and closes every subscriber channel.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		b.mutex.Lock()
		b.stopped = true
		close(b.events)
		b.mutex.Unlock()
	})
}

// Publish publishes an event without blocking
func (b *Bus) Publish(event model.Event) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if b.stopped {
		return
	}

	select {
	case b.events <- event:
	default:
		b.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// Subscribe subscribes to events of a specific type, or AllEvents.
func (b *Bus) Subscribe(eventType model.EventType) <-chan model.Event {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	subscriber := make(chan model.Event, 100)
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
	return subscriber
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (b *Bus) Unsubscribe(eventType model.EventType, ch <-chan model.Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	subs := b.subscribers[eventType]
	for i, sub := range subs {
		if sub == ch {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// distribute delivers an event to its subscribers. Slow subscribers miss
// events rather than block the bus.
func (b *Bus) distribute(event model.Event) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	targets := append([]chan model.Event{}, b.subscribers[event.Type]...)
	targets = append(targets, b.subscribers[AllEvents]...)

	for _, subscriber := range targets {
		select {
		case subscriber <- event:
		default:
		}
	}
}
