package service

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventStatusChanged   EventType = "status_changed"
	EventAdapterMissing  EventType = "adapter_missing"
	EventAdapterRestored EventType = "adapter_restored"
	EventSessionStarted  EventType = "session_started"
	EventSessionFinished EventType = "session_finished"
	EventArtifactCreated EventType = "artifact_created"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Publisher accepts events for delivery
type Publisher interface {
	Publish(event Event)
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Publish sends an event to all subscribers without blocking
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
