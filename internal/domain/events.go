package domain

import (
	"sync"
	"time"
)

type EventType string

const (
	EventTypeConnectionStatus EventType = "connection.status"
	EventTypeMessagePending   EventType = "message.pending"
	EventTypeMessageConfirmed EventType = "message.confirmed"
	EventTypeMessagesRead     EventType = "messages.read"
	EventTypeSessionUpdated   EventType = "session.updated"
	EventTypeSessionsChanged  EventType = "sessions.changed"
	EventTypePeerTyping       EventType = "peer.typing"
)

type Event interface {
	Type() EventType
	Timestamp() time.Time
}

type ConnectionStatusEvent struct {
	Connected bool
	Reason    string
	EventTime time.Time
}

func (e ConnectionStatusEvent) Type() EventType      { return EventTypeConnectionStatus }
func (e ConnectionStatusEvent) Timestamp() time.Time { return e.EventTime }

// MessagePendingEvent fires when an optimistic message is appended locally.
type MessagePendingEvent struct {
	Message   *Message
	EventTime time.Time
}

func (e MessagePendingEvent) Type() EventType      { return EventTypeMessagePending }
func (e MessagePendingEvent) Timestamp() time.Time { return e.EventTime }

// MessageConfirmedEvent fires when a relay-confirmed message is merged into
// a local collection, whether or not it superseded a pending entry.
type MessageConfirmedEvent struct {
	Message       *Message
	ReplacedLocal string
	EventTime     time.Time
}

func (e MessageConfirmedEvent) Type() EventType      { return EventTypeMessageConfirmed }
func (e MessageConfirmedEvent) Timestamp() time.Time { return e.EventTime }

type MessagesReadEvent struct {
	SessionID  string
	MessageIDs []string
	EventTime  time.Time
}

func (e MessagesReadEvent) Type() EventType      { return EventTypeMessagesRead }
func (e MessagesReadEvent) Timestamp() time.Time { return e.EventTime }

// SessionUpdatedEvent fires when a session's denormalized summary changes.
type SessionUpdatedEvent struct {
	Session   *Session
	EventTime time.Time
}

func (e SessionUpdatedEvent) Type() EventType      { return EventTypeSessionUpdated }
func (e SessionUpdatedEvent) Timestamp() time.Time { return e.EventTime }

// SessionsChangedEvent signals that the session list should be refetched.
type SessionsChangedEvent struct {
	EventTime time.Time
}

func (e SessionsChangedEvent) Type() EventType      { return EventTypeSessionsChanged }
func (e SessionsChangedEvent) Timestamp() time.Time { return e.EventTime }

type PeerTypingEvent struct {
	SessionID string
	PeerName  string
	Typing    bool
	EventTime time.Time
}

func (e PeerTypingEvent) Type() EventType      { return EventTypePeerTyping }
func (e PeerTypingEvent) Timestamp() time.Time { return e.EventTime }

type EventBus interface {
	Publish(event Event)
	Subscribe(eventTypes []EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
}

// SimpleEventBus is a basic in-memory implementation of EventBus
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]subscription
}

type subscription struct {
	ch         chan Event
	eventTypes map[EventType]bool
}

func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		subscribers: make(map[<-chan Event]subscription),
	}
}

func (b *SimpleEventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.eventTypes) == 0 || sub.eventTypes[event.Type()] {
			select {
			case sub.ch <- event:
			default:
				// Channel full, skip this subscriber
			}
		}
	}
}

func (b *SimpleEventBus) Subscribe(eventTypes []EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100)
	typeMap := make(map[EventType]bool)
	for _, t := range eventTypes {
		typeMap[t] = true
	}

	b.subscribers[ch] = subscription{
		ch:         ch,
		eventTypes: typeMap,
	}

	return ch
}

func (b *SimpleEventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[ch]; ok {
		close(sub.ch)
		delete(b.subscribers, ch)
	}
}
