package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SenderType string

const (
	SenderGuest    SenderType = "guest"
	SenderCustomer SenderType = "customer"
	SenderAdmin    SenderType = "admin"
)

// MessageState tags a message as locally originated (awaiting relay
// confirmation) or relay-confirmed.
type MessageState string

const (
	MessagePending   MessageState = "pending"
	MessageConfirmed MessageState = "confirmed"
)

// LocalIDPrefix marks client-generated correlation ids.
const LocalIDPrefix = "local-"

// Message is a single chat message. A pending message has an empty ID and a
// LocalID; confirmation replaces it with the relay-assigned ID and timestamp.
type Message struct {
	ID         string
	LocalID    string
	State      MessageState
	SessionID  string
	SenderType SenderType
	SenderID   *string
	SenderName string
	Text       string
	CreatedAt  time.Time
	ReadAt     *time.Time
}

// NewPendingMessage builds an optimistic message with a generated local id
// and a client-assigned timestamp. Returns nil if the text is empty after
// trimming.
func NewPendingMessage(sessionID string, sender SenderType, senderID *string, senderName, text string, now time.Time) *Message {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &Message{
		LocalID:    LocalIDPrefix + uuid.NewString(),
		State:      MessagePending,
		SessionID:  sessionID,
		SenderType: sender,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		CreatedAt:  now,
	}
}

func (m *Message) Pending() bool {
	return m.State == MessagePending
}

// OwnedBy reports whether the viewer authored the message. Admin messages
// are own when the admin id matches; guest/customer messages are own when
// the viewer is that participant.
func (m *Message) OwnedBy(viewerType SenderType, viewerID string) bool {
	if m.SenderType != viewerType {
		return false
	}
	if m.SenderID == nil {
		// Guests carry no sender id; the session itself identifies them.
		return viewerType == SenderGuest
	}
	return *m.SenderID == viewerID
}
