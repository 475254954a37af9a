// Package wire defines the JSON contract spoken with the chat relay.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

// Event names, client to server.
const (
	EventCustomerChatMessage    = "customer_chat_message"
	EventAdminToCustomerMessage = "admin_to_customer_message"
	EventMessagesRead           = "messages_read"
)

// Event names, server to client.
const (
	EventNewCustomerMessage = "new_customer_message"
	EventNewAdminMessage    = "new_admin_message"
	EventNewCustomerSession = "new_customer_session"
)

// Bidirectional presence events.
const (
	EventStartTyping = "start_typing"
	EventStopTyping  = "stop_typing"
)

// Envelope frames every payload on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// CustomerMessagePayload is sent by a guest/customer on their own session.
// ClientTag correlates the eventual relay confirmation with the optimistic
// local entry; relays that do not echo it fall back to FIFO matching.
type CustomerMessagePayload struct {
	Text      string `json:"text"`
	ClientTag string `json:"clientTag,omitempty"`
}

// AdminMessagePayload is an admin reply into a specific session.
type AdminMessagePayload struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
	ClientTag string `json:"clientTag,omitempty"`
}

type TypingPayload struct {
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName,omitempty"`
}

type MessagesReadPayload struct {
	SessionID  string   `json:"sessionId"`
	MessageIDs []string `json:"messageIds"`
}

// SavedMessage is the relay's confirmed form of a message, broadcast inside
// new_customer_message / new_admin_message frames.
type SavedMessage struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"sessionId"`
	SenderType string     `json:"senderType"`
	SenderID   *string    `json:"senderId"`
	SenderName string     `json:"senderName,omitempty"`
	Text       string     `json:"text"`
	ClientTag  string     `json:"clientTag,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
}

type NewMessagePayload struct {
	SavedMessage SavedMessage `json:"savedMessage"`
}

// ToDomain converts a relay confirmation into a confirmed domain message.
func (m SavedMessage) ToDomain() *domain.Message {
	return &domain.Message{
		ID:         m.ID,
		LocalID:    m.ClientTag,
		State:      domain.MessageConfirmed,
		SessionID:  m.SessionID,
		SenderType: domain.SenderType(m.SenderType),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
		ReadAt:     m.ReadAt,
	}
}

// FromDomain converts a confirmed domain message back to its wire form.
func FromDomain(msg *domain.Message) SavedMessage {
	return SavedMessage{
		ID:         msg.ID,
		SessionID:  msg.SessionID,
		SenderType: string(msg.SenderType),
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       msg.Text,
		ClientTag:  msg.LocalID,
		CreatedAt:  msg.CreatedAt,
		ReadAt:     msg.ReadAt,
	}
}
