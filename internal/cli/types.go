package cli

import "time"

// Mode represents the CLI operation mode
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeHeadless    Mode = "headless"
)

// Request represents a JSON request in headless mode
type Request struct {
	ID      string                 `json:"id,omitempty"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a JSON response in headless mode
type Response struct {
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Event represents a real-time event in headless mode
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// SessionInfo represents session information for responses
type SessionInfo struct {
	ID              string    `json:"id"`
	ParticipantKind string    `json:"participant_kind"`
	ParticipantName string    `json:"participant_name"`
	Status          string    `json:"status"`
	UnreadCount     int       `json:"unread_count"`
	LastMessageText string    `json:"last_message_text,omitempty"`
	LastMessageTime time.Time `json:"last_message_time,omitempty"`
}

// MessageInfo represents message information for responses
type MessageInfo struct {
	ID         string     `json:"id,omitempty"`
	LocalID    string     `json:"local_id,omitempty"`
	State      string     `json:"state"`
	SessionID  string     `json:"session_id"`
	SenderType string     `json:"sender_type"`
	SenderName string     `json:"sender_name,omitempty"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

// ConnectionStatus represents connection status for responses
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Status    string `json:"status"`
}
