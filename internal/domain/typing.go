package domain

import "time"

// TypingIndicator records that a peer is composing in a session. It is
// created on start_typing and destroyed on stop_typing or a local 1.5s
// inactivity fallback.
type TypingIndicator struct {
	SessionID string
	PeerName  string
	UpdatedAt time.Time
}
