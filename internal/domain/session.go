package domain

import (
	"fmt"
	"time"
)

type ParticipantKind string

const (
	ParticipantGuest    ParticipantKind = "guest"
	ParticipantCustomer ParticipantKind = "customer"
)

type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusResolved SessionStatus = "resolved"
	SessionStatusArchived SessionStatus = "archived"
)

// Session groups all messages between one guest/customer and support staff.
type Session struct {
	ID                string
	ParticipantKind   ParticipantKind
	ParticipantName   string
	Status            SessionStatus
	LastMessageText   string
	LastMessageSender string
	LastMessageTime   time.Time
	UnreadCount       int
	UpdatedAt         time.Time
}

func NewSession(id string, kind ParticipantKind, name string) *Session {
	return &Session{
		ID:              id,
		ParticipantKind: kind,
		ParticipantName: name,
		Status:          SessionStatusActive,
	}
}

// TransitionStatus validates a status change. Archived is terminal: a
// session never un-archives.
func (s *Session) TransitionStatus(next SessionStatus) error {
	if s.Status == SessionStatusArchived && next != SessionStatusArchived {
		return fmt.Errorf("session %s is archived and cannot transition to %s", s.ID, next)
	}
	switch next {
	case SessionStatusActive, SessionStatusResolved, SessionStatusArchived:
		s.Status = next
		return nil
	default:
		return fmt.Errorf("unknown session status %q", next)
	}
}

// Touch refreshes the denormalized list-rendering fields from a confirmed
// message.
func (s *Session) Touch(text, sender string, at time.Time) {
	s.LastMessageText = text
	s.LastMessageSender = sender
	s.LastMessageTime = at
	s.UpdatedAt = at
}
