package repository

import (
	"time"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

type MessageModel struct {
	ID         string     `gorm:"primaryKey;column:id"`
	SessionID  string     `gorm:"column:session_id;index:idx_session_created"`
	SenderType string     `gorm:"column:sender_type"`
	SenderID   *string    `gorm:"column:sender_id"`
	SenderName string     `gorm:"column:sender_name"`
	Text       string     `gorm:"column:text"`
	MessageAt  time.Time  `gorm:"column:message_at;index:idx_session_created"`
	ReadAt     *time.Time `gorm:"column:read_at;index"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at"`
}

func (MessageModel) TableName() string { return "messages" }

type SessionModel struct {
	ID                string    `gorm:"primaryKey;column:id"`
	ParticipantKind   string    `gorm:"column:participant_kind"`
	ParticipantName   string    `gorm:"column:participant_name"`
	Status            string    `gorm:"column:status;index"`
	LastMessageText   string    `gorm:"column:last_message_text"`
	LastMessageSender string    `gorm:"column:last_message_sender"`
	LastMessageTime   time.Time `gorm:"column:last_message_time;index"`
	UnreadCount       int       `gorm:"column:unread_count"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (SessionModel) TableName() string { return "sessions" }

// Conversion functions
func MessageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}
	return &domain.Message{
		ID:         m.ID,
		State:      domain.MessageConfirmed,
		SessionID:  m.SessionID,
		SenderType: domain.SenderType(m.SenderType),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Text:       m.Text,
		CreatedAt:  m.MessageAt,
		ReadAt:     m.ReadAt,
	}
}

func MessageDomainToModel(msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}
	return &MessageModel{
		ID:         msg.ID,
		SessionID:  msg.SessionID,
		SenderType: string(msg.SenderType),
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       msg.Text,
		MessageAt:  msg.CreatedAt,
		ReadAt:     msg.ReadAt,
	}
}

func SessionModelToDomain(m *SessionModel) *domain.Session {
	if m == nil {
		return nil
	}
	return &domain.Session{
		ID:                m.ID,
		ParticipantKind:   domain.ParticipantKind(m.ParticipantKind),
		ParticipantName:   m.ParticipantName,
		Status:            domain.SessionStatus(m.Status),
		LastMessageText:   m.LastMessageText,
		LastMessageSender: m.LastMessageSender,
		LastMessageTime:   m.LastMessageTime,
		UnreadCount:       m.UnreadCount,
		UpdatedAt:         m.UpdatedAt,
	}
}

func SessionDomainToModel(s *domain.Session) *SessionModel {
	if s == nil {
		return nil
	}
	return &SessionModel{
		ID:                s.ID,
		ParticipantKind:   string(s.ParticipantKind),
		ParticipantName:   s.ParticipantName,
		Status:            string(s.Status),
		LastMessageText:   s.LastMessageText,
		LastMessageSender: s.LastMessageSender,
		LastMessageTime:   s.LastMessageTime,
		UnreadCount:       s.UnreadCount,
	}
}
