package repository

import (
	"context"
	"time"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

// MessageRepository caches relay-confirmed messages locally. Pending
// messages never reach the cache; they live only in the session store.
type MessageRepository interface {
	CreateOrIgnore(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	GetBySession(ctx context.Context, sessionID string, limit, offset int) ([]*domain.Message, error)
	GetBySessionSince(ctx context.Context, sessionID string, since time.Time, limit int) ([]*domain.Message, error)
	MarkRead(ctx context.Context, ids []string, at time.Time) error
	Search(ctx context.Context, query string, limit int) ([]*domain.Message, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

type SessionRepository interface {
	Upsert(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetAll(ctx context.Context, limit, offset int) ([]*domain.Session, error)
	UpdateLastMessage(ctx context.Context, id, text, sender string, timestamp time.Time) error
	UpdateUnreadCount(ctx context.Context, id string, count int) error
	IncrementUnreadCount(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status domain.SessionStatus) error
	Delete(ctx context.Context, id string) error
}
