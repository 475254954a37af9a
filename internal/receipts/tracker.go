// Package receipts emits a read notification exactly once per unread,
// not-own message that scrolls into the viewport.
package receipts

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

// VisibilityObserver abstracts viewport detection so the tracker can be
// driven by a real intersection observer in the surface or a fake in tests.
// Implementations report an element once it reaches at least half
// visibility, batching ids that became visible in the same observation
// callback.
type VisibilityObserver interface {
	Observe(messageID string)
	Unobserve(messageID string)
	// Dispose releases every watch. A disposed observer never fires again.
	Dispose()
}

// ObserverFactory builds an observer that invokes onVisible with each batch
// of message ids crossing the visibility threshold.
type ObserverFactory func(onVisible func(messageIDs []string)) VisibilityObserver

// Notifier delivers the batched read notification, typically an emit of
// messages_read on the relay.
type Notifier func(sessionID string, messageIDs []string) error

// Tracker watches rendered messages for one viewer. Sync must be called on
// every message-list change; it disposes the stale observer before
// attaching a new one so watches never leak onto unmounted content.
type Tracker struct {
	viewerType domain.SenderType
	viewerID   string
	factory    ObserverFactory
	notify     Notifier
	logger     zerolog.Logger

	mu        sync.Mutex
	observer  VisibilityObserver
	sessionID string
	watched   map[string]bool
}

func NewTracker(viewerType domain.SenderType, viewerID string, factory ObserverFactory, notify Notifier, logger zerolog.Logger) *Tracker {
	return &Tracker{
		viewerType: viewerType,
		viewerID:   viewerID,
		factory:    factory,
		notify:     notify,
		logger:     logger,
		watched:    make(map[string]bool),
	}
}

// Sync re-evaluates the watch set against the currently rendered list. A
// message becomes watched when it is confirmed, unread, and not authored by
// the viewer.
func (t *Tracker) Sync(sessionID string, messages []*domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.observer != nil {
		t.observer.Dispose()
	}
	t.observer = t.factory(func(ids []string) { t.onVisible(ids) })
	t.sessionID = sessionID
	t.watched = make(map[string]bool)

	for _, m := range messages {
		if m.Pending() || m.ReadAt != nil {
			continue
		}
		if m.OwnedBy(t.viewerType, t.viewerID) {
			continue
		}
		t.watched[m.ID] = true
		t.observer.Observe(m.ID)
	}
}

// Close disposes the active observer, for surface unmount.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.observer != nil {
		t.observer.Dispose()
		t.observer = nil
	}
	t.watched = make(map[string]bool)
}

// Watching reports whether a message id is currently observed. Exposed for
// surfaces that restyle unread messages.
func (t *Tracker) Watching(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watched[messageID]
}

func (t *Tracker) onVisible(ids []string) {
	t.mu.Lock()
	batch := make([]string, 0, len(ids))
	for _, id := range ids {
		if !t.watched[id] {
			continue
		}
		delete(t.watched, id)
		if t.observer != nil {
			t.observer.Unobserve(id)
		}
		batch = append(batch, id)
	}
	sessionID := t.sessionID
	t.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	// A failed notification leaves the messages unread; the next Sync
	// naturally re-attempts if they are still visible and still unread.
	if err := t.notify(sessionID, batch); err != nil {
		t.logger.Warn().Err(err).Str("session_id", sessionID).Int("count", len(batch)).Msg("read notification failed")
	}
}
