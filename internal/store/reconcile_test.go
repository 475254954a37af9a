package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

func pendingMsg(localID string, sender domain.SenderType, text string, at time.Time) *domain.Message {
	return &domain.Message{
		LocalID:    localID,
		State:      domain.MessagePending,
		SessionID:  "sess-1",
		SenderType: sender,
		Text:       text,
		CreatedAt:  at,
	}
}

func confirmedMsg(id, localID string, sender domain.SenderType, text string, at time.Time) *domain.Message {
	return &domain.Message{
		ID:         id,
		LocalID:    localID,
		State:      domain.MessageConfirmed,
		SessionID:  "sess-1",
		SenderType: sender,
		Text:       text,
		CreatedAt:  at,
	}
}

func TestReconcileReplacesPendingByClientTag(t *testing.T) {
	now := time.Now()
	list := []*domain.Message{
		pendingMsg("local-a", domain.SenderGuest, "first", now),
		pendingMsg("local-b", domain.SenderGuest, "second", now.Add(time.Second)),
	}

	incoming := confirmedMsg("42", "local-b", domain.SenderGuest, "second", now.Add(2*time.Second))

	out, replaced, changed := Reconcile(list, incoming)
	require.True(t, changed)
	assert.Equal(t, "local-b", replaced)
	require.Len(t, out, 2)
	assert.Equal(t, "local-a", out[0].LocalID)
	assert.Equal(t, "42", out[1].ID)

	// Input slice untouched
	assert.Len(t, list, 2)
	assert.True(t, list[1].Pending())
}

func TestReconcileFIFOFallback(t *testing.T) {
	now := time.Now()
	list := []*domain.Message{
		pendingMsg("local-1", domain.SenderGuest, "first", now),
		pendingMsg("local-2", domain.SenderGuest, "second", now.Add(time.Second)),
	}

	// No clientTag echoed; the oldest pending entry from the same sender
	// role is the one replaced.
	incoming := confirmedMsg("42", "", domain.SenderGuest, "first", now.Add(2*time.Second))

	out, replaced, changed := Reconcile(list, incoming)
	require.True(t, changed)
	assert.Equal(t, "local-1", replaced)
	require.Len(t, out, 2)
	assert.Equal(t, "local-2", out[0].LocalID)
	assert.Equal(t, "42", out[1].ID)
}

func TestReconcileIgnoresDuplicateDurableID(t *testing.T) {
	now := time.Now()
	list := []*domain.Message{
		confirmedMsg("42", "", domain.SenderGuest, "hello", now),
	}

	dup := confirmedMsg("42", "", domain.SenderGuest, "hello", now)

	out, replaced, changed := Reconcile(list, dup)
	assert.False(t, changed)
	assert.Empty(t, replaced)
	assert.Len(t, out, 1)
}

func TestReconcileDoesNotMatchOtherSenderRole(t *testing.T) {
	now := time.Now()
	list := []*domain.Message{
		pendingMsg("local-admin", domain.SenderAdmin, "on it", now),
	}

	incoming := confirmedMsg("7", "", domain.SenderGuest, "thanks", now.Add(time.Second))

	out, replaced, changed := Reconcile(list, incoming)
	require.True(t, changed)
	assert.Empty(t, replaced)
	require.Len(t, out, 2)
	assert.True(t, out[0].Pending())
}

func TestReconcileAppendsWhenNothingPending(t *testing.T) {
	now := time.Now()
	list := []*domain.Message{
		confirmedMsg("1", "", domain.SenderAdmin, "hi there", now),
	}

	incoming := confirmedMsg("2", "", domain.SenderGuest, "hello", now.Add(time.Second))

	out, replaced, changed := Reconcile(list, incoming)
	require.True(t, changed)
	assert.Empty(t, replaced)
	assert.Len(t, out, 2)
}

func TestRemoveLocal(t *testing.T) {
	now := time.Now()
	list := []*domain.Message{
		pendingMsg("local-1", domain.SenderGuest, "first", now),
		confirmedMsg("5", "", domain.SenderAdmin, "reply", now),
	}

	out, removed := RemoveLocal(list, "local-1")
	assert.True(t, removed)
	require.Len(t, out, 1)
	assert.Equal(t, "5", out[0].ID)

	out, removed = RemoveLocal(out, "local-missing")
	assert.False(t, removed)
	assert.Len(t, out, 1)
}

func TestRemoveLocalNeverDropsConfirmed(t *testing.T) {
	now := time.Now()
	list := []*domain.Message{
		confirmedMsg("5", "local-1", domain.SenderGuest, "confirmed already", now),
	}

	out, removed := RemoveLocal(list, "local-1")
	assert.False(t, removed)
	assert.Len(t, out, 1)
}

func TestSortByCreatedAt(t *testing.T) {
	now := time.Now()
	list := []*domain.Message{
		confirmedMsg("2", "", domain.SenderAdmin, "later", now.Add(time.Minute)),
		confirmedMsg("1", "", domain.SenderGuest, "earlier", now),
	}

	out := SortByCreatedAt(list)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "2", out[1].ID)

	// Original order preserved
	assert.Equal(t, "2", list[0].ID)
}
