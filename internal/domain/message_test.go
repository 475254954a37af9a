package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPendingMessage(t *testing.T) {
	now := time.Now()
	msg := NewPendingMessage("sess-1", SenderGuest, nil, "Guest", "  hello  ", now)

	require.NotNil(t, msg)
	assert.True(t, msg.Pending())
	assert.Empty(t, msg.ID)
	assert.True(t, strings.HasPrefix(msg.LocalID, LocalIDPrefix))
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, now, msg.CreatedAt)
}

func TestNewPendingMessageRejectsEmptyText(t *testing.T) {
	assert.Nil(t, NewPendingMessage("sess-1", SenderGuest, nil, "Guest", "   ", time.Now()))
	assert.Nil(t, NewPendingMessage("sess-1", SenderGuest, nil, "Guest", "", time.Now()))
}

func TestNewPendingMessageLocalIDsAreUnique(t *testing.T) {
	a := NewPendingMessage("sess-1", SenderGuest, nil, "Guest", "one", time.Now())
	b := NewPendingMessage("sess-1", SenderGuest, nil, "Guest", "two", time.Now())
	assert.NotEqual(t, a.LocalID, b.LocalID)
}

func TestOwnedBy(t *testing.T) {
	adminID := "admin-1"
	custID := "cust-9"

	guestMsg := &Message{SenderType: SenderGuest}
	adminMsg := &Message{SenderType: SenderAdmin, SenderID: &adminID}
	custMsg := &Message{SenderType: SenderCustomer, SenderID: &custID}

	// Guest viewers own guest messages on their session
	assert.True(t, guestMsg.OwnedBy(SenderGuest, ""))
	assert.False(t, guestMsg.OwnedBy(SenderAdmin, "admin-1"))

	// Admins own only messages carrying their id
	assert.True(t, adminMsg.OwnedBy(SenderAdmin, "admin-1"))
	assert.False(t, adminMsg.OwnedBy(SenderAdmin, "admin-2"))
	assert.False(t, adminMsg.OwnedBy(SenderGuest, ""))

	// Customers match on id
	assert.True(t, custMsg.OwnedBy(SenderCustomer, "cust-9"))
	assert.False(t, custMsg.OwnedBy(SenderCustomer, "cust-1"))
}
