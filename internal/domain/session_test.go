package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionStatus(t *testing.T) {
	sess := NewSession("sess-1", ParticipantCustomer, "Alice")
	assert.Equal(t, SessionStatusActive, sess.Status)

	require.NoError(t, sess.TransitionStatus(SessionStatusResolved))
	assert.Equal(t, SessionStatusResolved, sess.Status)

	// Resolved sessions reopen on new activity
	require.NoError(t, sess.TransitionStatus(SessionStatusActive))

	require.NoError(t, sess.TransitionStatus(SessionStatusArchived))

	// Archived is terminal
	err := sess.TransitionStatus(SessionStatusActive)
	require.Error(t, err)
	assert.Equal(t, SessionStatusArchived, sess.Status)

	// Re-archiving an archived session is a no-op, not an error
	require.NoError(t, sess.TransitionStatus(SessionStatusArchived))
}

func TestTransitionStatusRejectsUnknown(t *testing.T) {
	sess := NewSession("sess-1", ParticipantGuest, "Guest")
	err := sess.TransitionStatus(SessionStatus("reopened"))
	require.Error(t, err)
	assert.Equal(t, SessionStatusActive, sess.Status)
}

func TestTouch(t *testing.T) {
	sess := NewSession("sess-1", ParticipantGuest, "Guest")
	at := time.Now()

	sess.Touch("my package arrived damaged", "Guest", at)

	assert.Equal(t, "my package arrived damaged", sess.LastMessageText)
	assert.Equal(t, "Guest", sess.LastMessageSender)
	assert.Equal(t, at, sess.LastMessageTime)
	assert.Equal(t, at, sess.UpdatedAt)
}
