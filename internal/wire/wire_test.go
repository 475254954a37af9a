package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

func TestNewEnvelopeWithoutPayload(t *testing.T) {
	env, err := NewEnvelope(EventNewCustomerSession, nil)
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"new_customer_session"}`, string(data))
}

func TestSavedMessageToDomain(t *testing.T) {
	frame := []byte(`{
		"savedMessage": {
			"id": "42",
			"sessionId": "sess-1",
			"senderType": "guest",
			"senderId": null,
			"text": "where is my order?",
			"clientTag": "local-abc",
			"createdAt": "2026-08-30T10:15:00Z"
		}
	}`)

	var payload NewMessagePayload
	require.NoError(t, json.Unmarshal(frame, &payload))

	msg := payload.SavedMessage.ToDomain()
	assert.Equal(t, "42", msg.ID)
	assert.Equal(t, "local-abc", msg.LocalID)
	assert.Equal(t, domain.MessageConfirmed, msg.State)
	assert.Equal(t, domain.SenderGuest, msg.SenderType)
	assert.Nil(t, msg.SenderID)
	assert.Nil(t, msg.ReadAt)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC), msg.CreatedAt)
}

func TestFromDomainRoundTripsClientTag(t *testing.T) {
	adminID := "admin-1"
	msg := &domain.Message{
		ID:         "7",
		LocalID:    "local-xyz",
		State:      domain.MessageConfirmed,
		SessionID:  "sess-1",
		SenderType: domain.SenderAdmin,
		SenderID:   &adminID,
		SenderName: "Support Team",
		Text:       "on it",
		CreatedAt:  time.Now().UTC(),
	}

	saved := FromDomain(msg)
	assert.Equal(t, "local-xyz", saved.ClientTag)

	back := saved.ToDomain()
	assert.Equal(t, msg.ID, back.ID)
	assert.Equal(t, msg.LocalID, back.LocalID)
	assert.Equal(t, msg.SenderName, back.SenderName)
}
