// Package api is the thin client for the storefront's REST collaborators:
// session listing, history retrieval, and status transitions. These are
// plain request/response endpoints outside the realtime core.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/wire"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type sessionDTO struct {
	ID                string    `json:"id"`
	ParticipantKind   string    `json:"participantKind"`
	ParticipantName   string    `json:"participantName"`
	Status            string    `json:"status"`
	LastMessageText   string    `json:"lastMessageSummary"`
	LastMessageSender string    `json:"lastMessageSender"`
	UpdatedAt         time.Time `json:"updatedAt"`
	UnreadCount       int       `json:"unreadCount"`
}

func (d sessionDTO) toDomain() *domain.Session {
	return &domain.Session{
		ID:                d.ID,
		ParticipantKind:   domain.ParticipantKind(d.ParticipantKind),
		ParticipantName:   d.ParticipantName,
		Status:            domain.SessionStatus(d.Status),
		LastMessageText:   d.LastMessageText,
		LastMessageSender: d.LastMessageSender,
		LastMessageTime:   d.UpdatedAt,
		UnreadCount:       d.UnreadCount,
		UpdatedAt:         d.UpdatedAt,
	}
}

// ListSessions fetches the admin's session list.
func (c *Client) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	var dtos []sessionDTO
	if err := c.get(ctx, "/support/sessions", &dtos); err != nil {
		return nil, err
	}
	sessions := make([]*domain.Session, len(dtos))
	for i, d := range dtos {
		sessions[i] = d.toDomain()
	}
	return sessions, nil
}

// GetOwnSession resolves the guest/customer's own session and its history.
func (c *Client) GetOwnSession(ctx context.Context) (*domain.Session, []*domain.Message, error) {
	var payload struct {
		Session  sessionDTO          `json:"session"`
		Messages []wire.SavedMessage `json:"messages"`
	}
	if err := c.get(ctx, "/support/session", &payload); err != nil {
		return nil, nil, err
	}
	messages := make([]*domain.Message, len(payload.Messages))
	for i, m := range payload.Messages {
		messages[i] = m.ToDomain()
	}
	return payload.Session.toDomain(), messages, nil
}

// GetHistory fetches a session's message history, oldest first.
func (c *Client) GetHistory(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	var dtos []wire.SavedMessage
	if err := c.get(ctx, "/support/sessions/"+sessionID+"/messages", &dtos); err != nil {
		return nil, err
	}
	messages := make([]*domain.Message, len(dtos))
	for i, m := range dtos {
		messages[i] = m.ToDomain()
	}
	return messages, nil
}

// UpdateStatus applies a session workflow transition: resolve, archive, or
// close.
func (c *Client) UpdateStatus(ctx context.Context, sessionID, action string) error {
	url := fmt.Sprintf("%s/support/sessions/%s/%s", c.baseURL, sessionID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s session %s: %w", action, sessionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%s session %s: unexpected status %d", action, sessionID, resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", path, err)
	}
	return nil
}
