// Package api talks to the REST backend that serves profiles and
// conversations. Every response is wrapped in a {status, data, message}
// envelope.
package api

import (
	"context"

	"github.com/go-resty/resty/v2"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/models"
)

// Client is a REST backend client
type Client struct {
	http *resty.Client
}

// New wraps an HTTP client whose base URL points at the backend
func New(httpClient *resty.Client) *Client {
	return &Client{http: httpClient}
}

// SendMessageRequest is the body of a new chat message
type SendMessageRequest struct {
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
}

// GetUserProfile fetches the aggregated profile of a user
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, clierrors.ValidationError("user id", "is required")
	}
	logger.Debug("Fetching user profile", "user_id", userID)

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", userID).
		Get("/users/profile/{id}")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	var profile models.UserProfile
	if err := decode(resp, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetConversation fetches a conversation with its participants and messages
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if conversationID == "" {
		return nil, clierrors.ValidationError("conversation id", "is required")
	}
	logger.Debug("Fetching conversation", "conversation_id", conversationID)

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		Get("/conversations/{id}")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	var conv models.Conversation
	if err := decode(resp, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteConversation deletes a conversation on behalf of userID. The
// backend checks that the user is a participant.
func (c *Client) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" {
		return clierrors.ValidationError("conversation id", "is required")
	}
	if userID == "" {
		return clierrors.ValidationError("user id", "is required")
	}
	logger.Debug("Deleting conversation", "conversation_id", conversationID, "user_id", userID)

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetQueryParam("userId", userID).
		Delete("/conversations/{id}")
	if err := CheckResponse(resp, err); err != nil {
		return err
	}
	return decode(resp, nil)
}

// SendMessage posts a message to a conversation
func (c *Client) SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	if conversationID == "" {
		return nil, clierrors.ValidationError("conversation id", "is required")
	}
	if content == "" {
		return nil, clierrors.ValidationError("message", "cannot be empty")
	}
	logger.Debug("Sending message", "conversation_id", conversationID)

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetBody(SendMessageRequest{SenderID: senderID, Content: content}).
		Post("/conversations/{id}/messages")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	var msg models.Message
	if err := decode(resp, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
