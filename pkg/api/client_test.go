package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/circle/cli/pkg/client"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(client.New(srv.URL, 2*time.Second))
}

func TestGetUserProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/users/profile/u1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"success","data":{"user":{"id":"u1","username":"alice"},"connectionCount":3,"postCount":7}}`)
	})

	p, err := c.GetUserProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.User.Username)
	assert.Equal(t, 3, p.ConnectionCount)
	assert.Equal(t, 7, p.PostCount)
}

func TestGetUserProfileRequiresID(t *testing.T) {
	c := New(client.New("http://unused.test", time.Second))
	_, err := c.GetUserProfile(context.Background(), "")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
}

func TestErrorStatusInEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"error","message":"profile is private"}`)
	})

	_, err := c.GetUserProfile(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeBusiness))
	assert.Contains(t, err.Error(), "profile is private")
}

func TestNotFoundIsCategorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"status":"error","message":"Conversation not found"}`)
	})

	_, err := c.GetConversation(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, clierrors.IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Conversation not found", apiErr.Message)
}

func TestUnauthorizedIsSessionExpired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.GetConversation(context.Background(), "c1")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeSessionExpired))
}

func TestServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetConversation(context.Background(), "c1")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeServer))
}

func TestMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>oops</html>`)
	})

	_, err := c.GetConversation(context.Background(), "c1")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeInvalidFormat))
}

func TestGetConversation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations/c1", r.URL.Path)
		io.WriteString(w, `{"status":"success","data":{
			"id":"c1",
			"participants":[{"id":"u1","username":"alice"},{"id":"u2","username":"bob"}],
			"messages":[{"id":"m1","conversationId":"c1","senderId":"u2","content":"hi"}]
		}}`)
	})

	conv, err := c.GetConversation(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hi", conv.Messages[0].Content)
	assert.True(t, conv.HasParticipant("u1"))
	assert.False(t, conv.HasParticipant("u3"))

	peer, ok := conv.Peer("u1")
	require.True(t, ok)
	assert.Equal(t, "bob", peer.Username)
}

func TestDeleteConversationSendsUserID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/conversations/c1", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("userId"))
		io.WriteString(w, `{"status":"success","data":null}`)
	})

	require.NoError(t, c.DeleteConversation(context.Background(), "c1", "u1"))
}

func TestDeleteConversationRequiresUser(t *testing.T) {
	c := New(client.New("http://unused.test", time.Second))
	err := c.DeleteConversation(context.Background(), "c1", "")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
}

func TestSendMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/conversations/c1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"senderId":"u1","content":"hello"}`, string(body))
		io.WriteString(w, `{"status":"success","data":{"id":"m9","conversationId":"c1","senderId":"u1","content":"hello"}}`)
	})

	msg, err := c.SendMessage(context.Background(), "c1", "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m9", msg.ID)
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	c := New(client.New("http://unused.test", time.Second))
	_, err := c.SendMessage(context.Background(), "c1", "u1", "")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeValidation))
}
