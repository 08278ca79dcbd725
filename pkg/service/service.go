// Package service implements the user-facing operations on top of the
// REST backend, the database API and object storage.
package service

import (
	"context"
	"strings"

	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/storage"
)

// Cache key prefixes
const (
	FeedKeyPrefix         = "home-feed-"
	ProfileKeyPrefix      = "profile-"
	ConversationKeyPrefix = "conversation-"
)

// FeedKey returns the cache key of a user's home feed
func FeedKey(userID string) string { return FeedKeyPrefix + userID }

// ProfileKey returns the cache key of a profile
func ProfileKey(userID string) string { return ProfileKeyPrefix + userID }

// ConversationKey returns the cache key of a conversation
func ConversationKey(id string) string { return ConversationKeyPrefix + id }

// Uploader stores images and returns their public URLs
type Uploader interface {
	UploadImage(ctx context.Context, folder, userID, source string) (*storage.UploadResult, error)
	Delete(ctx context.Context, keyOrURL string) error
}

// NotSignedInError is returned by operations that need a session
func NotSignedInError() *clierrors.CLIError {
	return clierrors.AuthError("You are not signed in").
		WithSuggestion("Run 'circle-cli auth login' first.")
}

func requireUser(userID string) error {
	if userID == "" {
		return NotSignedInError()
	}
	return nil
}

func idFromKey(key, prefix string) string {
	return strings.TrimPrefix(key, prefix)
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// discardUpload removes an image whose row was never written
func discardUpload(ctx context.Context, up Uploader, url string) {
	if err := up.Delete(context.WithoutCancel(ctx), url); err != nil {
		logger.Warn("Failed to remove orphaned upload", "url", url, "error", err)
	}
}
