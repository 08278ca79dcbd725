package auth

import (
	"context"
	"time"

	"github.com/zfogg/circle/cli/pkg/credentials"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
)

// RefreshWindow is how close to expiry a token gets refreshed proactively
const RefreshWindow = time.Minute

// Refresher trades a refresh token for a new session
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

// SessionRecovery refreshes the persisted session when it expires
type SessionRecovery struct {
	refresher  Refresher
	maxRetries int
	retryDelay time.Duration
}

// NewSessionRecovery creates a new session recovery handler
func NewSessionRecovery(r Refresher) *SessionRecovery {
	return &SessionRecovery{
		refresher:  r,
		maxRetries: 3,
		retryDelay: 2 * time.Second,
	}
}

// Ensure returns usable credentials, refreshing them first when they are
// expired or about to expire. It returns nil, nil when nobody is signed in.
func (sr *SessionRecovery) Ensure(ctx context.Context) (*credentials.Credentials, error) {
	creds, err := credentials.Load()
	if err != nil {
		return nil, err
	}
	if creds == nil || creds.AccessToken == "" {
		return nil, nil
	}
	if !creds.ExpiresWithin(RefreshWindow) {
		return creds, nil
	}
	return sr.RecoverSession(ctx)
}

// RecoverSession refreshes the stored session and saves the result
func (sr *SessionRecovery) RecoverSession(ctx context.Context) (*credentials.Credentials, error) {
	logger.Debug("Attempting to recover session")

	creds, err := credentials.Load()
	if err != nil {
		return nil, err
	}
	if creds == nil || creds.RefreshToken == "" {
		return nil, clierrors.SessionExpiredError()
	}

	var lastErr error
	for attempt := 1; attempt <= sr.maxRetries; attempt++ {
		logger.Debug("Refreshing token", "attempt", attempt)

		session, err := sr.refresher.Refresh(ctx, creds.RefreshToken)
		if err == nil {
			next := session.Credentials()
			if next.Username == "" {
				next.Username = creds.Username
			}
			if err := credentials.Save(next); err != nil {
				logger.Error("Failed to save refreshed credentials", "error", err)
			}
			return next, nil
		}
		lastErr = err

		// A rejected refresh token will not succeed on retry
		if IsSessionError(err) {
			break
		}

		if attempt < sr.maxRetries {
			select {
			case <-ctx.Done():
				return nil, clierrors.CategorizeError(ctx.Err())
			case <-time.After(sr.retryDelay):
			}
		}
	}

	logger.Warn("Session recovery failed", "error", lastErr)
	return nil, clierrors.SessionExpiredError().WithCause(lastErr)
}

// IsSessionError checks if an error means the session is no longer valid
func IsSessionError(err error) bool {
	return clierrors.IsType(err, clierrors.ErrorTypeSessionExpired)
}
