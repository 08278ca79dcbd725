// Package auth signs users in against the hosted auth service and keeps
// the persisted session fresh.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/json-iterator/go"
	"github.com/zfogg/circle/cli/pkg/credentials"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
)

// User is the auth service's view of an account
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Username returns the username stored in user metadata
func (u User) Username() string {
	if s, ok := u.UserMetadata["username"].(string); ok {
		return s
	}
	return ""
}

// Session is a token grant
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Expiry returns when the access token stops being accepted
func (s *Session) Expiry() time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	if claims, err := ParseClaims(s.AccessToken); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
}

// Credentials converts the session into its persisted form
func (s *Session) Credentials() *credentials.Credentials {
	return &credentials.Credentials{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.Expiry(),
		UserID:       s.User.ID,
		Username:     s.User.Username(),
		Email:        s.User.Email,
	}
}

type authErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (b authErrorBody) text() string {
	for _, s := range []string{b.ErrorDescription, b.Msg, b.Message, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Client calls the auth service
type Client struct {
	http   *resty.Client
	apiKey string
}

// New wraps an HTTP client whose base URL points at the auth service
func New(httpClient *resty.Client, apiKey string) *Client {
	httpClient.SetHeader("apikey", apiKey)
	return &Client{http: httpClient, apiKey: apiKey}
}

// SignIn exchanges email and password for a session
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if email == "" {
		return nil, clierrors.ValidationError("email", "is required")
	}
	if password == "" {
		return nil, clierrors.ValidationError("password", "is required")
	}
	logger.Debug("Signing in", "email", email)

	var session Session
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&session).
		Post("/token")
	if err := check(resp, err); err != nil {
		if isBadRequest(err) {
			return nil, clierrors.AuthError("Invalid email or password").WithCause(err)
		}
		return nil, err
	}
	return &session, nil
}

// Refresh trades a refresh token for a new session
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, clierrors.SessionExpiredError()
	}

	var session Session
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&session).
		Post("/token")
	if err := check(resp, err); err != nil {
		if isBadRequest(err) {
			return nil, clierrors.SessionExpiredError().WithCause(err)
		}
		return nil, err
	}
	return &session, nil
}

// SignOut revokes the session behind accessToken
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		Post("/logout")
	return check(resp, err)
}

// GetUser returns the account behind accessToken
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&user).
		Get("/user")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateMetadata merges data into the account's user metadata
func (c *Client) UpdateMetadata(ctx context.Context, accessToken string, data map[string]interface{}) (*User, error) {
	var user User
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetBody(map[string]interface{}{"data": data}).
		SetResult(&user).
		Put("/user")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &user, nil
}

func isBadRequest(err error) bool {
	var cliErr *clierrors.CLIError
	return errors.As(err, &cliErr) && cliErr.StatusCode == http.StatusBadRequest
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return clierrors.CategorizeError(err)
	}
	if resp.IsSuccess() {
		return nil
	}

	status := resp.StatusCode()
	var body authErrorBody
	_ = json.Unmarshal(resp.Body(), &body)
	msg := body.text()
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized:
		return clierrors.SessionExpiredError().WithStatus(status)
	case status == http.StatusForbidden:
		return clierrors.AuthorizationError(msg).WithStatus(status)
	case status == http.StatusTooManyRequests:
		return clierrors.BusinessError(msg).
			WithSuggestion("Too many attempts. Wait a minute and try again.").
			WithStatus(status)
	case status >= 500:
		return clierrors.ServerError().WithStatus(status)
	default:
		return clierrors.BusinessError(msg).WithStatus(status)
	}
}
