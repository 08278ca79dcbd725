package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/circle/cli/pkg/config"
	"github.com/zfogg/circle/cli/pkg/credentials"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/service"
	"github.com/zfogg/circle/cli/pkg/storage"
)

type nopUploader struct{}

func (nopUploader) UploadImage(ctx context.Context, folder, userID, source string) (*storage.UploadResult, error) {
	return &storage.UploadResult{URL: "https://cdn.test/" + folder + userID}, nil
}

func (nopUploader) Delete(ctx context.Context, keyOrURL string) error { return nil }

type backend struct {
	mu    sync.Mutex
	paths []string
	auths []string
}

func (b *backend) seen(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.paths {
		if p == path {
			n++
		}
	}
	return n
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.paths = append(b.paths, r.Method+" "+r.URL.Path)
	b.auths = append(b.auths, r.Header.Get("Authorization"))
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/auth/token":
		exp := time.Now().Add(time.Hour).Unix()
		io.WriteString(w, `{"access_token":"tok-1","refresh_token":"ref-1","expires_in":3600,"expires_at":`+
			strconv.FormatInt(exp, 10)+`,"user":{"id":"u1","email":"a@example.com","user_metadata":{"username":"alice"}}}`)
	case r.URL.Path == "/auth/logout":
		w.WriteHeader(http.StatusNoContent)
	case strings.HasPrefix(r.URL.Path, "/rest/post"):
		io.WriteString(w, `[{"id":"p1","user_id":"u1","content":"hello"}]`)
	default:
		io.WriteString(w, `[]`)
	}
}

func setup(t *testing.T) (*backend, Settings) {
	t.Helper()
	require.NoError(t, config.Init(filepath.Join(t.TempDir(), "config.toml")))

	b := &backend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	return b, Settings{
		APIBaseURL:      srv.URL + "/api",
		DBURL:           srv.URL + "/rest",
		DBAPIKey:        "anon",
		AuthURL:         srv.URL + "/auth",
		Timeout:         2 * time.Second,
		CacheTTL:        time.Minute,
		FeedInterval:    time.Hour,
		ProfileInterval: time.Hour,
		ChatInterval:    time.Hour,
	}
}

func TestSignedOutServicesRefuse(t *testing.T) {
	_, s := setup(t)
	a, err := New(context.Background(), s, nil, WithUploader(nopUploader{}))
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.UserID())
	_, err = a.Services().Feed.Home(context.Background(), 0)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeAuth))
}

func TestSignInBindsServices(t *testing.T) {
	b, s := setup(t)
	a, err := New(context.Background(), s, nil, WithUploader(nopUploader{}))
	require.NoError(t, err)
	defer a.Close()

	creds, err := a.SignIn(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", creds.UserID)
	assert.Equal(t, "u1", a.UserID())

	stored, err := credentials.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "tok-1", stored.AccessToken)

	posts, err := a.Services().Feed.Home(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	_, err = a.Services().Feed.Home(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, b.seen("GET /rest/post"))

	b.mu.Lock()
	last := b.auths[len(b.auths)-1]
	b.mu.Unlock()
	assert.Equal(t, "Bearer tok-1", last)

	m := a.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("feed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("feed")))
}

func TestSignOutClearsEverything(t *testing.T) {
	b, s := setup(t)
	a, err := New(context.Background(), s, nil, WithUploader(nopUploader{}))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.SignIn(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	_, err = a.Services().Feed.Home(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, a.Caches().Feed.Len())

	require.NoError(t, a.SignOut(context.Background()))

	assert.Equal(t, 1, b.seen("POST /auth/logout"))
	assert.Equal(t, 0, a.Caches().Feed.Len())
	assert.Nil(t, a.Credentials())

	stored, err := credentials.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = a.Services().Feed.Home(context.Background(), 0)
	assert.ErrorAs(t, err, new(*clierrors.CLIError))
	_, ok := a.Caches().Feed.Peek(service.FeedKey("u1"))
	assert.False(t, ok, "previous user's feed is gone")
}

func TestOpenUsesStoredSession(t *testing.T) {
	b, s := setup(t)
	require.NoError(t, credentials.Save(&credentials.Credentials{
		AccessToken:  "stored",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour),
		UserID:       "u7",
	}))

	a, err := Open(context.Background(), s, WithUploader(nopUploader{}))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "u7", a.UserID())
	assert.Zero(t, b.seen("POST /auth/token"), "a fresh session is not refreshed")
}

func TestOpenSignedOut(t *testing.T) {
	_, s := setup(t)
	a, err := Open(context.Background(), s, WithUploader(nopUploader{}))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Credentials())
}
