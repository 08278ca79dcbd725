// Package app is the session container. It owns the HTTP clients, the
// caches and every service for the signed-in user, and tears them down
// on sign-out.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zfogg/circle/cli/pkg/api"
	"github.com/zfogg/circle/cli/pkg/auth"
	"github.com/zfogg/circle/cli/pkg/cache"
	"github.com/zfogg/circle/cli/pkg/client"
	"github.com/zfogg/circle/cli/pkg/config"
	"github.com/zfogg/circle/cli/pkg/credentials"
	"github.com/zfogg/circle/cli/pkg/db"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/metrics"
	"github.com/zfogg/circle/cli/pkg/models"
	"github.com/zfogg/circle/cli/pkg/resource"
	"github.com/zfogg/circle/cli/pkg/service"
	"github.com/zfogg/circle/cli/pkg/storage"
)

// Settings are the endpoints and timings the container is built from
type Settings struct {
	APIBaseURL      string
	DBURL           string
	DBAPIKey        string
	AuthURL         string
	Timeout         time.Duration
	CacheTTL        time.Duration
	FeedInterval    time.Duration
	ProfileInterval time.Duration
	ChatInterval    time.Duration
	Storage         storage.Options
}

// SettingsFromConfig reads Settings from the loaded configuration
func SettingsFromConfig() Settings {
	return Settings{
		APIBaseURL:      config.GetString("api.base_url"),
		DBURL:           config.GetString("db.url"),
		DBAPIKey:        config.GetString("db.api_key"),
		AuthURL:         config.GetString("auth.url"),
		Timeout:         config.GetDuration("api.timeout"),
		CacheTTL:        config.GetDuration("cache.ttl"),
		FeedInterval:    config.GetDuration("poll.feed_interval"),
		ProfileInterval: config.GetDuration("poll.profile_interval"),
		ChatInterval:    config.GetDuration("poll.chat_interval"),
		Storage: storage.Options{
			Bucket:    config.GetString("storage.bucket"),
			Region:    config.GetString("storage.region"),
			Endpoint:  config.GetString("storage.endpoint"),
			PublicURL: config.GetString("storage.public_url"),
			AccessKey: config.GetString("storage.access_key"),
			SecretKey: config.GetString("storage.secret_key"),
		},
	}
}

// Caches are the injected caches, one per payload type
type Caches struct {
	Feed          *cache.Cache[[]models.Post]
	Profiles      *cache.Cache[*models.UserProfile]
	Conversations *cache.Cache[*models.Conversation]
	Lookups       *cache.Cache[*service.Lookups]
}

// Clear empties every cache; results still in flight are discarded
func (c Caches) Clear() {
	c.Feed.Clear()
	c.Profiles.Clear()
	c.Conversations.Clear()
	c.Lookups.Clear()
}

// Services are the operations available to commands
type Services struct {
	Feed        *service.FeedService
	Posts       *service.PostService
	Connections *service.ConnectionService
	Chat        *service.ChatService
	Profiles    *service.ProfileService
	Lookups     *service.LookupService
}

func (s *Services) close() {
	if s == nil {
		return
	}
	s.Feed.Close()
	s.Chat.Close()
	s.Profiles.Close()
	s.Lookups.Close()
}

// Option customizes the container
type Option func(*App)

// WithUploader replaces the object storage uploader
func WithUploader(u service.Uploader) Option {
	return func(a *App) { a.uploader = u }
}

// App is the session container
type App struct {
	settings Settings
	metrics  *metrics.Metrics
	caches   Caches

	apiHTTP  *resty.Client
	dbHTTP   *resty.Client
	api      *api.Client
	db       *db.Client
	auth     *auth.Client
	uploader service.Uploader

	mu       sync.RWMutex
	creds    *credentials.Credentials
	services *Services
}

// New builds the container. creds may be nil when nobody is signed in.
func New(ctx context.Context, s Settings, creds *credentials.Credentials, opts ...Option) (*App, error) {
	m := metrics.New()
	a := &App{
		settings: s,
		metrics:  m,
		caches: Caches{
			Feed:          cache.New[[]models.Post](s.CacheTTL, cache.WithMetrics(m.ForCache("feed"))),
			Profiles:      cache.New[*models.UserProfile](s.CacheTTL, cache.WithMetrics(m.ForCache("profile"))),
			Conversations: cache.New[*models.Conversation](s.CacheTTL, cache.WithMetrics(m.ForCache("conversation"))),
			Lookups:       cache.New[*service.Lookups](s.CacheTTL, cache.WithMetrics(m.ForCache("lookups"))),
		},
		apiHTTP: client.New(s.APIBaseURL, s.Timeout),
		dbHTTP:  client.New(s.DBURL, s.Timeout),
	}
	a.api = api.New(a.apiHTTP)
	a.db = db.New(a.dbHTTP, s.DBAPIKey)
	a.auth = auth.New(client.New(s.AuthURL, s.Timeout), s.DBAPIKey)

	for _, opt := range opts {
		opt(a)
	}

	if a.uploader == nil {
		u, err := storage.NewS3Uploader(ctx, s.Storage)
		if err != nil {
			return nil, err
		}
		a.uploader = u
	}

	a.bind(creds)
	return a, nil
}

// Open loads the persisted session, refreshing it when it is about to
// expire, and builds the container around it.
func Open(ctx context.Context, s Settings, opts ...Option) (*App, error) {
	a, err := New(ctx, s, nil, opts...)
	if err != nil {
		return nil, err
	}

	creds, err := auth.NewSessionRecovery(a.auth).Ensure(ctx)
	if err != nil {
		if !auth.IsSessionError(err) {
			return nil, err
		}
		logger.Warn("Stored session is no longer valid", "error", err)
		return a, nil
	}
	if creds != nil {
		a.reset()
		a.bind(creds)
	}
	return a, nil
}

// Services returns the services bound to the current session
func (a *App) Services() *Services {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.services
}

// Credentials returns the current session, or nil
func (a *App) Credentials() *credentials.Credentials {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.creds
}

// UserID returns the signed-in user's id, or ""
func (a *App) UserID() string {
	if c := a.Credentials(); c != nil {
		return c.UserID
	}
	return ""
}

// Caches returns the container's caches
func (a *App) Caches() Caches {
	return a.caches
}

// Metrics returns the container's metrics
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Auth returns the auth service client
func (a *App) Auth() *auth.Client {
	return a.auth
}

// SignIn authenticates, persists the session and rebinds every service
func (a *App) SignIn(ctx context.Context, email, password string) (*credentials.Credentials, error) {
	session, err := a.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	creds := session.Credentials()
	if err := credentials.Save(creds); err != nil {
		return nil, err
	}

	a.reset()
	a.bind(creds)
	logger.Info("Signed in", "user_id", creds.UserID)
	return creds, nil
}

// SignOut revokes the session, deletes it from disk, clears every cache
// and stops every poller.
func (a *App) SignOut(ctx context.Context) error {
	if c := a.Credentials(); c != nil && c.AccessToken != "" {
		if err := a.auth.SignOut(ctx, c.AccessToken); err != nil {
			logger.Warn("Remote sign-out failed", "error", err)
		}
	}

	if err := credentials.Delete(); err != nil {
		return err
	}

	a.reset()
	a.bind(nil)
	logger.Info("Signed out")
	return nil
}

// Close stops every poller
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.services.close()
}

func (a *App) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.services.close()
	a.caches.Clear()
}

func (a *App) bind(creds *credentials.Credentials) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.creds = creds
	userID, token := "", ""
	if creds != nil {
		userID, token = creds.UserID, creds.AccessToken
	}

	if token != "" {
		client.SetAuthToken(a.apiHTTP, token)
		client.SetAuthToken(a.dbHTTP, token)
	} else {
		client.ClearAuthToken(a.apiHTTP)
		client.ClearAuthToken(a.dbHTTP)
	}

	s := a.settings
	observe := func(name string) resource.Option {
		return resource.WithObserver(a.metrics.ForResource(name))
	}

	lookups := service.NewLookupService(a.db, a.caches.Lookups, observe("lookups"))
	feed := service.NewFeedService(a.db, userID, a.caches.Feed, s.FeedInterval, observe("home-feed"))
	a.services = &Services{
		Feed:        feed,
		Posts:       service.NewPostService(a.db, a.uploader, userID, feed),
		Connections: service.NewConnectionService(a.db, userID, feed),
		Chat:        service.NewChatService(a.db, a.api, userID, a.caches.Conversations, s.ChatInterval, observe("conversation")),
		Profiles: service.NewProfileService(service.ProfileDeps{
			DB:          a.db,
			API:         a.api,
			Accounts:    a.auth,
			AccessToken: token,
			Uploader:    a.uploader,
			Lookups:     lookups,
			UserID:      userID,
		}, a.caches.Profiles, s.ProfileInterval, observe("profile")),
		Lookups: lookups,
	}
}
