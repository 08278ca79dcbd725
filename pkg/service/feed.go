package service

import (
	"context"
	"time"

	"github.com/zfogg/circle/cli/pkg/cache"
	"github.com/zfogg/circle/cli/pkg/db"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/models"
	"github.com/zfogg/circle/cli/pkg/poll"
	"github.com/zfogg/circle/cli/pkg/resource"
)

// DefaultPageSize is the number of posts per feed page
const DefaultPageSize = 20

// postColumns embeds the author and aggregate counts
const postColumns = "*,user(*),like(count),comment(count)"

// FeedService serves the home feed
type FeedService struct {
	db       *db.Client
	userID   string
	pageSize int
	home     *resource.Resource[[]models.Post]
}

// NewFeedService creates a feed service whose first page is cached in c
// and polled every interval while watched.
func NewFeedService(client *db.Client, userID string, c *cache.Cache[[]models.Post], interval time.Duration, opts ...resource.Option) *FeedService {
	fs := &FeedService{
		db:       client,
		userID:   userID,
		pageSize: DefaultPageSize,
	}
	fs.home = resource.New[[]models.Post]("home-feed", c, resource.FetchFunc[[]models.Post](fs.fetchHome), interval, opts...)
	return fs
}

// Home returns a page of posts by the user and their connections, newest
// first. Page 0 is served from the cache while fresh.
func (fs *FeedService) Home(ctx context.Context, page int) ([]models.Post, error) {
	if err := requireUser(fs.userID); err != nil {
		return nil, err
	}
	if page <= 0 {
		return fs.home.Load(ctx, FeedKey(fs.userID))
	}
	return fs.queryHome(ctx, page)
}

// Refresh reloads the first page from the network
func (fs *FeedService) Refresh(ctx context.Context) ([]models.Post, error) {
	if err := requireUser(fs.userID); err != nil {
		return nil, err
	}
	return fs.home.Refresh(ctx, FeedKey(fs.userID))
}

// Cached returns the first page even when it is stale
func (fs *FeedService) Cached() ([]models.Post, bool) {
	return fs.home.Peek(FeedKey(fs.userID))
}

// Watch delivers the first page now and after every poll
func (fs *FeedService) Watch(ctx context.Context, l poll.Listener[[]models.Post]) (*poll.Handle, error) {
	if err := requireUser(fs.userID); err != nil {
		return nil, err
	}
	return fs.home.Watch(ctx, FeedKey(fs.userID), l), nil
}

// Invalidate marks the cached feed stale after a local write
func (fs *FeedService) Invalidate() {
	fs.home.Invalidate(FeedKey(fs.userID))
}

// Close stops the feed poller
func (fs *FeedService) Close() {
	fs.home.Close()
}

func (fs *FeedService) fetchHome(ctx context.Context, key string) ([]models.Post, error) {
	logger.Debug("Fetching home feed", "key", key)
	return fs.queryHome(ctx, 0)
}

func (fs *FeedService) queryHome(ctx context.Context, page int) ([]models.Post, error) {
	authors, err := fs.connectionIDs(ctx)
	if err != nil {
		return nil, err
	}
	authors = append(authors, fs.userID)

	from := page * fs.pageSize
	var posts []models.Post
	err = fs.db.From(models.TablePost).
		Select(postColumns).
		In("user_id", authors).
		Order("created_at", false).
		Range(from, from+fs.pageSize-1).
		Execute(ctx, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (fs *FeedService) connectionIDs(ctx context.Context) ([]string, error) {
	var rows []models.Connection
	err := fs.db.From(models.TableConnection).
		Select("connection_id").
		Eq("user_id", fs.userID).
		Execute(ctx, &rows)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ConnectionID)
	}
	return ids, nil
}
