// Package resource binds a cache, a fetcher and a poll group into a
// stale-while-revalidate view of one kind of remote data.
package resource

import (
	"context"
	"time"

	"github.com/zfogg/circle/cli/pkg/cache"
	"github.com/zfogg/circle/cli/pkg/logger"
	"github.com/zfogg/circle/cli/pkg/poll"
	"golang.org/x/sync/singleflight"
)

// Fetcher performs one network round-trip for key
type Fetcher[V any] interface {
	Fetch(ctx context.Context, key string) (V, error)
}

// FetchFunc adapts a function to Fetcher
type FetchFunc[V any] func(ctx context.Context, key string) (V, error)

// Fetch calls f
func (f FetchFunc[V]) Fetch(ctx context.Context, key string) (V, error) {
	return f(ctx, key)
}

// Observer receives fetch and poll events
type Observer interface {
	Fetched(d time.Duration, err error)
	Ticked()
	Subscribers(n int)
}

type noopObserver struct{}

func (noopObserver) Fetched(time.Duration, error) {}
func (noopObserver) Ticked()                      {}
func (noopObserver) Subscribers(int)              {}

type options struct {
	observer    Observer
	pollOptions []poll.Option
}

// Option configures a Resource
type Option func(*options)

// WithObserver reports fetch latency, failures and poll ticks
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithPollOptions passes options to the underlying poll group
func WithPollOptions(opts ...poll.Option) Option {
	return func(o *options) { o.pollOptions = append(o.pollOptions, opts...) }
}

// Resource serves cached payloads and refreshes them from the network
type Resource[V any] struct {
	name     string
	cache    *cache.Cache[V]
	fetcher  Fetcher[V]
	observer Observer
	group    *poll.Group[V]
	sf       singleflight.Group
}

// New creates a resource polling every interval for watched keys
func New[V any](name string, c *cache.Cache[V], f Fetcher[V], interval time.Duration, opts ...Option) *Resource[V] {
	o := options{observer: noopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Resource[V]{
		name:     name,
		cache:    c,
		fetcher:  f,
		observer: o.observer,
	}

	pollOpts := append([]poll.Option{poll.WithObserver(o.observer)}, o.pollOptions...)
	r.group = poll.NewGroup(interval, r.refreshOrStale, pollOpts...)
	return r
}

// Name returns the resource name used in logs and metrics
func (r *Resource[V]) Name() string {
	return r.name
}

// Load returns the cached payload while it is fresh and fetches otherwise.
// Concurrent loads of the same key share one request. A caller whose
// context ends stops waiting; the shared request keeps going for the rest.
func (r *Resource[V]) Load(ctx context.Context, key string) (V, error) {
	var zero V
	if v, ok := r.cache.Get(key); ok {
		logger.Debug("Cache hit", "resource", r.name, "key", key)
		return v, nil
	}

	shareCtx := context.WithoutCancel(ctx)
	ch := r.sf.DoChan(key, func() (interface{}, error) {
		return r.fetch(shareCtx, key)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			logger.Debug("Shared in-flight fetch", "resource", r.name, "key", key)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Refresh fetches key from the network regardless of the cache
func (r *Resource[V]) Refresh(ctx context.Context, key string) (V, error) {
	return r.fetch(ctx, key)
}

// Peek returns the stored payload even if it is stale
func (r *Resource[V]) Peek(key string) (V, bool) {
	e, ok := r.cache.Peek(key)
	return e.Payload, ok
}

// Invalidate forces the next Load of key to go to the network
func (r *Resource[V]) Invalidate(key string) {
	r.cache.Invalidate(key)
}

// Watch delivers the current payload for key and then every poll result
// until the returned handle is stopped. When a fetch fails the listener
// gets the last good payload, if any, together with the error.
func (r *Resource[V]) Watch(ctx context.Context, key string, l poll.Listener[V]) *poll.Handle {
	v, err := r.Load(ctx, key)
	if err != nil {
		if stale, ok := r.Peek(key); ok {
			v = stale
		}
	}
	l(v, err)

	return r.group.Subscribe(key, l)
}

// Watchers returns how many views are watching key
func (r *Resource[V]) Watchers(key string) int {
	return r.group.Subscribers(key)
}

// Close stops every poller of this resource
func (r *Resource[V]) Close() {
	r.group.Close()
}

func (r *Resource[V]) refreshOrStale(ctx context.Context, key string) (V, error) {
	v, err := r.Refresh(ctx, key)
	if err != nil {
		if stale, ok := r.Peek(key); ok {
			return stale, err
		}
	}
	return v, err
}

func (r *Resource[V]) fetch(ctx context.Context, key string) (V, error) {
	seq := r.cache.NextSeq(key)

	start := time.Now()
	v, err := r.fetcher.Fetch(ctx, key)
	r.observer.Fetched(time.Since(start), err)

	if err != nil {
		logger.Debug("Fetch failed, keeping cached entry", "resource", r.name, "key", key, "error", err)
		var zero V
		return zero, err
	}

	if !r.cache.Apply(key, v, seq) {
		logger.Debug("Discarded out-of-order result", "resource", r.name, "key", key, "seq", seq)
		if r.cache.Cleared(seq) {
			var zero V
			return zero, cache.ErrCleared
		}
		if e, ok := r.cache.Peek(key); ok {
			return e.Payload, nil
		}
	}
	return v, nil
}
