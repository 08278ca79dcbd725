// Package poll runs one fixed-interval refresh loop per resource key and
// broadcasts every result to all views subscribed to that key.
//
// The first Subscribe for a key starts its loop; the last Handle.Stop
// cancels the in-flight tick and waits for the loop to exit. Ticks of one
// loop never overlap. There is no backoff and no jitter.
package poll

import (
	"context"
	"sync"
	"time"
)

// Ticker is the part of time.Ticker the loop needs
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds a Ticker firing every d
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker wraps time.NewTicker
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Task performs one forced refresh of key
type Task[V any] func(ctx context.Context, key string) (V, error)

// Listener receives the result of every tick.
// Listeners run on the poll goroutine and must not call Stop on their
// own Handle; cancel a context and stop from the owning goroutine instead.
type Listener[V any] func(v V, err error)

// Observer receives poll events
type Observer interface {
	Ticked()
	Subscribers(n int)
}

type noopObserver struct{}

func (noopObserver) Ticked()         {}
func (noopObserver) Subscribers(int) {}

type options struct {
	newTicker TickerFactory
	observer  Observer
}

// Option configures a Group
type Option func(*options)

// WithTicker replaces time.NewTicker, for tests
func WithTicker(f TickerFactory) Option {
	return func(o *options) { o.newTicker = f }
}

// WithObserver reports ticks and subscriber counts
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// Group owns the pollers of one resource type
type Group[V any] struct {
	interval  time.Duration
	task      Task[V]
	newTicker TickerFactory
	observer  Observer

	mu      sync.Mutex
	pollers map[string]*poller[V]
	nextID  uint64
	total   int
	closed  bool
}

type poller[V any] struct {
	key       string
	listeners map[uint64]Listener[V]
	cancel    context.CancelFunc
	done      chan struct{}

	// held while listeners run, so a stopped listener is never called
	// after Stop returns
	dispatch sync.Mutex
}

// NewGroup creates a group that runs task for each subscribed key every interval
func NewGroup[V any](interval time.Duration, task Task[V], opts ...Option) *Group[V] {
	o := options{newTicker: NewStdTicker, observer: noopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}

	return &Group[V]{
		interval:  interval,
		task:      task,
		newTicker: o.newTicker,
		observer:  o.observer,
		pollers:   make(map[string]*poller[V]),
	}
}

// Interval returns the tick period
func (g *Group[V]) Interval() time.Duration {
	return g.interval
}

// Subscribe registers l for key, starting the key's loop if needed
func (g *Group[V]) Subscribe(key string, l Listener[V]) *Handle {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return &Handle{stop: func() {}}
	}

	p, ok := g.pollers[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		p = &poller[V]{
			key:       key,
			listeners: make(map[uint64]Listener[V]),
			cancel:    cancel,
			done:      make(chan struct{}),
		}
		g.pollers[key] = p
		go g.run(ctx, p)
	}

	g.nextID++
	id := g.nextID
	p.listeners[id] = l
	g.total++
	g.observer.Subscribers(g.total)

	return &Handle{stop: func() { g.unsubscribe(p, id) }}
}

// Subscribers returns how many listeners are attached to key
func (g *Group[V]) Subscribers(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.pollers[key]; ok {
		return len(p.listeners)
	}
	return 0
}

// Active returns how many keys are being polled
func (g *Group[V]) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.pollers)
}

// Close stops every loop and waits for them to exit
func (g *Group[V]) Close() {
	g.mu.Lock()
	g.closed = true
	pollers := make([]*poller[V], 0, len(g.pollers))
	for key, p := range g.pollers {
		p.cancel()
		p.listeners = make(map[uint64]Listener[V])
		pollers = append(pollers, p)
		delete(g.pollers, key)
	}
	g.total = 0
	g.observer.Subscribers(0)
	g.mu.Unlock()

	for _, p := range pollers {
		<-p.done
	}
}

func (g *Group[V]) unsubscribe(p *poller[V], id uint64) {
	p.dispatch.Lock()
	g.mu.Lock()

	if _, ok := p.listeners[id]; !ok {
		g.mu.Unlock()
		p.dispatch.Unlock()
		return
	}
	delete(p.listeners, id)
	g.total--
	g.observer.Subscribers(g.total)

	last := len(p.listeners) == 0
	if last && g.pollers[p.key] == p {
		delete(g.pollers, p.key)
	}
	g.mu.Unlock()
	p.dispatch.Unlock()

	if last {
		p.cancel()
		<-p.done
	}
}

func (g *Group[V]) run(ctx context.Context, p *poller[V]) {
	defer close(p.done)

	t := g.newTicker(g.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
		}

		g.observer.Ticked()
		v, err := g.task(ctx, p.key)
		if ctx.Err() != nil {
			return
		}
		g.broadcast(p, v, err)
	}
}

func (g *Group[V]) broadcast(p *poller[V], v V, err error) {
	p.dispatch.Lock()
	defer p.dispatch.Unlock()

	g.mu.Lock()
	listeners := make([]Listener[V], 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	g.mu.Unlock()

	for _, l := range listeners {
		l(v, err)
	}
}

// Handle is one view's subscription
type Handle struct {
	once sync.Once
	stop func()
}

// Stop unsubscribes. It is idempotent; once it returns the listener is
// not called again.
func (h *Handle) Stop() {
	h.once.Do(h.stop)
}
