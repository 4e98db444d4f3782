// Package poller keeps local projections of the order store fresh by
// re-fetching them on a fixed interval. Each cycle replaces the projection
// wholesale, so a viewer is never staler than one interval plus a round trip.
package poller

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultInterval is the time between scheduled fetches.
	DefaultInterval = 30 * time.Second
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 10 * time.Second
)

// ErrStopped is returned by Run when the poller was stopped with Stop.
var ErrStopped = errors.New("poller stopped")

// Fetch loads the full projection.
type Fetch[T any] func(ctx context.Context) (T, error)

// Option configures a Poller.
type Option func(*config)

type config struct {
	interval time.Duration
	timeout  time.Duration
	lg       *zap.Logger
	now      func() time.Time
}

// WithInterval sets the time between scheduled fetches.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for failed fetches.
func WithLogger(lg *zap.Logger) Option {
	return func(c *config) { c.lg = lg }
}

// Poller periodically replaces a snapshot of type T.
type Poller[T any] struct {
	name  string
	fetch Fetch[T]
	cfg   config
	group singleflight.Group
	seq   atomic.Uint64

	mu        sync.RWMutex
	current   T
	fetchedAt time.Time
	applied   uint64
	lastErr   error
	listeners []func(T)

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a Poller. It does nothing until Run or Refresh is called.
func New[T any](name string, fetch Fetch[T], opts ...Option) *Poller[T] {
	cfg := config{
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		lg:       zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Poller[T]{
		name:  name,
		fetch: fetch,
		cfg:   cfg,
		stop:  make(chan struct{}),
	}
}

// OnUpdate registers fn to be called with every new snapshot. Callbacks run
// on the fetching goroutine and must not block.
func (p *Poller[T]) OnUpdate(fn func(T)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Current returns the latest snapshot and when it was fetched. ok is false
// until the first successful fetch.
func (p *Poller[T]) Current() (value T, fetchedAt time.Time, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.fetchedAt, !p.fetchedAt.IsZero()
}

// Err returns the error of the last fetch, or nil if it succeeded.
func (p *Poller[T]) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Refresh fetches immediately. Concurrent calls share a single fetch, which
// is not cancelled when one of the callers gives up. On failure the previous
// snapshot is kept.
func (p *Poller[T]) Refresh(ctx context.Context) (T, error) {
	ch := p.group.DoChan(p.name, func() (any, error) {
		return p.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Reload fetches immediately without joining a fetch already in flight, so
// the result reflects every write that completed before the call. A slower
// fetch started earlier never replaces the snapshot Reload stored.
func (p *Poller[T]) Reload(ctx context.Context) (T, error) {
	return p.refresh(ctx)
}

func (p *Poller[T]) refresh(ctx context.Context) (T, error) {
	seq := p.seq.Add(1)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.timeout)
	defer cancel()

	v, err := p.fetch(ctx)
	if err != nil {
		err = errors.Wrapf(err, "fetch %s", p.name)
		p.mu.Lock()
		if seq > p.applied {
			p.lastErr = err
		}
		p.mu.Unlock()
		var zero T
		return zero, err
	}

	p.mu.Lock()
	if seq < p.applied {
		// A fetch started later already landed.
		current := p.current
		p.mu.Unlock()
		return current, nil
	}
	p.current = v
	p.fetchedAt = p.cfg.now()
	p.applied = seq
	p.lastErr = nil
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
	return v, nil
}

// Run fetches immediately and then every interval until ctx is done or Stop
// is called. Failed fetches are logged and retried on the next tick.
func (p *Poller[T]) Run(ctx context.Context) error {
	t := time.NewTicker(p.cfg.interval)
	defer t.Stop()

	for {
		if _, err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
			p.cfg.lg.Warn("Poll failed", zap.String("poller", p.name), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stop:
			return ErrStopped
		case <-t.C:
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (p *Poller[T]) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}
