package ttlstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(WithClock(clock.Now))

	_, err := m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := m.PutIfAbsent(ctx, "k", []byte("first"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.PutIfAbsent(ctx, "k", []byte("second"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", string(v))

	require.NoError(t, m.Put(ctx, "k", []byte("replaced"), time.Minute))
	v, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(v))

	clock.Advance(time.Minute)
	_, err = m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound, "entries expire at their deadline")

	ok, err = m.PutIfAbsent(ctx, "k", []byte("again"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired entries do not block PutIfAbsent")

	require.NoError(t, m.Expire(ctx, "k"))
	_, err = m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	buf := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", buf, time.Minute))
	buf[0] = 'x'

	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestMemory_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(WithClock(clock.Now))

	require.NoError(t, m.Put(ctx, "short", nil, time.Second))
	require.NoError(t, m.Put(ctx, "long", nil, time.Hour))
	clock.Advance(time.Minute)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0, m.Sweep())
}

func TestMemory_Run(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put(context.Background(), "gone", nil, time.Nanosecond))

	ctx, cancel := context.WithCancel(context.Background())
	var removed atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, 5*time.Millisecond, func(n int) { removed.Add(int64(n)) })
	}()

	require.Eventually(t, func() bool { return removed.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 0, m.Len())
}

func TestMemory_PutIfAbsentRace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var (
		wg   sync.WaitGroup
		wins atomic.Int64
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.PutIfAbsent(ctx, "k", []byte("v"), time.Minute)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), wins.Load())
}
