package nodeclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	calls int32
	delay time.Duration
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, addr string) (*Conn, error) {
	atomic.AddInt32(&d.calls, 1)

	if d.delay > 0 {
		time.Sleep(d.delay) // Simulate network latency.
	}

	if d.err != nil {
		return nil, d.err
	}

	return NewConn(addr, nil), nil
}

func (d *fakeDialer) Calls() int {
	return int(atomic.LoadInt32(&d.calls))
}

func TestCache_GetOrCreateReuses(t *testing.T) {
	dialer := &fakeDialer{}
	cache := NewCache(dialer.Dial)

	first, err := cache.GetOrCreate(context.Background(), "a:2113")
	require.NoError(t, err)
	require.Equal(t, "a:2113", first.Addr())

	second, err := cache.GetOrCreate(context.Background(), "a:2113")
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, dialer.Calls())
	require.Equal(t, 1, cache.Len())
}

func TestCache_OneConnPerAddr(t *testing.T) {
	dialer := &fakeDialer{}
	cache := NewCache(dialer.Dial)

	a, err := cache.GetOrCreate(context.Background(), "a:2113")
	require.NoError(t, err)

	b, err := cache.GetOrCreate(context.Background(), "b:2113")
	require.NoError(t, err)

	require.NotSame(t, a, b)
	require.Equal(t, 2, dialer.Calls())
}

func TestCache_GetOrCreateConcurrent(t *testing.T) {
	dialer := &fakeDialer{delay: 100 * time.Millisecond}
	cache := NewCache(dialer.Dial)

	concurrency := 10
	conns := make([]*Conn, concurrency)
	errs := make([]error, concurrency)

	wg := sync.WaitGroup{}
	wg.Add(concurrency)

	begin := make(chan struct{})

	for i := 0; i < concurrency; i++ {
		go func(i int) {
			defer wg.Done()
			<-begin

			conns[i], errs[i] = cache.GetOrCreate(context.Background(), "a:2113")
		}(i)
	}

	close(begin)
	wg.Wait()

	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i], "connection %d", i)
		require.Same(t, conns[0], conns[i], "connection %d", i)
	}

	require.Equal(t, 1, dialer.Calls())
}

func TestCache_FailedDialIsNotCached(t *testing.T) {
	dialer := &fakeDialer{err: assert.AnError}
	cache := NewCache(dialer.Dial)

	_, err := cache.GetOrCreate(context.Background(), "a:2113")
	require.ErrorIs(t, err, assert.AnError)
	require.Equal(t, 0, cache.Len())

	dialer.err = nil

	conn, err := cache.GetOrCreate(context.Background(), "a:2113")
	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, 2, dialer.Calls())
}

func TestCache_ClosedConnIsRedialed(t *testing.T) {
	dialer := &fakeDialer{}
	cache := NewCache(dialer.Dial)

	first, err := cache.GetOrCreate(context.Background(), "a:2113")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := cache.GetOrCreate(context.Background(), "a:2113")
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.False(t, second.IsClosed())
	require.Equal(t, 2, dialer.Calls())
}

func TestCache_CallerContextCanceled(t *testing.T) {
	dialer := &fakeDialer{delay: 200 * time.Millisecond}
	cache := NewCache(dialer.Dial)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := cache.GetOrCreate(ctx, "a:2113")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned dial still completes and is reused.
	require.Eventually(t, func() bool {
		return cache.Len() == 1
	}, time.Second, 10*time.Millisecond)

	_, err = cache.GetOrCreate(context.Background(), "a:2113")
	require.NoError(t, err)
	require.Equal(t, 1, dialer.Calls())
}

func TestCache_Retain(t *testing.T) {
	dialer := &fakeDialer{}
	cache := NewCache(dialer.Dial)

	a, err := cache.GetOrCreate(context.Background(), "a:2113")
	require.NoError(t, err)

	b, err := cache.GetOrCreate(context.Background(), "b:2113")
	require.NoError(t, err)

	cache.Retain([]string{"b:2113", "c:2113"})

	require.True(t, a.IsClosed())
	require.False(t, b.IsClosed())
	require.Equal(t, 1, cache.Len())
}

func TestCache_Close(t *testing.T) {
	dialer := &fakeDialer{}
	cache := NewCache(dialer.Dial)

	conn, err := cache.GetOrCreate(context.Background(), "a:2113")
	require.NoError(t, err)

	require.NoError(t, cache.Close())
	require.True(t, conn.IsClosed())
	require.Equal(t, 0, cache.Len())

	_, err = cache.GetOrCreate(context.Background(), "a:2113")
	require.ErrorIs(t, err, ErrCacheClosed)

	require.NoError(t, cache.Close())
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	var closed int

	conn := NewConn("a:2113", nil)
	conn.addOnCloseHook(func() error {
		closed++
		return assert.AnError
	})

	require.ErrorIs(t, conn.Close(), assert.AnError)
	require.NoError(t, conn.Close())
	require.True(t, conn.IsClosed())
	require.Equal(t, 1, closed)
}
