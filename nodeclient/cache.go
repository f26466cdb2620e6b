package nodeclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/singleflight"

	"github.com/maxpoletaev/esclient/internal/multierror"
	"github.com/maxpoletaev/esclient/metrics"
)

// ErrCacheClosed is returned by a cache that has been closed.
var ErrCacheClosed = errors.New("connection cache is closed")

// Cache keeps one connection per member address. Connections are dialed lazily
// on first use and shared by every caller asking for the same address.
type Cache struct {
	mut         sync.RWMutex
	conns       map[string]*Conn
	dials       singleflight.Group
	dialer      Dialer
	dialTimeout time.Duration
	logger      log.Logger
	metrics     *metrics.Registry
	closed      bool
}

// CacheOption configures the Cache.
type CacheOption func(*Cache)

// WithDialTimeout limits how long a single dial may take.
func WithDialTimeout(t time.Duration) CacheOption {
	return func(c *Cache) {
		c.dialTimeout = t
	}
}

func WithLogger(logger log.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Registry) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache creates an empty connection cache.
func NewCache(dialer Dialer, opts ...CacheOption) *Cache {
	c := &Cache{
		conns:       make(map[string]*Conn),
		dialer:      dialer,
		dialTimeout: 5 * time.Second,
		logger:      log.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Cache) get(addr string) (*Conn, bool) {
	c.mut.RLock()

	conn, ok := c.conns[addr]
	if !ok {
		c.mut.RUnlock()
		return nil, false
	}

	// The connection is present but was closed manually, so it is not usable.
	// Need to re-acquire the lock and remove it from the cache.
	if conn.IsClosed() {
		c.mut.RUnlock()
		c.mut.Lock()
		defer c.mut.Unlock()

		// A new connection might have been stored while we were waiting for the lock.
		if conn, ok := c.conns[addr]; ok && !conn.IsClosed() {
			return conn, true
		}

		delete(c.conns, addr)

		return nil, false
	}

	c.mut.RUnlock()

	return conn, true
}

func (c *Cache) isClosed() bool {
	c.mut.RLock()
	defer c.mut.RUnlock()

	return c.closed
}

func (c *Cache) dial(addr string) (*Conn, error) {
	// Another dial may have finished between the lookup and joining the flight.
	if conn, ok := c.get(addr); ok {
		return conn, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	defer cancel()

	level.Debug(c.logger).Log("msg", "dialing cluster member", "addr", addr)

	// Dial the member, this may take a while.
	conn, err := c.dialer(ctx, addr)
	if err != nil {
		c.metrics.RecordDial(false, c.Len())
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	c.mut.Lock()
	defer c.mut.Unlock()

	if c.closed {
		_ = conn.Close()
		return nil, ErrCacheClosed
	}

	// Check if the connection has been added while we were dialing.
	// If so, discard the connection we just created and use the existing one.
	if old, ok := c.conns[addr]; ok && !old.IsClosed() {
		if err := conn.Close(); err != nil {
			level.Warn(c.logger).Log("msg", "failed to close connection", "addr", addr, "err", err)
		}

		return old, nil
	}

	c.conns[addr] = conn
	c.metrics.RecordDial(true, len(c.conns))

	return conn, nil
}

// GetOrCreate returns the connection to the given address, dialing it if there
// is none yet. Concurrent callers asking for the same address share one dial.
// The context only limits how long the caller waits: an abandoned dial still
// completes in the background and its connection is cached. Failed dials are
// not cached, so the next call dials again.
func (c *Cache) GetOrCreate(ctx context.Context, addr string) (*Conn, error) {
	if conn, ok := c.get(addr); ok {
		return conn, nil
	}

	if c.isClosed() {
		return nil, ErrCacheClosed
	}

	ch := c.dials.DoChan(addr, func() (interface{}, error) {
		return c.dial(addr)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*Conn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Retain closes and removes the connections to addresses that are not in the
// given list, e.g. members that are no longer part of the cluster.
func (c *Cache) Retain(addrs []string) {
	keep := make(map[string]struct{}, len(addrs))
	for _, addr := range addrs {
		keep[addr] = struct{}{}
	}

	c.mut.Lock()
	defer c.mut.Unlock()

	for addr, conn := range c.conns {
		if _, ok := keep[addr]; ok {
			continue
		}

		delete(c.conns, addr)

		if err := conn.Close(); err != nil {
			level.Warn(c.logger).Log("msg", "failed to close connection", "addr", addr, "err", err)
		}

		level.Debug(c.logger).Log("msg", "dropped connection to departed member", "addr", addr)
	}

	c.metrics.SetConnectionsOpen(len(c.conns))
}

// Len returns the number of cached connections.
func (c *Cache) Len() int {
	c.mut.RLock()
	defer c.mut.RUnlock()

	return len(c.conns)
}

// Close closes all cached connections. The cache cannot be used afterwards.
func (c *Cache) Close() error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	errs := multierror.New[string]()

	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil {
			errs.Add(addr, err)
		}
	}

	c.conns = make(map[string]*Conn)
	c.metrics.SetConnectionsOpen(0)

	return errs.Combined()
}
