// Package client assembles the routing core from connection settings: a
// connection cache, either a fixed or a gossip-driven channel selector, and the
// leader-aware router on top of them.
package client

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/twmb/murmur3"
	"google.golang.org/grpc"

	"github.com/maxpoletaev/esclient/channel"
	"github.com/maxpoletaev/esclient/config"
	"github.com/maxpoletaev/esclient/discovery"
	gossipgrpc "github.com/maxpoletaev/esclient/gossip/grpc"
	"github.com/maxpoletaev/esclient/membership"
	"github.com/maxpoletaev/esclient/metrics"
	"github.com/maxpoletaev/esclient/nodeclient"
	"github.com/maxpoletaev/esclient/routing"
)

type options struct {
	logger  log.Logger
	metrics *metrics.Registry
	dialer  nodeclient.Dialer
	routing []routing.Option
}

type Option func(*options)

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithDialer replaces the gRPC dialer built from the settings.
func WithDialer(dialer nodeclient.Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithRouterOptions passes options to the router, e.g. routing.WithRequiresLeader.
func WithRouterOptions(opts ...routing.Option) Option {
	return func(o *options) {
		o.routing = append(o.routing, opts...)
	}
}

// Client owns the connections to the cluster. Conn returns a
// grpc.ClientConnInterface for generated gRPC clients.
type Client struct {
	id         uuid.UUID
	cache      *nodeclient.Cache
	discoverer *discovery.Discoverer
	selector   channel.Selector
	router     *routing.Router
	logger     log.Logger
}

func New(settings config.Settings, opts ...Option) (*Client, error) {
	o := &options{
		logger: log.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	pref, err := settings.Preference()
	if err != nil {
		return nil, err
	}

	if o.dialer == nil {
		dialOpts, err := settings.DialOptions()
		if err != nil {
			return nil, fmt.Errorf("dial options: %w", err)
		}

		o.dialer = nodeclient.NewGRPCDialer(dialOpts)
	}

	c := &Client{
		id:     uuid.New(),
		logger: o.logger,
	}

	c.cache = nodeclient.NewCache(
		o.dialer,
		nodeclient.WithDialTimeout(settings.DialTimeout),
		nodeclient.WithLogger(log.With(o.logger, "component", "conncache")),
		nodeclient.WithMetrics(o.metrics),
	)

	if settings.UsesDiscovery() {
		conf, err := settings.DiscoveryConfig()
		if err != nil {
			return nil, err
		}

		conf.Logger = log.With(o.logger, "component", "discovery")
		conf.Metrics = o.metrics
		conf.SelectionSeed = murmur3.Sum32(c.id[:])

		seeds := settings.GossipSeeds

		c.discoverer = discovery.New(
			gossipgrpc.New(c.cache),
			conf,
			discovery.WithTopologyHook(func(t membership.Topology) {
				c.cache.Retain(append(t.Addrs(), seeds...))
			}),
		)

		c.selector = channel.NewGossipSelector(c.discoverer, c.cache, log.With(o.logger, "component", "selector"), o.metrics)
	} else {
		c.selector = channel.NewFixedSelector(settings.Endpoint, c.cache, log.With(o.logger, "component", "selector"))
	}

	routerOpts := append([]routing.Option{
		routing.WithLogger(log.With(o.logger, "component", "router")),
		routing.WithMetrics(o.metrics),
	}, o.routing...)

	c.router = routing.New(c.selector, pref, routerOpts...)

	level.Debug(o.logger).Log("msg", "client created", "id", c.id, "discovery", settings.UsesDiscovery(), "preference", pref)

	return c, nil
}

// ID identifies this client instance in logs.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Conn returns the connection generated gRPC clients are built on.
func (c *Client) Conn() grpc.ClientConnInterface {
	return c.router
}

func (c *Client) Selector() channel.Selector {
	return c.selector
}

// Discoverer returns nil when the client connects to a single endpoint.
func (c *Client) Discoverer() *discovery.Discoverer {
	return c.discoverer
}

// Close closes all connections. Calls made afterwards fail.
func (c *Client) Close() error {
	return c.cache.Close()
}
