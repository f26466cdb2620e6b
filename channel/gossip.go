package channel

import (
	"context"
	"errors"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/esclient/internal/sharing"
	"github.com/maxpoletaev/esclient/metrics"
	"github.com/maxpoletaev/esclient/nodeclient"
)

var (
	_ Selector = (*GossipSelector)(nil)
)

// Discoverer resolves the address of the member to talk to. It is satisfied by
// *discovery.Discoverer.
type Discoverer interface {
	Discover(ctx context.Context) (string, error)
}

// Endpoint is the input of an endpoint generation. An empty Override means that
// the address has to be discovered.
type Endpoint struct {
	Override string
}

type endpoint struct {
	addr       string
	markBroken func(Endpoint)
}

// GossipSelector routes to the member found by gossip discovery. The address is
// discovered once and shared by all callers until a call over it fails, after
// which the next selection discovers again.
type GossipSelector struct {
	conns      ConnCache
	discoverer Discoverer
	endpoints  *sharing.Provider[Endpoint, endpoint]
	logger     log.Logger
}

func NewGossipSelector(discoverer Discoverer, conns ConnCache, logger log.Logger, m *metrics.Registry) *GossipSelector {
	s := &GossipSelector{
		conns:      conns,
		discoverer: discoverer,
		logger:     logger,
	}

	s.endpoints = sharing.New[Endpoint, endpoint](
		s.resolve,
		Endpoint{},
		sharing.WithLogger(logger),
		sharing.WithMetrics(m),
	)

	return s
}

// resolveAddress returns the explicit override if there is one, otherwise the
// discovered address.
func resolveAddress(ctx context.Context, override string, discover func(context.Context) (string, error)) (string, error) {
	if override != "" {
		return override, nil
	}

	return discover(ctx)
}

func (s *GossipSelector) resolve(ctx context.Context, in Endpoint, markBroken func(Endpoint)) (endpoint, error) {
	addr, err := resolveAddress(ctx, in.Override, s.discoverer.Discover)
	if err != nil {
		return endpoint{}, err
	}

	return endpoint{addr: addr, markBroken: markBroken}, nil
}

func (s *GossipSelector) channel(ctx context.Context, ep endpoint) (*Channel, error) {
	conn, err := s.conns.GetOrCreate(ctx, ep.addr)
	if err != nil {
		// The caller gave up waiting, which says nothing about the member.
		if ctx.Err() != nil || errors.Is(err, nodeclient.ErrCacheClosed) {
			return nil, err
		}

		// The member cannot be reached, the next selection starts over.
		level.Info(s.logger).Log("msg", "failed to connect, rediscovering on next call", "addr", ep.addr, "err", err)
		ep.markBroken(Endpoint{})

		return nil, err
	}

	return &Channel{
		Addr: ep.addr,
		Conn: conn,
		report: func(err error) {
			level.Info(s.logger).Log("msg", "call failed, rediscovering on next call", "addr", ep.addr, "err", err)
			ep.markBroken(Endpoint{})
		},
	}, nil
}

func (s *GossipSelector) SelectChannel(ctx context.Context) (*Channel, error) {
	ep, err := s.endpoints.Current(ctx)
	if err != nil {
		return nil, err
	}

	return s.channel(ctx, ep)
}

// SelectChannelAt pins the selector to the address without discovery. Later
// calls to SelectChannel return the same address until a call over it fails.
func (s *GossipSelector) SelectChannelAt(ctx context.Context, addr string) (*Channel, error) {
	s.endpoints.Reset(ctx, Endpoint{Override: addr})

	ep, err := s.endpoints.Current(ctx)
	if err != nil {
		return nil, err
	}

	// Another caller pinned a different address in the meantime. Failures of
	// this channel are of no interest then, as its generation is gone.
	if ep.addr != addr {
		ep = endpoint{addr: addr, markBroken: func(Endpoint) {}}
	}

	return s.channel(ctx, ep)
}
