// Package routing sends calls to the cluster member chosen by a channel
// selector and reacts to their failures: unreachable members are reported so
// that the next call rediscovers, and leader redirects pin the following calls
// to the leader.
package routing

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/maxpoletaev/esclient/channel"
	"github.com/maxpoletaev/esclient/internal/grpcutil"
	"github.com/maxpoletaev/esclient/membership"
	"github.com/maxpoletaev/esclient/metrics"
)

// RequiresLeaderKey is the request header telling the server whether the call
// must be served by the leader.
const RequiresLeaderKey = "requires-leader"

var (
	_ grpc.ClientConnInterface = (*Router)(nil)
)

type Option func(*Router)

// WithRequiresLeader overrides the requires-leader header derived from the
// node preference.
func WithRequiresLeader(v bool) Option {
	return func(r *Router) {
		r.requiresLeader = v
	}
}

func WithLogger(logger log.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// Router is a grpc.ClientConnInterface that routes every call through the
// channel selector, so generated gRPC clients can be built on top of it.
type Router struct {
	selector       channel.Selector
	requiresLeader bool
	logger         log.Logger
	metrics        *metrics.Registry
}

// New creates a router. Calls require the leader when the preference is Leader.
func New(selector channel.Selector, pref membership.Preference, opts ...Option) *Router {
	r := &Router{
		selector:       selector,
		requiresLeader: pref == membership.PreferLeader,
		logger:         log.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Router) outgoing(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, RequiresLeaderKey, strconv.FormatBool(r.requiresLeader))
}

// follow pins the selector to the leader named in a redirect.
func (r *Router) follow(ctx context.Context, leader string) (*channel.Channel, error) {
	level.Info(r.logger).Log("msg", "following leader redirect", "leader", leader)

	return r.selector.SelectChannelAt(ctx, leader)
}

// pin follows a redirect for the next call only. The current call already has
// its result, so a failure to reach the leader is just logged.
func (r *Router) pin(ctx context.Context, leader string) {
	if _, err := r.follow(ctx, leader); err != nil {
		level.Warn(r.logger).Log("msg", "failed to pin leader", "leader", leader, "err", err)
	}
}

// handle maps the error of a call and reports the channel if the member could
// not serve it.
func (r *Router) handle(ch *channel.Channel, err error, trailer metadata.MD) error {
	if err == nil {
		r.metrics.RecordRequest("ok")
		return nil
	}

	err = mapError(err, trailer)

	var notLeader *NotLeaderError

	switch {
	case errors.As(err, &notLeader) && notLeader.Addr != "":
		r.metrics.RecordRequest("not_leader")
	case errors.As(err, &notLeader), grpcutil.IsUnavailable(err):
		// Without a known leader, the only option is to look for one.
		r.metrics.RecordRequest("transport_failure")
		ch.ReportFailure(err)
	default:
		r.metrics.RecordRequest("error")
	}

	return err
}

func (r *Router) invoke(ctx context.Context, ch *channel.Channel, method string, args, reply interface{}, opts []grpc.CallOption) error {
	var trailer metadata.MD

	opts = append(opts[:len(opts):len(opts)], grpc.Trailer(&trailer))
	err := ch.Conn.Invoke(r.outgoing(ctx), method, args, reply, opts...)

	return r.handle(ch, err, trailer)
}

// Invoke sends a unary call to the selected member. If the member redirects to
// the leader, the call is repeated once against the leader, which also becomes
// the target of the following calls.
func (r *Router) Invoke(ctx context.Context, method string, args, reply interface{}, opts ...grpc.CallOption) error {
	ch, err := r.selector.SelectChannel(ctx)
	if err != nil {
		return err
	}

	err = r.invoke(ctx, ch, method, args, reply, opts)

	leader, ok := redirect(err)
	if !ok {
		return err
	}

	if ch, err = r.follow(ctx, leader); err != nil {
		return err
	}

	err = r.invoke(ctx, ch, method, args, reply, opts)

	// Leadership moved again, the next call goes to the new leader.
	if leader, ok := redirect(err); ok {
		r.pin(ctx, leader)
	}

	return err
}

// NewStream opens a stream to the selected member. A redirect to the leader is
// followed by the next call, the stream itself fails with NotLeaderError.
func (r *Router) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	ch, err := r.selector.SelectChannel(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := ch.Conn.NewStream(r.outgoing(ctx), desc, method, opts...)
	if err != nil {
		err = r.handle(ch, err, nil)

		if leader, ok := redirect(err); ok {
			r.pin(ctx, leader)
		}

		return nil, err
	}

	return &routedStream{
		ClientStream: stream,
		router:       r,
		ch:           ch,
		ctx:          ctx,
	}, nil
}

// routedStream reports the failures of a stream to the router.
type routedStream struct {
	grpc.ClientStream
	router *Router
	ch     *channel.Channel
	ctx    context.Context
	once   sync.Once
	err    error
}

func (s *routedStream) fail(err error, trailer metadata.MD) error {
	s.once.Do(func() {
		s.err = s.router.handle(s.ch, err, trailer)

		if leader, ok := redirect(s.err); ok {
			s.router.pin(s.ctx, leader)
		}
	})

	return s.err
}

func (s *routedStream) RecvMsg(m interface{}) error {
	err := s.ClientStream.RecvMsg(m)
	if err == nil || err == io.EOF {
		return err
	}

	return s.fail(err, s.ClientStream.Trailer())
}

func (s *routedStream) SendMsg(m interface{}) error {
	// The actual status of a broken stream is returned by RecvMsg.
	err := s.ClientStream.SendMsg(m)
	if err == nil || err == io.EOF {
		return err
	}

	return s.fail(err, nil)
}
