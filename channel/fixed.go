package channel

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	_ Selector = (*FixedSelector)(nil)
)

// FixedSelector always routes to a single, statically configured node. There is
// no discovery: gRPC reconnects to the node on its own after a failure.
type FixedSelector struct {
	addr   string
	conns  ConnCache
	logger log.Logger
}

func NewFixedSelector(addr string, conns ConnCache, logger log.Logger) *FixedSelector {
	return &FixedSelector{
		addr:   addr,
		conns:  conns,
		logger: logger,
	}
}

func (s *FixedSelector) SelectChannel(ctx context.Context) (*Channel, error) {
	return s.SelectChannelAt(ctx, s.addr)
}

func (s *FixedSelector) SelectChannelAt(ctx context.Context, addr string) (*Channel, error) {
	conn, err := s.conns.GetOrCreate(ctx, addr)
	if err != nil {
		return nil, err
	}

	return &Channel{
		Addr: addr,
		Conn: conn,
		report: func(err error) {
			level.Warn(s.logger).Log("msg", "call to fixed node failed", "addr", addr, "err", err)
		},
	}, nil
}
