package grpc

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/maxpoletaev/esclient/gossip"
	"github.com/maxpoletaev/esclient/membership"
	"github.com/maxpoletaev/esclient/nodeclient"
)

// ReadMethod is the full name of the gossip read call.
const ReadMethod = "/event_store.client.gossip.Gossip/Read"

var (
	_ gossip.Client = (*Client)(nil)
)

// ConnCache returns a connection to a member. It is satisfied by *nodeclient.Cache.
type ConnCache interface {
	GetOrCreate(ctx context.Context, addr string) (*nodeclient.Conn, error)
}

// Client reads the cluster topology over the same cached connections that are
// used for the regular calls.
type Client struct {
	conns ConnCache
}

func New(conns ConnCache) *Client {
	return &Client{conns: conns}
}

func (c *Client) Read(ctx context.Context, addr string) (membership.Topology, error) {
	conn, err := c.conns.GetOrCreate(ctx, addr)
	if err != nil {
		return membership.Topology{}, err
	}

	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, ReadMethod, &emptypb.Empty{}, resp); err != nil {
		return membership.Topology{}, fmt.Errorf("gossip read: %w", err)
	}

	return fromClusterInfo(resp)
}
