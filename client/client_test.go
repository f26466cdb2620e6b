package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/maxpoletaev/esclient/config"
	gossipgrpc "github.com/maxpoletaev/esclient/gossip/grpc"
	"github.com/maxpoletaev/esclient/gossip/grpc/grpctest"
	"github.com/maxpoletaev/esclient/membership"
	"github.com/maxpoletaev/esclient/nodeclient"
)

// startCluster starts a gossip server for every address, each reporting the
// same topology, and returns a dialer that reaches them in memory.
func startCluster(t *testing.T, topology membership.Topology, addrs ...string) nodeclient.Dialer {
	listeners := make(map[string]*bufconn.Listener, len(addrs))

	for _, addr := range addrs {
		listener := bufconn.Listen(1024 * 1024)
		server := grpc.NewServer()

		grpctest.RegisterServer(server, func(ctx context.Context) (membership.Topology, error) {
			return topology, nil
		})

		go func() {
			_ = server.Serve(listener)
		}()

		t.Cleanup(server.Stop)
		listeners[addr] = listener
	}

	opts := nodeclient.DefaultDialOptions()
	opts.TLS = false
	opts.Extra = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			listener, ok := listeners[addr]
			if !ok {
				return nil, status.Errorf(codes.Unavailable, "unknown address %s", addr)
			}

			return listener.DialContext(ctx)
		}),
	}

	return nodeclient.NewGRPCDialer(opts)
}

func invoke(t *testing.T, c *Client) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp := new(structpb.Struct)
	err := c.Conn().Invoke(ctx, gossipgrpc.ReadMethod, &emptypb.Empty{}, resp)

	return resp, err
}

func TestClient_Discovery(t *testing.T) {
	topology := membership.Topology{Members: []membership.Member{
		{ID: uuid.New(), State: membership.StateFollower, IsAlive: true, Addr: "b:2113"},
		{ID: uuid.New(), State: membership.StateLeader, IsAlive: true, Addr: "a:2113"},
	}}

	dialer := startCluster(t, topology, "seed:2113", "a:2113", "b:2113")

	settings := config.DefaultSettings()
	settings.GossipSeeds = []string{"seed:2113"}
	settings.DiscoveryInterval = 10 * time.Millisecond

	c, err := New(settings, WithDialer(dialer))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NotNil(t, c.Discoverer())
	assert.NotEqual(t, uuid.Nil, c.ID())

	resp, err := invoke(t, c)
	require.NoError(t, err)
	assert.Len(t, resp.Fields["members"].GetListValue().GetValues(), 2)
	assert.Equal(t, "a:2113", c.Discoverer().LastKnownAddr())

	ch, err := c.Selector().SelectChannel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a:2113", ch.Addr)
}

func TestClient_FixedEndpoint(t *testing.T) {
	dialer := startCluster(t, membership.Topology{}, "a:2113")

	settings := config.DefaultSettings()
	settings.Endpoint = "a:2113"

	c, err := New(settings, WithDialer(dialer))
	require.NoError(t, err)

	assert.Nil(t, c.Discoverer())

	_, err = invoke(t, c)
	require.NoError(t, err)

	require.NoError(t, c.Close())

	_, err = invoke(t, c)
	require.ErrorIs(t, err, nodeclient.ErrCacheClosed)
}

func TestClient_InvalidSettings(t *testing.T) {
	_, err := New(config.DefaultSettings())
	require.Error(t, err)
}
