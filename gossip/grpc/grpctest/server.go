// Package grpctest runs an in-process gossip endpoint that reports a given
// topology, for tests of code that discovers the cluster over gRPC.
package grpctest

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/maxpoletaev/esclient/membership"
)

// TopologySource returns the topology a Server reports.
type TopologySource func(ctx context.Context) (membership.Topology, error)

type gossipServer interface {
	Read(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// Server answers gossip reads with the topology of its source.
type Server struct {
	source TopologySource
}

// RegisterServer registers a gossip service backed by the source.
func RegisterServer(s *grpc.Server, source TopologySource) {
	s.RegisterService(&serviceDesc, &Server{source: source})
}

func (s *Server) Read(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	topology, err := s.source(ctx)
	if err != nil {
		return nil, err
	}

	return encodeTopology(topology)
}

// encodeTopology builds the cluster info message the way a member sends it.
func encodeTopology(topology membership.Topology) (*structpb.Struct, error) {
	members := make([]interface{}, 0, len(topology.Members))

	for _, m := range topology.Members {
		host, portStr, err := net.SplitHostPort(m.Addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", m.Addr, err)
		}

		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
		}

		members = append(members, map[string]interface{}{
			"instance_id": m.ID.String(),
			"state":       m.State.String(),
			"is_alive":    m.IsAlive,
			"http_end_point": map[string]interface{}{
				"address": host,
				"port":    float64(port),
			},
		})
	}

	return structpb.NewStruct(map[string]interface{}{
		"members": members,
	})
}

func readHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(gossipServer).Read(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/event_store.client.gossip.Gossip/Read",
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(gossipServer).Read(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "event_store.client.gossip.Gossip",
	HandlerType: (*gossipServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Read",
			Handler:    readHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gossip.proto",
}
