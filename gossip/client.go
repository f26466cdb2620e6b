// Package gossip defines how the client asks a cluster member for its view of
// the cluster.
package gossip

//go:generate mockgen -destination=mock/client_mock.go -package=mock github.com/maxpoletaev/esclient/gossip Client

import (
	"context"

	"github.com/maxpoletaev/esclient/membership"
)

// Client reads the cluster topology from a member.
type Client interface {
	// Read asks the member listening on addr for the current cluster topology.
	// The deadline and cancellation of the call are taken from the context.
	Read(ctx context.Context, addr string) (membership.Topology, error)
}
