package membership

import (
	"github.com/google/uuid"
)

// Member is a single cluster node as reported by a gossip call.
type Member struct {
	// ID is the instance id the node generates on startup.
	ID uuid.UUID
	// State is the role of the node in the cluster at the time of the gossip.
	State State
	// IsAlive is false for nodes that the reporting node considers dead.
	IsAlive bool
	// Addr is the host:port of the node's gRPC endpoint.
	Addr string
}

// IsRoutable returns true if client calls can be routed to the member.
func (m *Member) IsRoutable() bool {
	return m.IsAlive && m.State.IsRoutable()
}

// Topology is a point-in-time view of the cluster obtained from one gossip call.
type Topology struct {
	Members []Member
}

// Addrs returns the addresses of all members, alive or not, in gossip order.
func (t Topology) Addrs() []string {
	addrs := make([]string, 0, len(t.Members))

	for _, m := range t.Members {
		if m.Addr != "" {
			addrs = append(addrs, m.Addr)
		}
	}

	return addrs
}

// Alive returns the number of members that are alive.
func (t Topology) Alive() int {
	var n int

	for _, m := range t.Members {
		if m.IsAlive {
			n++
		}
	}

	return n
}
