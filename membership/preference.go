package membership

import (
	"fmt"
	"strings"
)

// Preference defines which kind of node the client would rather talk to.
type Preference int

const (
	// PreferRandom treats all routable nodes as equal.
	PreferRandom Preference = iota

	// PreferLeader routes to the leader, falling back to followers and then to
	// read-only replicas.
	PreferLeader

	// PreferFollower routes to a follower, falling back to the leader and then to
	// read-only replicas.
	PreferFollower

	// PreferReadOnlyReplica routes to a read-only replica, falling back to the
	// leader and then to followers.
	PreferReadOnlyReplica
)

func (p Preference) String() string {
	switch p {
	case PreferRandom:
		return "random"
	case PreferLeader:
		return "leader"
	case PreferFollower:
		return "follower"
	case PreferReadOnlyReplica:
		return "readonlyreplica"
	default:
		return ""
	}
}

// ParsePreference parses a node preference as it appears in connection settings.
// An empty string means no preference.
func ParsePreference(s string) (Preference, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "")) {
	case "", "random", "none":
		return PreferRandom, nil
	case "leader":
		return PreferLeader, nil
	case "follower":
		return PreferFollower, nil
	case "readonlyreplica":
		return PreferReadOnlyReplica, nil
	default:
		return PreferRandom, fmt.Errorf("unknown node preference: %q", s)
	}
}
