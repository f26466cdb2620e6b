package membership

import (
	"fmt"
	"strings"
)

// State is the role a node plays in the cluster.
type State int

const (
	StateUnknown State = iota
	StateLeader
	StateFollower
	StateReadOnlyReplica
	StateReadOnlyLeaderless
	StateManager
	StateShutdown
	StateShuttingDown
	StateInitializing
	StateCatchingUp
	StateResigningLeader
	StatePreLeader
	StatePreReplica
	StatePreReadOnlyReplica
	StateClone
	StateDiscoverLeader
)

var stateNames = map[State]string{
	StateUnknown:            "Unknown",
	StateLeader:             "Leader",
	StateFollower:           "Follower",
	StateReadOnlyReplica:    "ReadOnlyReplica",
	StateReadOnlyLeaderless: "ReadOnlyLeaderless",
	StateManager:            "Manager",
	StateShutdown:           "Shutdown",
	StateShuttingDown:       "ShuttingDown",
	StateInitializing:       "Initializing",
	StateCatchingUp:         "CatchingUp",
	StateResigningLeader:    "ResigningLeader",
	StatePreLeader:          "PreLeader",
	StatePreReplica:         "PreReplica",
	StatePreReadOnlyReplica: "PreReadOnlyReplica",
	StateClone:              "Clone",
	StateDiscoverLeader:     "DiscoverLeader",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// IsRoutable returns true for the states that can serve client calls. Nodes in
// any other state are in transition or not part of the data path.
func (s State) IsRoutable() bool {
	switch s {
	case StateLeader, StateFollower, StateReadOnlyReplica, StateReadOnlyLeaderless:
		return true
	default:
		return false
	}
}

// ParseState converts the state name reported by the server into a State. The
// comparison ignores case and underscores, so both "ReadOnlyReplica" and
// "READ_ONLY_REPLICA" are accepted.
func ParseState(s string) (State, error) {
	norm := strings.ToLower(strings.ReplaceAll(s, "_", ""))

	for state, name := range stateNames {
		if strings.ToLower(name) == norm {
			return state, nil
		}
	}

	return StateUnknown, fmt.Errorf("unknown member state: %q", s)
}
