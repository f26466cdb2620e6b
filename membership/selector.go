package membership

import (
	"errors"

	"github.com/twmb/murmur3"
	"golang.org/x/exp/slices"

	"github.com/maxpoletaev/esclient/internal/generic"
)

// ErrNoAvailableMember is returned when the topology contains no member that is
// both alive and in a routable state.
var ErrNoAvailableMember = errors.New("no available member")

// rankTables define the order of preference of the routable states. A lower rank
// is better. Random preference has no table, so all states rank equally.
var rankTables = map[Preference][]State{
	PreferLeader:          {StateLeader, StateFollower, StateReadOnlyReplica, StateReadOnlyLeaderless},
	PreferFollower:        {StateFollower, StateLeader, StateReadOnlyReplica, StateReadOnlyLeaderless},
	PreferReadOnlyReplica: {StateReadOnlyReplica, StateReadOnlyLeaderless, StateLeader, StateFollower},
}

func rank(pref Preference, state State) int {
	for idx, s := range rankTables[pref] {
		if s == state {
			return idx
		}
	}

	return 0
}

func eligible(topology Topology) []Member {
	return generic.Filter(topology.Members, func(m Member) bool {
		return m.IsRoutable()
	})
}

// Select returns the best member of the topology according to the preference.
// Members of equal rank keep their gossip order, so the first one wins. Dead and
// non-routable members are never returned.
func Select(topology Topology, pref Preference) (Member, error) {
	candidates := eligible(topology)
	if len(candidates) == 0 {
		return Member{}, ErrNoAvailableMember
	}

	slices.SortStableFunc(candidates, func(a, b Member) int {
		return rank(pref, a.State) - rank(pref, b.State)
	})

	return candidates[0], nil
}

// SelectSeeded works like Select, but members of equal rank are ordered by a
// hash of the seed and the member id. Clients using different seeds spread over
// equally ranked members, while the choice of one client is stable for a given
// topology.
func SelectSeeded(topology Topology, pref Preference, seed uint32) (Member, error) {
	candidates := eligible(topology)
	if len(candidates) == 0 {
		return Member{}, ErrNoAvailableMember
	}

	weights := make(map[Member]uint32, len(candidates))
	for _, m := range candidates {
		weights[m] = murmur3.SeedSum32(seed, m.ID[:])
	}

	slices.SortStableFunc(candidates, func(a, b Member) int {
		if ra, rb := rank(pref, a.State), rank(pref, b.State); ra != rb {
			return ra - rb
		}

		switch wa, wb := weights[a], weights[b]; {
		case wa < wb:
			return -1
		case wa > wb:
			return 1
		default:
			return 0
		}
	})

	return candidates[0], nil
}
