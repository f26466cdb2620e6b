package membership

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func member(state State, alive bool, addr string) Member {
	return Member{
		ID:      uuid.New(),
		State:   state,
		IsAlive: alive,
		Addr:    addr,
	}
}

func TestSelect_PrefersLeader(t *testing.T) {
	topology := Topology{Members: []Member{
		member(StateFollower, true, "b:2113"),
		member(StateLeader, true, "a:2113"),
		member(StateReadOnlyReplica, true, "c:2113"),
	}}

	got, err := Select(topology, PreferLeader)
	require.NoError(t, err)
	require.Equal(t, "a:2113", got.Addr)
}

func TestSelect_FallsBackWhenLeaderIsDead(t *testing.T) {
	topology := Topology{Members: []Member{
		member(StateLeader, false, "a:2113"),
		member(StateReadOnlyReplica, true, "c:2113"),
		member(StateFollower, true, "b:2113"),
	}}

	got, err := Select(topology, PreferLeader)
	require.NoError(t, err)
	require.Equal(t, "b:2113", got.Addr)
}

func TestSelect_PrefersFollower(t *testing.T) {
	topology := Topology{Members: []Member{
		member(StateLeader, true, "a:2113"),
		member(StateFollower, true, "b:2113"),
	}}

	got, err := Select(topology, PreferFollower)
	require.NoError(t, err)
	require.Equal(t, "b:2113", got.Addr)

	topology.Members[1].IsAlive = false

	got, err = Select(topology, PreferFollower)
	require.NoError(t, err)
	require.Equal(t, "a:2113", got.Addr)
}

func TestSelect_PrefersReadOnlyReplica(t *testing.T) {
	topology := Topology{Members: []Member{
		member(StateLeader, true, "a:2113"),
		member(StateFollower, true, "b:2113"),
		member(StateReadOnlyLeaderless, true, "d:2113"),
	}}

	got, err := Select(topology, PreferReadOnlyReplica)
	require.NoError(t, err)
	require.Equal(t, "d:2113", got.Addr)

	topology.Members[2].IsAlive = false

	got, err = Select(topology, PreferReadOnlyReplica)
	require.NoError(t, err)
	require.Equal(t, "a:2113", got.Addr)
}

func TestSelect_RandomKeepsGossipOrder(t *testing.T) {
	topology := Topology{Members: []Member{
		member(StateManager, true, "m:2113"),
		member(StateReadOnlyReplica, true, "c:2113"),
		member(StateLeader, true, "a:2113"),
	}}

	got, err := Select(topology, PreferRandom)
	require.NoError(t, err)
	require.Equal(t, "c:2113", got.Addr)
}

func TestSelect_NeverReturnsNonRoutable(t *testing.T) {
	nonRoutable := []State{
		StateManager, StateShutdown, StateShuttingDown, StateUnknown, StateInitializing,
		StateCatchingUp, StateResigningLeader, StatePreLeader, StatePreReplica,
		StatePreReadOnlyReplica, StateClone, StateDiscoverLeader,
	}

	for _, pref := range []Preference{PreferLeader, PreferFollower, PreferReadOnlyReplica, PreferRandom} {
		members := make([]Member, 0, len(nonRoutable)+2)
		for _, state := range nonRoutable {
			members = append(members, member(state, true, "bad:2113"))
		}

		members = append(members, member(StateLeader, false, "dead:2113"))

		_, err := Select(Topology{Members: members}, pref)
		require.ErrorIs(t, err, ErrNoAvailableMember, pref.String())

		members = append(members, member(StateReadOnlyLeaderless, true, "good:2113"))

		got, err := Select(Topology{Members: members}, pref)
		require.NoError(t, err)
		require.Equal(t, "good:2113", got.Addr, pref.String())
	}
}

func TestSelect_EmptyTopology(t *testing.T) {
	_, err := Select(Topology{}, PreferLeader)
	require.ErrorIs(t, err, ErrNoAvailableMember)
}

func TestSelectSeeded_RespectsRank(t *testing.T) {
	topology := Topology{Members: []Member{
		member(StateFollower, true, "b:2113"),
		member(StateFollower, true, "c:2113"),
		member(StateLeader, true, "a:2113"),
	}}

	for seed := uint32(0); seed < 20; seed++ {
		got, err := SelectSeeded(topology, PreferLeader, seed)
		require.NoError(t, err)
		require.Equal(t, "a:2113", got.Addr)

		got, err = SelectSeeded(topology, PreferFollower, seed)
		require.NoError(t, err)
		require.Equal(t, StateFollower, got.State)
	}
}

func TestSelectSeeded_StableForSameSeed(t *testing.T) {
	topology := Topology{Members: []Member{
		member(StateFollower, true, "a:2113"),
		member(StateFollower, true, "b:2113"),
		member(StateFollower, true, "c:2113"),
	}}

	first, err := SelectSeeded(topology, PreferRandom, 42)
	require.NoError(t, err)

	// Reordering the gossip must not change the choice.
	reversed := Topology{Members: []Member{topology.Members[2], topology.Members[1], topology.Members[0]}}

	for i := 0; i < 10; i++ {
		got, err := SelectSeeded(reversed, PreferRandom, 42)
		require.NoError(t, err)
		require.Equal(t, first.Addr, got.Addr)
	}
}

func TestSelectSeeded_SpreadsAcrossSeeds(t *testing.T) {
	topology := Topology{Members: []Member{
		member(StateFollower, true, "a:2113"),
		member(StateFollower, true, "b:2113"),
		member(StateFollower, true, "c:2113"),
	}}

	chosen := make(map[string]struct{})

	for seed := uint32(0); seed < 100; seed++ {
		got, err := SelectSeeded(topology, PreferRandom, seed)
		require.NoError(t, err)

		chosen[got.Addr] = struct{}{}
	}

	require.Greater(t, len(chosen), 1)
}
