package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	state, err := ParseState("Leader")
	require.NoError(t, err)
	assert.Equal(t, StateLeader, state)

	state, err = ParseState("READ_ONLY_REPLICA")
	require.NoError(t, err)
	assert.Equal(t, StateReadOnlyReplica, state)

	state, err = ParseState("preReadOnlyReplica")
	require.NoError(t, err)
	assert.Equal(t, StatePreReadOnlyReplica, state)

	_, err = ParseState("Overlord")
	require.Error(t, err)
}

func TestState_IsRoutable(t *testing.T) {
	assert.True(t, StateLeader.IsRoutable())
	assert.True(t, StateFollower.IsRoutable())
	assert.True(t, StateReadOnlyReplica.IsRoutable())
	assert.True(t, StateReadOnlyLeaderless.IsRoutable())
	assert.False(t, StatePreLeader.IsRoutable())
	assert.False(t, StateManager.IsRoutable())
	assert.False(t, StateUnknown.IsRoutable())
}

func TestParsePreference(t *testing.T) {
	cases := map[string]Preference{
		"":                  PreferRandom,
		"random":            PreferRandom,
		"Leader":            PreferLeader,
		"follower":          PreferFollower,
		"ReadOnlyReplica":   PreferReadOnlyReplica,
		"read_only_replica": PreferReadOnlyReplica,
	}

	for in, want := range cases {
		got, err := ParsePreference(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePreference("closest")
	require.Error(t, err)
}

func TestTopology_Addrs(t *testing.T) {
	topology := Topology{Members: []Member{
		{Addr: "a:2113", IsAlive: true},
		{Addr: ""},
		{Addr: "b:2113"},
	}}

	assert.Equal(t, []string{"a:2113", "b:2113"}, topology.Addrs())
	assert.Equal(t, 1, topology.Alive())
}
