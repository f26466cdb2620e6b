package membership

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMember_IsRoutable(t *testing.T) {
	m := &Member{State: StateLeader, IsAlive: true}
	assert.True(t, m.IsRoutable())

	m.IsAlive = false
	assert.False(t, m.IsRoutable())

	m = &Member{State: StateManager, IsAlive: true}
	assert.False(t, m.IsRoutable())
}

func TestTopology(t *testing.T) {
	topology := Topology{Members: []Member{
		{ID: uuid.New(), State: StateLeader, IsAlive: true, Addr: "a:2113"},
		{ID: uuid.New(), State: StateFollower, IsAlive: false, Addr: "b:2113"},
		{ID: uuid.New(), State: StateManager, IsAlive: true},
	}}

	assert.Equal(t, []string{"a:2113", "b:2113"}, topology.Addrs())
	assert.Equal(t, 2, topology.Alive())
}
