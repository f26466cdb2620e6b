package main

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/esclient/gossip/mock"
	"github.com/maxpoletaev/esclient/membership"
)

func TestReadTopologies_SkipsFailedSeeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)

	topology := membership.Topology{Members: []membership.Member{
		{ID: uuid.New(), State: membership.StateLeader, IsAlive: true, Addr: "a:2113"},
	}}

	client.EXPECT().Read(gomock.Any(), "a:2113").
		DoAndReturn(func(ctx context.Context, addr string) (membership.Topology, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok)

			return topology, nil
		})

	client.EXPECT().Read(gomock.Any(), "b:2113").Return(membership.Topology{}, assert.AnError)

	topologies, err := readTopologies(context.Background(), client, []string{"a:2113", "b:2113"}, time.Second, log.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, topologies, 1)
	require.Equal(t, topology, topologies["a:2113"])
}

func TestReadTopologies_NoSeedAnswered(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)

	client.EXPECT().Read(gomock.Any(), gomock.Any()).Return(membership.Topology{}, assert.AnError).Times(2)

	topologies, err := readTopologies(context.Background(), client, []string{"a:2113", "b:2113"}, time.Second, log.NewNopLogger())
	require.ErrorIs(t, err, assert.AnError)
	require.Nil(t, topologies)
	assert.Contains(t, err.Error(), "a:2113")
	assert.Contains(t, err.Error(), "b:2113")
}
