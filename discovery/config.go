package discovery

import (
	"time"

	"github.com/go-kit/log"

	"github.com/maxpoletaev/esclient/membership"
	"github.com/maxpoletaev/esclient/metrics"
)

type Config struct {
	// Seeds are the gossip endpoints (host:port) used to bootstrap discovery.
	Seeds []string
	// MaxDiscoverAttempts is the number of discovery rounds before giving up.
	MaxDiscoverAttempts int
	// DiscoveryInterval is the pause between two rounds.
	DiscoveryInterval time.Duration
	// GossipTimeout limits a single gossip call.
	GossipTimeout time.Duration
	// Preference decides which member is picked from the topology.
	Preference membership.Preference
	// SelectionSeed spreads clients over equally ranked members.
	SelectionSeed uint32
	Logger        log.Logger
	Metrics       *metrics.Registry
}

func DefaultConfig() Config {
	return Config{
		MaxDiscoverAttempts: 10,
		DiscoveryInterval:   100 * time.Millisecond,
		GossipTimeout:       5 * time.Second,
		Preference:          membership.PreferLeader,
		Logger:              log.NewNopLogger(),
	}
}
