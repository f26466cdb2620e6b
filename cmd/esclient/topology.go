package main

import (
	"context"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/maxpoletaev/esclient/gossip"
	"github.com/maxpoletaev/esclient/internal/multierror"
	"github.com/maxpoletaev/esclient/membership"
)

const maxParallelReads = 8

// readTopologies gossips with every seed in parallel. A seed that fails does not
// stop the others: the topologies of the seeds that answered are returned, and
// an error only when none did.
func readTopologies(
	ctx context.Context,
	client gossip.Client,
	seeds []string,
	timeout time.Duration,
	logger kitlog.Logger,
) (map[string]membership.Topology, error) {
	var (
		g          errgroup.Group
		mut        sync.Mutex
		topologies = make(map[string]membership.Topology, len(seeds))
		errs       = multierror.New[string]()
	)

	g.SetLimit(maxParallelReads)

	for _, seed := range seeds {
		seed := seed

		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			topology, err := client.Read(ctx, seed)
			if err != nil {
				errs.Add(seed, err)
				return err
			}

			mut.Lock()
			topologies[seed] = topology
			mut.Unlock()

			return nil
		})
	}

	// The group is not tied to a context, so one failed seed does not cancel the others.
	err := g.Wait()

	if err != nil {
		if len(topologies) == 0 {
			return nil, errs
		}

		level.Warn(logger).Log("msg", "some seeds did not answer", "failed", errs.Len(), "err", errs)
	}

	return topologies, nil
}
