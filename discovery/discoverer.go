// Package discovery finds the cluster member to talk to by gossiping with the
// seeds and applying the node preference to the topology they report.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/esclient/gossip"
	"github.com/maxpoletaev/esclient/internal/generic"
	"github.com/maxpoletaev/esclient/membership"
	"github.com/maxpoletaev/esclient/metrics"
)

// Option configures the Discoverer.
type Option func(*Discoverer)

// WithTopologyHook registers a function called with every topology that was
// successfully read from a member, whether or not it had a usable member.
func WithTopologyHook(f func(membership.Topology)) Option {
	return func(d *Discoverer) {
		d.onTopology = f
	}
}

// Discoverer resolves the address of the preferred cluster member.
type Discoverer struct {
	gossip      gossip.Client
	seeds       []string
	maxAttempts int
	interval    time.Duration
	timeout     time.Duration
	preference  membership.Preference
	seed        uint32
	logger      log.Logger
	metrics     *metrics.Registry
	onTopology  func(membership.Topology)

	mut      sync.Mutex
	lastAddr string
}

func New(client gossip.Client, conf Config, opts ...Option) *Discoverer {
	d := &Discoverer{
		gossip:      client,
		seeds:       generic.Unique(conf.Seeds),
		maxAttempts: conf.MaxDiscoverAttempts,
		interval:    conf.DiscoveryInterval,
		timeout:     conf.GossipTimeout,
		preference:  conf.Preference,
		seed:        conf.SelectionSeed,
		logger:      conf.Logger,
		metrics:     conf.Metrics,
	}

	if d.maxAttempts < 1 {
		d.maxAttempts = 1
	}

	if d.timeout <= 0 {
		d.timeout = DefaultConfig().GossipTimeout
	}

	if d.logger == nil {
		d.logger = log.NewNopLogger()
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// LastKnownAddr returns the address found by the last successful discovery.
func (d *Discoverer) LastKnownAddr() string {
	d.mut.Lock()
	defer d.mut.Unlock()

	return d.lastAddr
}

// candidates returns the endpoints to gossip with during one round. The last
// discovered member goes first, so that discovery follows the live cluster
// rather than the bootstrap list.
func (d *Discoverer) candidates() []string {
	d.mut.Lock()
	last := d.lastAddr
	d.mut.Unlock()

	return generic.Unique(append([]string{last}, d.seeds...))
}

func (d *Discoverer) read(ctx context.Context, addr string) (membership.Topology, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.gossip.Read(ctx, addr)
}

// attempt makes one discovery round over all candidates.
func (d *Discoverer) attempt(ctx context.Context) (string, error) {
	candidates := d.candidates()
	if len(candidates) == 0 {
		return "", ErrNoSeeds
	}

	var lastErr error

	for _, addr := range candidates {
		topology, err := d.read(ctx, addr)
		if err != nil {
			// The caller is gone, there is no point in trying other candidates.
			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			d.metrics.RecordGossip("error")
			level.Debug(d.logger).Log("msg", "gossip failed", "addr", addr, "err", err)
			lastErr = fmt.Errorf("gossip %s: %w", addr, err)

			continue
		}

		if d.onTopology != nil {
			d.onTopology(topology)
		}

		member, err := membership.SelectSeeded(topology, d.preference, d.seed)
		if err != nil {
			d.metrics.RecordGossip("no_member")
			level.Debug(d.logger).Log("msg", "no eligible member", "addr", addr, "members", len(topology.Members))
			lastErr = fmt.Errorf("gossip %s: %w", addr, err)

			continue
		}

		d.metrics.RecordGossip("success")

		return member.Addr, nil
	}

	return "", lastErr
}

// Discover gossips with the last known member and the seeds until a member
// matching the node preference is found. Each failed round is followed by a
// pause; after MaxDiscoverAttempts failed rounds a *DiscoveryError is returned.
// Cancelling the context aborts discovery with the context error.
func (d *Discoverer) Discover(ctx context.Context) (string, error) {
	start := time.Now()

	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		addr, err := d.attempt(ctx)
		if err == nil {
			d.mut.Lock()
			d.lastAddr = addr
			d.mut.Unlock()

			d.metrics.RecordDiscovery(attempt, true, time.Since(start))
			level.Debug(d.logger).Log("msg", "discovered cluster member", "addr", addr, "attempt", attempt)

			return addr, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			d.metrics.RecordDiscovery(attempt, false, time.Since(start))
			return "", fmt.Errorf("discovery canceled: %w", ctxErr)
		}

		if errors.Is(err, ErrNoSeeds) {
			d.metrics.RecordDiscovery(attempt, false, time.Since(start))
			return "", err
		}

		lastErr = err

		level.Warn(d.logger).Log(
			"msg", "discovery attempt failed",
			"attempt", attempt,
			"max_attempts", d.maxAttempts,
			"err", err,
		)

		if attempt == d.maxAttempts {
			break
		}

		if err := sleep(ctx, d.interval); err != nil {
			d.metrics.RecordDiscovery(attempt, false, time.Since(start))
			return "", fmt.Errorf("discovery canceled: %w", err)
		}
	}

	d.metrics.RecordDiscovery(d.maxAttempts, false, time.Since(start))

	return "", &DiscoveryError{
		Attempts: d.maxAttempts,
		Err:      lastErr,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
