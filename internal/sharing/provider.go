// Package sharing turns a slow and possibly failing factory into a lazily built
// value shared by all callers, which is rebuilt once it is reported broken.
//
// Each build is a generation. A generation is started by the first caller that
// finds no usable value, and every concurrent caller waits for that same build
// instead of starting its own. A value is reported broken through the callback
// handed to the factory. The report only takes effect on the next access after
// the generation has resolved, so values that were already handed out are never
// swapped under their users.
package sharing

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/esclient/metrics"
)

// Factory builds the value of one generation from the input. The markBroken
// callback may be stored and called at any time, including before the factory
// returns, to report that the value is no longer usable. The argument of
// markBroken is the input for the next generation.
type Factory[I, O any] func(ctx context.Context, input I, markBroken func(next I)) (O, error)

type box[I, O any] struct {
	gen   uint64
	input I
	done  chan struct{}
	value O
	err   error

	// Guarded by the provider mutex.
	broken    bool
	delivered bool
	next      I
}

func (b *box[I, O]) resolved() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

type options struct {
	logger  log.Logger
	metrics *metrics.Registry
}

type Option func(*options)

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Provider shares the value built by the factory between concurrent callers.
type Provider[I, O any] struct {
	mut     sync.Mutex
	factory Factory[I, O]
	initial I
	current *box[I, O]
	gen     uint64
	logger  log.Logger
	metrics *metrics.Registry
}

// New creates a provider. Nothing is built until the first call to Current or Reset.
func New[I, O any](factory Factory[I, O], initial I, opts ...Option) *Provider[I, O] {
	o := options{
		logger: log.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &Provider[I, O]{
		factory: factory,
		initial: initial,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// start replaces the current generation with a new one and runs the factory in
// the background. Must be called with the mutex held.
func (p *Provider[I, O]) start(ctx context.Context, input I, reason string) *box[I, O] {
	p.gen++

	b := &box[I, O]{
		gen:   p.gen,
		input: input,
		done:  make(chan struct{}),
	}

	p.current = b
	p.metrics.RecordGeneration(reason)
	level.Debug(p.logger).Log("msg", "starting new generation", "gen", b.gen, "reason", reason)

	markBroken := func(next I) {
		p.markBroken(b, next)
	}

	go func() {
		defer close(b.done)

		b.value, b.err = p.factory(ctx, input, markBroken)
		if b.err != nil {
			level.Warn(p.logger).Log("msg", "generation failed", "gen", b.gen, "err", b.err)
		}
	}()

	return b
}

func (p *Provider[I, O]) markBroken(b *box[I, O], next I) {
	p.mut.Lock()
	defer p.mut.Unlock()

	// Superseded by a reset or a previous break.
	if p.current != b || b.broken {
		return
	}

	b.broken = true
	b.next = next

	level.Debug(p.logger).Log("msg", "generation marked broken", "gen", b.gen)
}

// acquire returns the generation the caller should wait for, starting a new one
// when there is none or the current one has resolved as broken or failed.
func (p *Provider[I, O]) acquire(ctx context.Context) *box[I, O] {
	p.mut.Lock()
	defer p.mut.Unlock()

	b := p.current

	switch {
	case b == nil:
		b = p.start(ctx, p.initial, "initial")
	case !b.resolved():
		// Pending generations are shared even when already reported broken.
	case b.broken && b.delivered:
		b = p.start(ctx, b.next, "broken")
	case b.err != nil:
		b = p.start(ctx, b.input, "failed")
	}

	return b
}

// deliver records that the value of a resolved generation reached a caller, so
// that a break reported for it may now be honored.
func (p *Provider[I, O]) deliver(b *box[I, O]) {
	p.mut.Lock()
	defer p.mut.Unlock()

	b.delivered = true
}

// Current returns the value of the active generation, building it first if
// needed. Concurrent callers share one build. If the build fails, every caller
// waiting for it receives the error, and the next call starts a new build. The
// context bounds the wait, and for the caller that starts a build, the build
// itself.
func (p *Provider[I, O]) Current(ctx context.Context) (O, error) {
	b := p.acquire(ctx)

	select {
	case <-b.done:
		p.deliver(b)
		return b.value, b.err
	case <-ctx.Done():
		var zero O
		return zero, ctx.Err()
	}
}

// Reset retires the current generation and immediately starts building a new
// one from the input. Callers already waiting for the old generation still
// receive its result.
func (p *Provider[I, O]) Reset(ctx context.Context, input I) {
	p.mut.Lock()
	defer p.mut.Unlock()

	p.start(ctx, input, "reset")
}

// Generation returns the id of the current generation, zero if nothing was built yet.
func (p *Provider[I, O]) Generation() uint64 {
	p.mut.Lock()
	defer p.mut.Unlock()

	return p.gen
}
