// Package rendezvous implements a cyclic barrier that can break.
package rendezvous

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"gitlab.com/slon/readerswriters/rw"
)

// Barrier lets a fixed number of parties wait for each other. When the last
// party arrives everyone proceeds and the barrier is ready for the next
// cycle.
//
// If a waiting party gives up (its ctx is done or the timeout fires) the
// current cycle breaks: everyone waiting in it gets rw.ErrBrokenRendezvous
// and so does every later Await, until Reset or an AwaitPhase for a later
// cycle.
type Barrier struct {
	parties int
	timeout time.Duration
	clock   clockwork.Clock

	mu  sync.Mutex
	gen *generation
}

type generation struct {
	phase   uint64
	arrived int
	done    chan struct{}
	tripped bool
	broken  bool
}

func newGeneration(phase uint64) *generation {
	return &generation{phase: phase, done: make(chan struct{})}
}

type Option func(*Barrier)

// WithTimeout limits how long a party waits for the others. Zero means
// forever.
func WithTimeout(d time.Duration) Option {
	return func(b *Barrier) { b.timeout = d }
}

func WithClock(c clockwork.Clock) Option {
	return func(b *Barrier) { b.clock = c }
}

func New(parties int, opts ...Option) *Barrier {
	if parties <= 0 {
		panic("rendezvous: parties must be positive")
	}
	b := &Barrier{
		parties: parties,
		clock:   clockwork.NewRealClock(),
		gen:     newGeneration(0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Barrier) Parties() int {
	return b.parties
}

// Await blocks until all parties have called Await in the current cycle.
func (b *Barrier) Await(ctx context.Context) error {
	b.mu.Lock()
	g := b.gen
	if g.broken {
		b.mu.Unlock()
		return rw.ErrBrokenRendezvous
	}
	return b.arrive(ctx, g)
}

// Phase returns the number of the first cycle that has not finished yet.
// Cycles are numbered from zero; a broken cycle counts as finished.
func (b *Barrier) Phase() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen.broken {
		return b.gen.phase + 1
	}
	return b.gen.phase
}

// AwaitPhase is Await for parties that keep track of cycle numbers.
//
// A party asking for a cycle that is already over fails at once with
// rw.ErrBrokenRendezvous. A party asking for a later cycle ends the current
// one: a broken cycle is replaced, and parties still waiting in a healthy
// one are released with rw.ErrBrokenRendezvous. This lets parties that gave
// up on a cycle meet again in the next one without Reset.
func (b *Barrier) AwaitPhase(ctx context.Context, phase uint64) error {
	b.mu.Lock()
	g := b.gen
	if phase < g.phase {
		b.mu.Unlock()
		return fmt.Errorf("%w: cycle %d is over", rw.ErrBrokenRendezvous, phase)
	}
	if phase > g.phase {
		if g.arrived > 0 {
			b.breakLocked(g)
		}
		g = newGeneration(phase)
		b.gen = g
	}
	if g.broken {
		b.mu.Unlock()
		return rw.ErrBrokenRendezvous
	}
	return b.arrive(ctx, g)
}

// arrive is called with b.mu held and releases it.
func (b *Barrier) arrive(ctx context.Context, g *generation) error {
	if err := ctx.Err(); err != nil {
		b.breakLocked(g)
		b.mu.Unlock()
		return rw.Interrupted(err)
	}

	g.arrived++
	if g.arrived == b.parties {
		g.tripped = true
		close(g.done)
		b.gen = newGeneration(g.phase + 1)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	var timeout <-chan time.Time
	if b.timeout > 0 {
		t := b.clock.NewTimer(b.timeout)
		defer t.Stop()
		timeout = t.Chan()
	}

	select {
	case <-g.done:
		b.mu.Lock()
		defer b.mu.Unlock()
		if g.broken {
			return rw.ErrBrokenRendezvous
		}
		return nil
	case <-ctx.Done():
		if b.giveUp(g) {
			return nil
		}
		return rw.Interrupted(ctx.Err())
	case <-timeout:
		if b.giveUp(g) {
			return nil
		}
		return fmt.Errorf("%w: nobody came within %s", rw.ErrBrokenRendezvous, b.timeout)
	}
}

// giveUp breaks g unless the last party got there first. It reports whether
// g has tripped.
func (b *Barrier) giveUp(g *generation) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g.tripped {
		return true
	}
	b.breakLocked(g)
	return false
}

func (b *Barrier) breakLocked(g *generation) {
	if g.broken {
		return
	}
	g.broken = true
	close(g.done)
}

// Reset breaks the current cycle, if anyone is waiting in it, and starts a
// fresh one.
func (b *Barrier) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen.arrived > 0 {
		b.breakLocked(b.gen)
	}
	b.gen = newGeneration(b.gen.phase + 1)
}

// Waiting returns the number of parties blocked in the current cycle.
func (b *Barrier) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen.broken {
		return 0
	}
	return b.gen.arrived
}

func (b *Barrier) Broken() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen.broken
}
