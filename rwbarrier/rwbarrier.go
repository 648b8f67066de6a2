// Package rwbarrier alternates one reader and one writer with a two-party
// rendezvous.
//
// This is not the general problem: there is exactly one reader-role and one
// writer-role participant. Each round the reader reads between rendezvous
// #1 and #2 and the writer writes after #2, so events go read, write, read,
// write... A third concurrent caller breaks the protocol.
//
// A rendezvous that times out or is cancelled fails that round for both
// roles. The next call of each role starts a fresh round.
package rwbarrier

import (
	"context"
	"time"

	"gitlab.com/slon/readerswriters/event"
	"gitlab.com/slon/readerswriters/rendezvous"
	"gitlab.com/slon/readerswriters/rw"
)

const (
	Name = "barrier"

	DefaultTimeout = 5 * time.Second
)

type Strategy struct {
	barrier *rendezvous.Barrier
	opts    rw.Options
}

var _ rw.Strategy = (*Strategy)(nil)

// New uses a two-party rendezvous that breaks after DefaultTimeout.
func New(opts ...rw.Option) *Strategy {
	return NewWithBarrier(rendezvous.New(2, rendezvous.WithTimeout(DefaultTimeout)), opts...)
}

func NewWithBarrier(b *rendezvous.Barrier, opts ...rw.Option) *Strategy {
	if b.Parties() != 2 {
		panic("rwbarrier: rendezvous must have exactly two parties")
	}
	return &Strategy{barrier: b, opts: rw.NewOptions(opts...)}
}

func (s *Strategy) Name() string {
	return Name
}

// Parties is the number of participants, one per role.
func (s *Strategy) Parties() int {
	return s.barrier.Parties()
}

// round returns the cycle of rendezvous #1 for a call starting now. Round k
// uses cycles 2k and 2k+1, and a call always joins the first round that has
// not started, so both roles meet again after a broken round.
func (s *Strategy) round() uint64 {
	p := s.barrier.Phase()
	return p + p%2
}

// Read waits for the writer, reads, then waits for the writer again. The
// read event is emitted even if the second rendezvous fails.
func (s *Strategy) Read(ctx context.Context) error {
	first := s.round()
	if err := s.barrier.AwaitPhase(ctx, first); err != nil {
		return s.opts.Fail(Name, event.Read, err)
	}

	s.opts.Do(ctx, Name, event.Read)

	if err := s.barrier.AwaitPhase(ctx, first+1); err != nil {
		return s.opts.Fail(Name, event.Read, err)
	}
	return nil
}

// Write waits until the reader has finished its read and then writes.
func (s *Strategy) Write(ctx context.Context) error {
	first := s.round()
	for i := uint64(0); i < 2; i++ {
		if err := s.barrier.AwaitPhase(ctx, first+i); err != nil {
			return s.opts.Fail(Name, event.Write, err)
		}
	}

	s.opts.Do(ctx, Name, event.Write)
	return nil
}

// Reset releases whoever is waiting with rw.ErrBrokenRendezvous and starts
// a new round.
func (s *Strategy) Reset() {
	s.barrier.Reset()
}
