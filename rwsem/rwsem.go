// Package rwsem solves readers–writers with three binary semaphores.
//
// The first reader takes the writer gate on behalf of every reader and the
// last one gives it back. Readers are never made to wait for a writer that
// is merely queued, so a steady stream of readers starves writers.
package rwsem

import (
	"context"

	"golang.org/x/sync/semaphore"

	"gitlab.com/slon/readerswriters/event"
	"gitlab.com/slon/readerswriters/rw"
)

const Name = "semaphore"

type Strategy struct {
	turnstile *semaphore.Weighted // one reader at a time through entry
	guard     *semaphore.Weighted // protects readers
	gate      *semaphore.Weighted // held by a writer or by the reader group
	readers   rw.Counter

	opts rw.Options
}

var _ rw.Strategy = (*Strategy)(nil)

func New(opts ...rw.Option) *Strategy {
	return &Strategy{
		turnstile: semaphore.NewWeighted(1),
		guard:     semaphore.NewWeighted(1),
		gate:      semaphore.NewWeighted(1),
		opts:      rw.NewOptions(opts...),
	}
}

func (s *Strategy) Name() string {
	return Name
}

// Readers returns the current reader count.
func (s *Strategy) Readers() int {
	return s.readers.Load()
}

func (s *Strategy) Read(ctx context.Context) error {
	if err := s.enter(ctx); err != nil {
		return s.opts.Fail(Name, event.Read, rw.Interrupted(err))
	}

	s.opts.Do(ctx, Name, event.Read)

	s.leave(context.WithoutCancel(ctx))
	return nil
}

func (s *Strategy) enter(ctx context.Context) error {
	if err := s.turnstile.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.turnstile.Release(1)

	if err := s.guard.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.guard.Release(1)

	if s.readers.Enter() {
		if err := s.gate.Acquire(ctx, 1); err != nil {
			s.readers.Leave()
			return err
		}
	}
	return nil
}

func (s *Strategy) leave(ctx context.Context) {
	// ctx never ends here, so the error is always nil
	_ = s.guard.Acquire(ctx, 1)
	defer s.guard.Release(1)

	if s.readers.Leave() {
		s.gate.Release(1)
	}
}

func (s *Strategy) Write(ctx context.Context) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return s.opts.Fail(Name, event.Write, rw.Interrupted(err))
	}
	defer s.gate.Release(1)

	s.opts.Do(ctx, Name, event.Write)
	return nil
}
