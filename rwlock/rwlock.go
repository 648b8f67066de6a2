// Package rwlock solves readers–writers with two plain exclusion locks.
//
// Readers never hold the writer gate. The first and the last reader only
// wait until the gate is free, take it and drop it again. A writer can
// therefore start while readers are still reading; this package keeps that
// behaviour on purpose.
package rwlock

import (
	"context"

	"gitlab.com/slon/readerswriters/chanlock"
	"gitlab.com/slon/readerswriters/event"
	"gitlab.com/slon/readerswriters/rw"
)

const Name = "lock"

type Strategy struct {
	guard   *chanlock.Mutex
	gate    *chanlock.Mutex
	readers rw.Counter

	opts rw.Options
}

var _ rw.Strategy = (*Strategy)(nil)

func New(opts ...rw.Option) *Strategy {
	return &Strategy{
		guard: chanlock.New(),
		gate:  chanlock.New(),
		opts:  rw.NewOptions(opts...),
	}
}

func (s *Strategy) Name() string {
	return Name
}

func (s *Strategy) Readers() int {
	return s.readers.Load()
}

func (s *Strategy) Read(ctx context.Context) error {
	if err := s.guard.Lock(ctx); err != nil {
		return s.opts.Fail(Name, event.Read, rw.Interrupted(err))
	}
	if s.readers.Enter() {
		if err := s.gate.AcquireThenRelease(ctx); err != nil {
			s.readers.Leave()
			s.guard.Unlock()
			return s.opts.Fail(Name, event.Read, rw.Interrupted(err))
		}
	}
	s.guard.Unlock()

	s.opts.Do(ctx, Name, event.Read)

	ctx = context.WithoutCancel(ctx)
	_ = s.guard.Lock(ctx)
	if s.readers.Leave() {
		_ = s.gate.AcquireThenRelease(ctx)
	}
	s.guard.Unlock()
	return nil
}

func (s *Strategy) Write(ctx context.Context) error {
	if err := s.gate.Lock(ctx); err != nil {
		return s.opts.Fail(Name, event.Write, rw.Interrupted(err))
	}
	defer s.gate.Unlock()

	s.opts.Do(ctx, Name, event.Write)
	return nil
}
