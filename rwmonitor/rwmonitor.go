// Package rwmonitor solves readers–writers with a monitor that owns the
// reader count.
//
// All reader bookkeeping goes through monitor.synchronized, the Go spelling
// of a synchronized block. Entry and exit test the writer gate the same way
// package rwlock does, so writers are not kept out of a running read.
package rwmonitor

import (
	"context"

	"gitlab.com/slon/readerswriters/chanlock"
	"gitlab.com/slon/readerswriters/event"
	"gitlab.com/slon/readerswriters/rw"
)

const Name = "monitor"

// monitor is the reader count together with the lock that guards it.
type monitor struct {
	lock    *chanlock.Mutex
	readers rw.Counter
}

func (m *monitor) synchronized(ctx context.Context, fn func() error) error {
	if err := m.lock.Lock(ctx); err != nil {
		return err
	}
	defer m.lock.Unlock()
	return fn()
}

type Strategy struct {
	monitor monitor
	gate    *chanlock.Mutex

	opts rw.Options
}

var _ rw.Strategy = (*Strategy)(nil)

func New(opts ...rw.Option) *Strategy {
	return &Strategy{
		monitor: monitor{lock: chanlock.New()},
		gate:    chanlock.New(),
		opts:    rw.NewOptions(opts...),
	}
}

func (s *Strategy) Name() string {
	return Name
}

func (s *Strategy) Readers() int {
	return s.monitor.readers.Load()
}

func (s *Strategy) Read(ctx context.Context) error {
	err := s.monitor.synchronized(ctx, func() error {
		if !s.monitor.readers.Enter() {
			return nil
		}
		if err := s.gate.AcquireThenRelease(ctx); err != nil {
			s.monitor.readers.Leave()
			return err
		}
		return nil
	})
	if err != nil {
		return s.opts.Fail(Name, event.Read, rw.Interrupted(err))
	}

	s.opts.Do(ctx, Name, event.Read)

	ctx = context.WithoutCancel(ctx)
	_ = s.monitor.synchronized(ctx, func() error {
		if s.monitor.readers.Leave() {
			return s.gate.AcquireThenRelease(ctx)
		}
		return nil
	})
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
