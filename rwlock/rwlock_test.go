package rwlock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"gitlab.com/slon/readerswriters/event"
	"gitlab.com/slon/readerswriters/rw"
	"gitlab.com/slon/readerswriters/rw/rwtest"
)

const (
	blockFor = 50 * time.Millisecond
	waitFor  = 5 * time.Second
)

func both(r, w *rwtest.Latch) rw.Section {
	return func(ctx context.Context, role event.Role) {
		r.Section(ctx, role)
		w.Section(ctx, role)
	}
}

func TestWritersExcludeEachOther(t *testing.T) {
	probe := rw.NewProbe(time.Millisecond)
	sink := event.NewCollector()
	s := New(rw.WithSection(probe.Section), rw.WithSink(sink))

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 10; j++ {
				if err := s.Write(context.Background()); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Zero(t, probe.Stats().Overlaps)
	require.Equal(t, 80, sink.Count(event.Write))
}

func TestReadersShareTheSection(t *testing.T) {
	const n = 5

	var inside sync.WaitGroup
	inside.Add(n)
	s := New(rw.WithSection(func(context.Context, event.Role) {
		inside.Done()
		inside.Wait()
	}))

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error { return s.Read(context.Background()) })
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	require.NoError(t, rwtest.Wait(t, done, waitFor))
	require.Zero(t, s.Readers())
}

func TestSequentialReadsLeaveNoReaders(t *testing.T) {
	s := New()
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Read(context.Background()))
	}
	require.Zero(t, s.Readers())
	require.True(t, s.gate.TryLock(), "readers never keep the gate")
	s.gate.Unlock()
}

func TestFirstReaderWaitsForWriter(t *testing.T) {
	latch := rwtest.NewLatch(event.Write)
	sink := event.NewCollector()
	s := New(rw.WithSection(latch.Section), rw.WithSink(sink))

	write := rwtest.Go(context.Background(), s.Write)
	rwtest.WaitEntered(t, latch, waitFor)

	read := rwtest.Go(context.Background(), s.Read)
	rwtest.Blocked(t, read, blockFor)

	latch.Release()
	require.NoError(t, rwtest.Wait(t, write, waitFor))
	require.NoError(t, rwtest.Wait(t, read, waitFor))
	require.Equal(t, []event.Role{event.Write, event.Read}, sink.Roles())
}

func TestWriterRunsDuringRead(t *testing.T) {
	latch := rwtest.NewLatch(event.Read)
	sink := event.NewCollector()
	s := New(rw.WithSection(latch.Section), rw.WithSink(sink))

	read := rwtest.Go(context.Background(), s.Read)
	rwtest.WaitEntered(t, latch, waitFor)
	require.Equal(t, 1, s.Readers())

	// the gate was only tested on entry, so the writer is not held back
	require.NoError(t, s.Write(context.Background()))
	require.Equal(t, 1, s.Readers())

	latch.Release()
	require.NoError(t, rwtest.Wait(t, read, waitFor))
	require.Zero(t, s.Readers())
	require.Equal(t, []event.Role{event.Write, event.Read}, sink.Roles())
}

func TestLastReaderWaitsForWriter(t *testing.T) {
	readLatch := rwtest.NewLatch(event.Read)
	writeLatch := rwtest.NewLatch(event.Write)
	s := New(rw.WithSection(both(readLatch, writeLatch)))

	read := rwtest.Go(context.Background(), s.Read)
	rwtest.WaitEntered(t, readLatch, waitFor)

	write := rwtest.Go(context.Background(), s.Write)
	rwtest.WaitEntered(t, writeLatch, waitFor)

	readLatch.Release()
	rwtest.Blocked(t, read, blockFor)

	writeLatch.Release()
	require.NoError(t, rwtest.Wait(t, write, waitFor))
	require.NoError(t, rwtest.Wait(t, read, waitFor))
	require.Zero(t, s.Readers())
}

func TestCancelFirstReaderRollsBack(t *testing.T) {
	latch := rwtest.NewLatch(event.Write)
	s := New(rw.WithSection(latch.Section))

	write := rwtest.Go(context.Background(), s.Write)
	rwtest.WaitEntered(t, latch, waitFor)

	ctx, cancel := context.WithTimeout(context.Background(), blockFor)
	defer cancel()
	err := s.Read(ctx)
	require.ErrorIs(t, err, rw.ErrInterruptedWait)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, s.Readers())
	require.True(t, s.guard.TryLock(), "guard must be released on failure")
	s.guard.Unlock()

	latch.Release()
	require.NoError(t, rwtest.Wait(t, write, waitFor))
	require.NoError(t, s.Read(context.Background()))
}

func TestCancelBlockedWriter(t *testing.T) {
	latch := rwtest.NewLatch(event.Write)
	sink := event.NewCollector()
	s := New(rw.WithSection(latch.Section), rw.WithSink(sink))

	first := rwtest.Go(context.Background(), s.Write)
	rwtest.WaitEntered(t, latch, waitFor)

	ctx, cancel := context.WithCancel(context.Background())
	second := rwtest.Go(ctx, s.Write)
	rwtest.Blocked(t, second, blockFor)
	cancel()
	require.ErrorIs(t, rwtest.Wait(t, second, waitFor), rw.ErrInterruptedWait)

	latch.Release()
	require.NoError(t, rwtest.Wait(t, first, waitFor))
	require.Equal(t, 1, sink.Count(event.Write))
}
