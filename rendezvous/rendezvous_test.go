package rendezvous

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gitlab.com/slon/readerswriters/rw"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func await(ctx context.Context, b *Barrier) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- b.Await(ctx) }()
	return ch
}

func TestNewPanics(t *testing.T) {
	require.Panics(t, func() { New(0) })
}

func TestSingleParty(t *testing.T) {
	b := New(1)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Await(context.Background()))
	}
}

func TestTwoParties(t *testing.T) {
	b := New(2)

	first := await(context.Background(), b)
	require.Eventually(t, func() bool { return b.Waiting() == 1 }, time.Second, time.Millisecond)

	select {
	case <-first:
		t.Fatal("first party passed alone")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, b.Await(context.Background()))
	require.NoError(t, <-first)
	require.Zero(t, b.Waiting())
}

func TestCyclic(t *testing.T) {
	const parties, rounds = 4, 50
	b := New(parties)

	var wg sync.WaitGroup
	errs := make(chan error, parties*rounds)
	for p := 0; p < parties; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				errs <- b.Await(context.Background())
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.False(t, b.Broken())
}

func TestTimeoutBreaks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := New(2, WithTimeout(time.Second), WithClock(clock))

	waiting := await(context.Background(), b)
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	require.ErrorIs(t, <-waiting, rw.ErrBrokenRendezvous)
	require.True(t, b.Broken())

	require.ErrorIs(t, b.Await(context.Background()), rw.ErrBrokenRendezvous, "stays broken")
	require.Zero(t, b.Waiting())

	b.Reset()
	require.False(t, b.Broken())

	second := await(context.Background(), b)
	require.NoError(t, b.Await(context.Background()))
	require.NoError(t, <-second)
}

func TestCancelBreaksOthers(t *testing.T) {
	b := New(3)

	other := await(context.Background(), b)
	ctx, cancel := context.WithCancel(context.Background())
	cancelled := await(ctx, b)
	require.Eventually(t, func() bool { return b.Waiting() == 2 }, time.Second, time.Millisecond)

	cancel()

	err := <-cancelled
	require.ErrorIs(t, err, rw.ErrInterruptedWait)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, <-other, rw.ErrBrokenRendezvous)
}

func TestCancelledOnArrival(t *testing.T) {
	b := New(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, b.Await(ctx), rw.ErrInterruptedWait)
	require.True(t, b.Broken())
}

func TestResetWakesWaiters(t *testing.T) {
	b := New(2)
	waiting := await(context.Background(), b)
	require.Eventually(t, func() bool { return b.Waiting() == 1 }, time.Second, time.Millisecond)

	b.Reset()
	require.ErrorIs(t, <-waiting, rw.ErrBrokenRendezvous)
	require.False(t, b.Broken())
}

func awaitPhase(ctx context.Context, b *Barrier, phase uint64) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- b.AwaitPhase(ctx, phase) }()
	return ch
}

func TestPhase(t *testing.T) {
	b := New(2)
	require.Equal(t, uint64(0), b.Phase())

	first := awaitPhase(context.Background(), b, 0)
	require.NoError(t, b.AwaitPhase(context.Background(), 0))
	require.NoError(t, <-first)
	require.Equal(t, uint64(1), b.Phase())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, b.AwaitPhase(ctx, 1), rw.ErrInterruptedWait)
	require.Equal(t, uint64(2), b.Phase(), "a broken cycle is finished")
}

func TestAwaitPhaseOver(t *testing.T) {
	b := New(2)

	first := awaitPhase(context.Background(), b, 0)
	require.NoError(t, b.AwaitPhase(context.Background(), 0))
	require.NoError(t, <-first)

	require.ErrorIs(t, b.AwaitPhase(context.Background(), 0), rw.ErrBrokenRendezvous)
	require.Zero(t, b.Waiting())
}

func TestAwaitPhaseReplacesBroken(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := New(2, WithTimeout(time.Second), WithClock(clock))

	alone := awaitPhase(context.Background(), b, 0)
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	require.ErrorIs(t, <-alone, rw.ErrBrokenRendezvous)
	require.True(t, b.Broken())

	// a late party for the broken cycle is told so
	require.ErrorIs(t, b.AwaitPhase(context.Background(), 0), rw.ErrBrokenRendezvous)

	// both move on to the next cycle and meet there
	next := awaitPhase(context.Background(), b, 2)
	require.Eventually(t, func() bool { return b.Waiting() == 1 }, time.Second, time.Millisecond)
	require.False(t, b.Broken())
	require.NoError(t, b.AwaitPhase(context.Background(), 2))
	require.NoError(t, <-next)
	require.Equal(t, uint64(3), b.Phase())
}

func TestAwaitPhaseReleasesStragglers(t *testing.T) {
	b := New(2)

	behind := awaitPhase(context.Background(), b, 1)
	require.Eventually(t, func() bool { return b.Waiting() == 1 }, time.Second, time.Millisecond)

	ahead := awaitPhase(context.Background(), b, 2)
	require.ErrorIs(t, <-behind, rw.ErrBrokenRendezvous)

	require.NoError(t, b.AwaitPhase(context.Background(), 2))
	require.NoError(t, <-ahead)
}
