package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gitlab.com/slon/readerswriters/event"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func msg(seq uint64) Message {
	return Message{Role: event.Read, Seq: seq, Text: event.Read.Message()}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	defer q.Close()
	ctx := context.Background()

	for i := uint64(1); i <= 100; i++ {
		require.NoError(t, q.Put(ctx, msg(i)))
	}
	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 100, n)

	for i := uint64(1); i <= 100; i++ {
		m, err := q.Take(ctx)
		require.NoError(t, err)
		require.Equal(t, i, m.Seq)
	}

	n, err = q.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestQueueTakeWaits(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	got := make(chan Message)
	go func() {
		m, err := q.Take(context.Background())
		require.NoError(t, err)
		got <- m
	}()

	select {
	case <-got:
		t.Fatal("Take returned from an empty queue")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Put(context.Background(), msg(7)))
	require.Equal(t, uint64(7), (<-got).Seq)
}

func TestQueueCancelledTakeKeepsMessage(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Take(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, q.Put(context.Background(), msg(1)))
	m, err := q.Take(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), m.Seq)
}

func TestQueueForgetsCancelledTakers(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	for i := 0; i < 100; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		_, err := q.Take(ctx)
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	st, err := q.stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, st.takers)
	require.Zero(t, st.messages)
}

func TestQueueCancelledPut(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, q.Put(ctx, msg(1)), context.Canceled)

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()
	defer q.Close()
	ctx := context.Background()

	const producers, each = 8, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				require.NoError(t, q.Put(ctx, msg(uint64(i))))
			}
		}()
	}
	wg.Wait()

	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, producers*each, n)
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	taken := make(chan error)
	go func() {
		_, err := q.Take(ctx)
		taken <- err
	}()

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	require.ErrorIs(t, <-taken, ErrClosed)

	require.ErrorIs(t, q.Put(ctx, msg(1)), ErrClosed)
	_, err := q.Len(ctx)
	require.ErrorIs(t, err, ErrClosed)
}
