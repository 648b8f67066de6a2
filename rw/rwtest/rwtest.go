// Package rwtest has helpers for testing strategies.
package rwtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/slon/readerswriters/event"
)

// Latch holds every critical section of one role until Release.
type Latch struct {
	role    event.Role
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func NewLatch(role event.Role) *Latch {
	return &Latch{
		role:    role,
		entered: make(chan struct{}, 128),
		release: make(chan struct{}),
	}
}

func (l *Latch) Section(ctx context.Context, role event.Role) {
	if role != l.role {
		return
	}
	l.entered <- struct{}{}
	<-l.release
}

// Entered receives once per section that reached the latch.
func (l *Latch) Entered() <-chan struct{} {
	return l.entered
}

func (l *Latch) Release() {
	l.once.Do(func() { close(l.release) })
}

// Go runs op in a goroutine and returns its result channel.
func Go(ctx context.Context, op func(context.Context) error) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- op(ctx) }()
	return ch
}

// Blocked fails the test if ch yields within d.
func Blocked(t *testing.T, ch <-chan error, d time.Duration) {
	t.Helper()
	select {
	case err := <-ch:
		require.Failf(t, "operation was expected to block", "returned %v", err)
	case <-time.After(d):
	}
}

// Wait returns what ch yields, failing the test after d.
func Wait(t *testing.T, ch <-chan error, d time.Duration) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(d):
		require.FailNow(t, "operation did not finish in time")
		return nil
	}
}

// WaitEntered waits for one section to reach the latch.
func WaitEntered(t *testing.T, l *Latch, d time.Duration) {
	t.Helper()
	select {
	case <-l.Entered():
	case <-time.After(d):
		require.FailNow(t, "critical section was not entered in time")
	}
}
