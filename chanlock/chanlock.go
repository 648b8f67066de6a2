// Package chanlock is a mutual exclusion lock whose Lock can be cancelled.
package chanlock

import "context"

// A Mutex is a mutual exclusion lock backed by a single token channel.
// The token is in the channel while the mutex is unlocked.
//
// Like sync.Mutex, a locked Mutex is not associated with a particular
// goroutine.
type Mutex struct {
	ch chan struct{}
}

// New creates an unlocked *Mutex.
func New() *Mutex {
	m := &Mutex{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

// Lock blocks until the mutex is available or ctx is done.
// On ctx error the mutex is not held.
func (m *Mutex) Lock(ctx context.Context) error {
	// уже отменённый контекст не должен забирать свободный токен
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-m.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryLock takes the mutex if it is free right now.
func (m *Mutex) TryLock() bool {
	select {
	case <-m.ch:
		return true
	default:
		return false
	}
}

// Unlock unlocks m. It is a run-time error if m is not locked.
func (m *Mutex) Unlock() {
	select {
	case m.ch <- struct{}{}:
	default:
		panic("chanlock: unlock of unlocked mutex")
	}
}

// AcquireThenRelease waits until nobody holds m, takes it and gives it back
// at once. The caller never holds m afterwards; the call only proves that m
// was free at some instant.
func (m *Mutex) AcquireThenRelease(ctx context.Context) error {
	if err := m.Lock(ctx); err != nil {
		return err
	}
	m.Unlock()
	return nil
}
