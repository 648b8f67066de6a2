// Package rw holds what the five readers–writers strategies share: the
// Strategy contract, the reader counter, options and errors.
package rw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/slon/readerswriters/event"
)

var (
	// ErrInterruptedWait is returned when ctx is done while the caller is
	// blocked on a semaphore, lock, mailbox or rendezvous.
	ErrInterruptedWait = errors.New("interrupted wait")

	// ErrBrokenRendezvous is returned to every party of a rendezvous that
	// some participant failed to reach.
	ErrBrokenRendezvous = errors.New("broken rendezvous")
)

// Strategy is one solution of the readers–writers problem.
//
// Read and Write may be called from any number of goroutines. A successful
// call emits exactly one event after its critical section.
type Strategy interface {
	Name() string
	Read(ctx context.Context) error
	Write(ctx context.Context) error
}

// Interrupted wraps the error returned by a cancelled acquisition so that it
// matches both ErrInterruptedWait and the context error.
func Interrupted(err error) error {
	if errors.Is(err, ErrInterruptedWait) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInterruptedWait, err)
}

// Section is the body of a critical section.
type Section func(ctx context.Context, role event.Role)

type Options struct {
	Sink    event.Sink
	Logger  *zap.Logger
	Section Section
	Now     func() time.Time
}

type Option func(*Options)

func WithSink(s event.Sink) Option {
	return func(o *Options) { o.Sink = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithSection sets the work done inside the critical section.
func WithSection(s Section) Option {
	return func(o *Options) { o.Section = s }
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

func NewOptions(opts ...Option) Options {
	o := Options{
		Sink:    event.Discard,
		Logger:  zap.NewNop(),
		Section: func(context.Context, event.Role) {},
		Now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Do runs the critical section body and emits its event.
func (o Options) Do(ctx context.Context, strategy string, role event.Role) {
	o.Section(ctx, role)
	o.Sink.Emit(event.Event{Strategy: strategy, Role: role, At: o.Now()})
}

// Fail logs err and returns it.
func (o Options) Fail(strategy string, role event.Role, err error) error {
	o.Logger.Error("operation failed",
		zap.String("strategy", strategy),
		zap.String("role", string(role)),
		zap.Error(err),
	)
	return err
}
