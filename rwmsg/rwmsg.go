// Package rwmsg does readers–writers by message passing.
//
// Readers post to one mailbox and writers to another. Posting is a
// notification only: nothing stops a writer from running next to a reader.
package rwmsg

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"gitlab.com/slon/readerswriters/event"
	"gitlab.com/slon/readerswriters/mailbox"
	"gitlab.com/slon/readerswriters/rw"
)

const Name = "message"

type Strategy struct {
	readers mailbox.Mailbox
	writers mailbox.Mailbox

	readSeq  atomic.Uint64
	writeSeq atomic.Uint64

	opts rw.Options
}

var _ rw.Strategy = (*Strategy)(nil)

// New creates a strategy with in-process mailboxes.
func New(opts ...rw.Option) *Strategy {
	return NewWithMailboxes(mailbox.NewQueue(), mailbox.NewQueue(), opts...)
}

func NewWithMailboxes(readers, writers mailbox.Mailbox, opts ...rw.Option) *Strategy {
	return &Strategy{
		readers: readers,
		writers: writers,
		opts:    rw.NewOptions(opts...),
	}
}

func (s *Strategy) Name() string {
	return Name
}

// Mailbox returns the mailbox the role posts to.
func (s *Strategy) Mailbox(role event.Role) mailbox.Mailbox {
	if role == event.Write {
		return s.writers
	}
	return s.readers
}

func (s *Strategy) Read(ctx context.Context) error {
	return s.post(ctx, event.Read, &s.readSeq)
}

func (s *Strategy) Write(ctx context.Context) error {
	return s.post(ctx, event.Write, &s.writeSeq)
}

func (s *Strategy) post(ctx context.Context, role event.Role, seq *atomic.Uint64) error {
	msg := mailbox.Message{
		Role: role,
		Seq:  seq.Add(1),
		Text: role.Message(),
		At:   s.opts.Now(),
	}
	if err := s.Mailbox(role).Put(ctx, msg); err != nil {
		if ctx.Err() != nil {
			err = rw.Interrupted(err)
		}
		return s.opts.Fail(Name, role, err)
	}

	s.opts.Do(ctx, Name, role)
	return nil
}

// Close closes both mailboxes.
func (s *Strategy) Close() error {
	err := errors.Join(s.readers.Close(), s.writers.Close())
	if err != nil {
		s.opts.Logger.Warn("closing mailboxes", zap.Error(err))
	}
	return err
}
