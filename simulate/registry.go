package simulate

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"gitlab.com/slon/readerswriters/mailbox"
	"gitlab.com/slon/readerswriters/rendezvous"
	"gitlab.com/slon/readerswriters/rw"
	"gitlab.com/slon/readerswriters/rwbarrier"
	"gitlab.com/slon/readerswriters/rwlock"
	"gitlab.com/slon/readerswriters/rwmonitor"
	"gitlab.com/slon/readerswriters/rwmsg"
	"gitlab.com/slon/readerswriters/rwsem"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Names lists every strategy, in the order they are usually compared.
var Names = []string{
	rwsem.Name,
	rwlock.Name,
	rwmonitor.Name,
	rwmsg.Name,
	rwbarrier.Name,
}

// Factory builds strategies by name.
type Factory struct {
	// RendezvousTimeout bounds a wait at the barrier. Zero means
	// rwbarrier.DefaultTimeout.
	RendezvousTimeout time.Duration
	Clock             clockwork.Clock

	// Mailboxes, if set, supplies the reader and writer mailboxes of the
	// message strategy. In-process queues are used otherwise.
	Mailboxes func() (readers, writers mailbox.Mailbox, err error)
}

func (f Factory) New(name string, opts ...rw.Option) (rw.Strategy, error) {
	switch name {
	case rwsem.Name:
		return rwsem.New(opts...), nil
	case rwlock.Name:
		return rwlock.New(opts...), nil
	case rwmonitor.Name:
		return rwmonitor.New(opts...), nil
	case rwmsg.Name:
		if f.Mailboxes == nil {
			return rwmsg.New(opts...), nil
		}
		readers, writers, err := f.Mailboxes()
		if err != nil {
			return nil, fmt.Errorf("mailboxes: %w", err)
		}
		return rwmsg.NewWithMailboxes(readers, writers, opts...), nil
	case rwbarrier.Name:
		timeout := f.RendezvousTimeout
		if timeout == 0 {
			timeout = rwbarrier.DefaultTimeout
		}
		clock := f.Clock
		if clock == nil {
			clock = clockwork.NewRealClock()
		}
		b := rendezvous.New(2, rendezvous.WithTimeout(timeout), rendezvous.WithClock(clock))
		return rwbarrier.NewWithBarrier(b, opts...), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownStrategy, name)
	}
}
