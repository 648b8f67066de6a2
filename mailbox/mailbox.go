// Package mailbox provides unbounded ordered mailboxes.
package mailbox

import (
	"context"
	"errors"
	"time"

	"gitlab.com/slon/readerswriters/event"
)

var ErrClosed = errors.New("mailbox closed")

// Message is a notification that an operation happened.
type Message struct {
	Role event.Role `json:"role"`
	Seq  uint64     `json:"seq"`
	Text string     `json:"text"`
	At   time.Time  `json:"at"`
}

// Mailbox is an unbounded FIFO of messages.
//
// Put never waits for capacity, only for the mailbox itself. A Put that
// returns an error has not added anything.
type Mailbox interface {
	Put(ctx context.Context, msg Message) error
	Take(ctx context.Context) (Message, error)
	Len(ctx context.Context) (int, error)
	Close() error
}
