package mailbox

import (
	"context"
	"slices"
	"sync"
)

// Queue is an in-process Mailbox. A single goroutine owns the messages and
// serves requests from Put, Take and Len.
type Queue struct {
	putCh  chan Message
	takeCh chan takeRequest
	lenCh  chan chan queueStats
	stopCh chan struct{}
	doneCh chan struct{}

	closeOnce sync.Once
}

type queueStats struct {
	messages int
	takers   int
}

type takeRequest struct {
	ctx      context.Context
	response chan Message
}

var _ Mailbox = (*Queue)(nil)

// NewQueue starts the queue goroutine. Close stops it.
func NewQueue() *Queue {
	q := &Queue{
		putCh:  make(chan Message),
		takeCh: make(chan takeRequest),
		lenCh:  make(chan chan queueStats),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.doneCh)

	var messages []Message
	var takers []takeRequest

	for {
		// Отдаём сообщения ожидающим в порядке очереди
		for len(messages) > 0 && len(takers) > 0 {
			t := takers[0]
			takers = takers[1:]

			// response не буферизован: сообщение считается отданным,
			// только если получатель его действительно принял
			select {
			case t.response <- messages[0]:
				messages = messages[1:]
			case <-t.ctx.Done():
			case <-q.stopCh:
				return
			}
		}

		select {
		case msg := <-q.putCh:
			messages = append(messages, msg)
		case t := <-q.takeCh:
			takers = append(dropGone(takers), t)
		case resp := <-q.lenCh:
			takers = dropGone(takers)
			resp <- queueStats{messages: len(messages), takers: len(takers)}
		case <-q.stopCh:
			return
		}
	}
}

// Put appends msg. It only blocks while the queue goroutine is busy.
func (q *Queue) Put(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.putCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stopCh:
		return ErrClosed
	}
}

// Take removes and returns the oldest message, waiting for one if needed.
func (q *Queue) Take(ctx context.Context) (Message, error) {
	req := takeRequest{ctx: ctx, response: make(chan Message)}

	select {
	case q.takeCh <- req:
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-q.stopCh:
		return Message{}, ErrClosed
	}

	select {
	case msg := <-req.response:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-q.stopCh:
		return Message{}, ErrClosed
	}
}

// dropGone removes takers that stopped waiting.
func dropGone(takers []takeRequest) []takeRequest {
	return slices.DeleteFunc(takers, func(t takeRequest) bool {
		return t.ctx.Err() != nil
	})
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	st, err := q.stats(ctx)
	return st.messages, err
}

func (q *Queue) stats(ctx context.Context) (queueStats, error) {
	resp := make(chan queueStats, 1)
	select {
	case q.lenCh <- resp:
		return <-resp, nil
	case <-ctx.Done():
		return queueStats{}, ctx.Err()
	case <-q.stopCh:
		return queueStats{}, ErrClosed
	}
}

// Close stops the queue goroutine and drops pending messages.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() { close(q.stopCh) })
	<-q.doneCh
	return nil
}
