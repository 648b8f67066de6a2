package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a Mailbox stored in a Redis list, so producers and consumers may
// live in different processes.
type Redis struct {
	rdb  redis.UniversalClient
	key  string
	poll time.Duration
}

var _ Mailbox = (*Redis)(nil)

func NewRedis(rdb redis.UniversalClient, key string) *Redis {
	return &Redis{rdb: rdb, key: key, poll: time.Second}
}

func (r *Redis) Put(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mailbox %s: encode: %w", r.key, err)
	}
	if err := r.rdb.RPush(ctx, r.key, data).Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("mailbox %s: %w", r.key, err)
	}
	return nil
}

// Take pops the head of the list. BLPOP is issued with a short timeout in a
// loop so that ctx is checked between attempts.
func (r *Redis) Take(ctx context.Context) (Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		res, err := r.rdb.BLPop(ctx, r.poll, r.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
			return Message{}, fmt.Errorf("mailbox %s: %w", r.key, err)
		}

		// BLPOP отвечает парой [key, value]
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return Message{}, fmt.Errorf("mailbox %s: decode: %w", r.key, err)
		}
		return msg, nil
	}
}

func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.rdb.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("mailbox %s: %w", r.key, err)
	}
	return int(n), nil
}

// Close does nothing: the client belongs to the caller.
func (r *Redis) Close() error {
	return nil
}
