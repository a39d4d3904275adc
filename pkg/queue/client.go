package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a Redis Streams connection for both the producer side
// (API server enqueueing uploads) and the consumer side (parse workers
// reading via a consumer group), matching the two RedisQueueClient
// classes in original_source's hill_backend and hill_workers trees.
type Client struct {
	rdb   *redis.Client
	group string
}

// NewClient dials Redis and returns a Client bound to the given consumer
// group name (spec.md's fixed "file_parsers" group).
func NewClient(addr, password string, db int, group string) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		group: group,
	}
}

// Ping checks connectivity, used by the API's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Enqueue adds a file-parse task to StreamName, returning the assigned
// message ID (spec.md §4.6's `enqueue`).
func (c *Client) Enqueue(ctx context.Context, fields map[string]string) (string, error) {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	return id, nil
}

// EnsureConsumerGroup creates the consumer group at the start of the
// stream (id "0", so entries added before the group existed are still
// delivered) if it doesn't already exist, tolerating Redis's BUSYGROUP error
// the way every consumer is expected to on startup (spec.md §4.6).
func (c *Client) EnsureConsumerGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, StreamName, c.group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("queue: ensure consumer group: %w", err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// Message is one claimed stream entry.
type Message struct {
	ID     string
	Fields map[string]string
}

// ReadGroup blocks up to block for up to count new messages delivered to
// consumerName within this client's group (spec.md §4.6's `read_group`).
// Returns ErrNoMessages, not an error, when the block elapses with
// nothing delivered.
func (c *Client) ReadGroup(ctx context.Context, consumerName string, count int64, block time.Duration) ([]Message, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: consumerName,
		Streams:  []string{StreamName, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMessages
	}
	if err != nil {
		return nil, fmt.Errorf("queue: read group: %w", err)
	}
	return messagesFromStreams(res)
}

// ReadPending re-reads consumerName's own already-delivered, unacked
// entries from its pending entries list (id "0" instead of ">"), rather
// than waiting for new deliveries. Called once at worker startup so a
// restarted worker with the same consumer name picks up exactly where a
// crashed instance left off (spec.md §4.6/§5, testable property 5) instead
// of leaving the message's file stuck in "parsing" forever.
func (c *Client) ReadPending(ctx context.Context, consumerName string, count int64) ([]Message, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: consumerName,
		Streams:  []string{StreamName, "0"},
		Count:    count,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMessages
	}
	if err != nil {
		return nil, fmt.Errorf("queue: read pending: %w", err)
	}
	return messagesFromStreams(res)
}

func messagesFromStreams(res []redis.XStream) ([]Message, error) {
	var out []Message
	for _, stream := range res {
		for _, m := range stream.Messages {
			fields := make(map[string]string, len(m.Values))
			for k, v := range m.Values {
				if s, ok := v.(string); ok {
					fields[k] = s
				} else {
					fields[k] = fmt.Sprint(v)
				}
			}
			out = append(out, Message{ID: m.ID, Fields: fields})
		}
	}
	if len(out) == 0 {
		return nil, ErrNoMessages
	}
	return out, nil
}

// Ack removes a message from this group's pending entries list (spec.md
// §4.6's `ack`).
func (c *Client) Ack(ctx context.Context, id string) error {
	if err := c.rdb.XAck(ctx, StreamName, c.group, id).Err(); err != nil {
		return fmt.Errorf("queue: ack %s: %w", id, err)
	}
	return nil
}

// Length reports the stream's total entry count (spec.md §4.6's `length`).
func (c *Client) Length(ctx context.Context) (int64, error) {
	n, err := c.rdb.XLen(ctx, StreamName).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: length: %w", err)
	}
	return n, nil
}

// PendingCount reports how many messages are claimed but unacked in this
// group (spec.md §4.6's `pending`).
func (c *Client) PendingCount(ctx context.Context) (int64, error) {
	summary, err := c.rdb.XPending(ctx, StreamName, c.group).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: pending: %w", err)
	}
	return summary.Count, nil
}
