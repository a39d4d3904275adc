package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// newTestClient spins up a throwaway Redis instance via testcontainers,
// the same pattern pkg/database uses for Postgres, since go-redis has no
// in-memory fake in the example pack.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	c := NewClient(addr, "", 0, "file_parsers_test")
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.EnsureConsumerGroup(ctx))
	return c
}

func TestEnqueueAndReadGroupRoundTrips(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.Enqueue(ctx, map[string]string{FieldFileID: "file-1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs, err := c.ReadGroup(ctx, "worker-1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "file-1", msgs[0].Fields[FieldFileID])
}

func TestReadGroupReturnsErrNoMessagesOnEmpty(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.ReadGroup(ctx, "worker-1", 10, 200*time.Millisecond)
	require.ErrorIs(t, err, ErrNoMessages)
}

func TestAckRemovesFromPending(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Enqueue(ctx, map[string]string{FieldFileID: "file-2"})
	require.NoError(t, err)

	msgs, err := c.ReadGroup(ctx, "worker-1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	pending, err := c.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)

	require.NoError(t, c.Ack(ctx, msgs[0].ID))

	pending, err = c.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), pending)
}

func TestReadPendingRedeliversUnackedOwnEntries(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Enqueue(ctx, map[string]string{FieldFileID: "file-3"})
	require.NoError(t, err)

	// worker-1 reads the message but crashes before acking it.
	msgs, err := c.ReadGroup(ctx, "worker-1", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// A fresh ReadGroup from the same consumer only looks at ">" and sees
	// nothing new, since the message was already delivered once.
	_, err = c.ReadGroup(ctx, "worker-1", 10, 200*time.Millisecond)
	require.ErrorIs(t, err, ErrNoMessages)

	// A restarted worker-1 drains its own pending entries via id "0"
	// instead, recovering the crashed delivery.
	pending, err := c.ReadPending(ctx, "worker-1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "file-3", pending[0].Fields[FieldFileID])
}

func TestReadPendingReturnsErrNoMessagesWhenNothingPending(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.ReadPending(ctx, "worker-1", 10)
	require.ErrorIs(t, err, ErrNoMessages)
}

func TestLengthReportsStreamSize(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Enqueue(ctx, map[string]string{FieldFileID: "a"})
	require.NoError(t, err)
	_, err = c.Enqueue(ctx, map[string]string{FieldFileID: "b"})
	require.NoError(t, err)

	n, err := c.Length(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}
