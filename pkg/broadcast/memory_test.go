package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redraftlabs/redraft/pkg/broadcast"
)

func TestMemoryBroadcasterFanOut(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[string](4)
	defer b.Close()

	ctx := context.Background()
	first := b.Subscribe(ctx)
	second := b.Subscribe(ctx)

	b.Broadcast(broadcast.Message[string]{Data: "hello"})

	for _, sub := range []broadcast.Subscriber[string]{first, second} {
		select {
		case msg := <-sub.Receive():
			assert.Equal(t, "hello", msg.Data)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
}

func TestMemoryBroadcasterCloseClosesSubscribers(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	sub := b.Subscribe(context.Background())

	require.NoError(t, b.Close())

	_, open := <-sub.Receive()
	assert.False(t, open)

	// Close is idempotent and post-close operations are no-ops.
	require.NoError(t, b.Close())
	b.Broadcast(broadcast.Message[int]{Data: 1})

	closed := b.Subscribe(context.Background())
	_, open = <-closed.Receive()
	assert.False(t, open)
}

func TestMemoryBroadcasterContextCancelCleansUp(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	cancel()

	// The receive channel eventually closes after cancellation.
	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-sub.Receive():
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("subscriber not cleaned up after context cancel")
		}
	}
}

func TestMemoryBroadcasterDropsSlowConsumer(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	sub := b.Subscribe(context.Background())

	// Fill the buffer, then overflow it; the slow subscriber is
	// dropped instead of blocking the producer.
	b.Broadcast(broadcast.Message[int]{Data: 1})
	b.Broadcast(broadcast.Message[int]{Data: 2})

	msg := <-sub.Receive()
	assert.Equal(t, 1, msg.Data)

	// The channel closes once the drop is processed.
	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-sub.Receive():
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("slow subscriber was not dropped")
		}
	}
}
