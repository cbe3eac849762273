package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/notifystream/pkg/logger"
)

func newRelayOnlyBroadcaster(t *testing.T, client redis.UniversalClient) *RedisBroadcaster {
	t.Helper()
	b := &RedisBroadcaster{
		client: client,
		prefix: DefaultChannelPrefix,
		local:  NewMemoryBroadcaster(4),
		log:    logger.WithModule("realtime"),
		done:   make(chan struct{}),
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisBroadcasterRelaysChannelMessagesToLocalGroup(t *testing.T) {
	b := newRelayOnlyBroadcaster(t, nil)

	sub, err := b.Subscribe(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, b.SubscriberCount("user-1"))
	require.Equal(t, []string{"user-1"}, b.ActiveUsers())

	b.handleMessage(&redis.Message{Channel: DefaultChannelPrefix + "user-1", Payload: `{"total_notifications":1}`})
	b.handleMessage(&redis.Message{Channel: "other:user-1", Payload: "ignored"})
	b.handleMessage(&redis.Message{Channel: DefaultChannelPrefix, Payload: "ignored"})
	b.handleMessage(nil)

	require.Equal(t, `{"total_notifications":1}`, string(receive(t, sub)))
	select {
	case payload := <-sub.Events():
		t.Fatalf("unexpected delivery: %s", payload)
	default:
	}
}

func TestRedisBroadcasterPublishFailureIsPublishError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	b := newRelayOnlyBroadcaster(t, client)

	err := b.Publish(context.Background(), "user-1", []byte("x"))
	require.Error(t, err)

	var pubErr *PublishError
	require.True(t, errors.As(err, &pubErr))
	require.Equal(t, "user-1", pubErr.UserID)

	require.Error(t, b.Publish(context.Background(), "", []byte("x")))
}

func TestNewRedisBroadcasterRequiresClient(t *testing.T) {
	_, err := NewRedisBroadcaster(context.Background(), nil, RedisOptions{})
	require.Error(t, err)
}

func TestRedisBroadcasterCloseEndsLocalSubscriptions(t *testing.T) {
	b := newRelayOnlyBroadcaster(t, nil)

	sub, err := b.Subscribe(context.Background(), "user-1")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	requireClosed(t, sub)
	require.NoError(t, b.Close())
}
