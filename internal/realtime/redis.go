package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/notifystream/pkg/logger"
)

// DefaultChannelPrefix namespaces the per-user Redis channels.
const DefaultChannelPrefix = "notifystream:user:"

// RedisOptions configures a RedisBroadcaster.
type RedisOptions struct {
	ChannelPrefix string
	BufferSize    int
}

// RedisBroadcaster relays events through Redis pub/sub so every process
// delivers to its own local sessions. Each user group maps to one channel.
type RedisBroadcaster struct {
	client redis.UniversalClient
	prefix string
	local  *MemoryBroadcaster
	pubsub *redis.PubSub
	log    *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewRedisBroadcaster subscribes to the channel pattern and starts relaying
// messages to local subscribers. The subscription is confirmed before returning.
func NewRedisBroadcaster(ctx context.Context, client redis.UniversalClient, opts RedisOptions) (*RedisBroadcaster, error) {
	if client == nil {
		return nil, errors.New("realtime: redis client is required")
	}

	prefix := strings.TrimSpace(opts.ChannelPrefix)
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}

	pubsub := client.PSubscribe(ctx, prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("realtime: redis subscribe: %w", err)
	}

	b := &RedisBroadcaster{
		client: client,
		prefix: prefix,
		local:  NewMemoryBroadcaster(opts.BufferSize),
		pubsub: pubsub,
		log:    logger.WithModule("realtime"),
		done:   make(chan struct{}),
	}

	go b.run()

	return b, nil
}

// Publish sends payload to the user's channel. Local delivery happens when the
// message comes back through the pattern subscription.
func (b *RedisBroadcaster) Publish(ctx context.Context, userID string, payload []byte) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errEmptyUser
	}

	if err := b.client.Publish(ctx, b.channel(userID), payload).Err(); err != nil {
		return &PublishError{UserID: userID, Err: err}
	}
	return nil
}

// Subscribe joins the user's local group.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	return b.local.Subscribe(ctx, userID)
}

// SubscriberCount reports the size of the user's group in this process.
func (b *RedisBroadcaster) SubscriberCount(userID string) int {
	return b.local.SubscriberCount(userID)
}

// ActiveUsers lists users with live subscriptions in this process.
func (b *RedisBroadcaster) ActiveUsers() []string {
	return b.local.ActiveUsers()
}

// Close stops relaying and ends every local subscription.
func (b *RedisBroadcaster) Close() error {
	b.closeOnce.Do(func() {
		var err error
		if b.pubsub != nil {
			err = b.pubsub.Close()
			<-b.done
		}
		b.closeErr = multierr.Append(err, b.local.Close())
	})
	return b.closeErr
}

func (b *RedisBroadcaster) run() {
	defer close(b.done)

	for msg := range b.pubsub.Channel() {
		b.handleMessage(msg)
	}
}

func (b *RedisBroadcaster) handleMessage(msg *redis.Message) {
	if msg == nil {
		return
	}

	userID, ok := strings.CutPrefix(msg.Channel, b.prefix)
	if !ok || userID == "" {
		b.log.Debug("ignoring message on foreign channel", zap.String("channel", msg.Channel))
		return
	}

	if err := b.local.Publish(context.Background(), userID, []byte(msg.Payload)); err != nil {
		b.log.Warn("local delivery failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (b *RedisBroadcaster) channel(userID string) string {
	return b.prefix + userID
}
