package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	"go.uber.org/zap"

	"wizzzard/logger"
)

const channelPrefix = "quiz:"

// RedisBroker relays snapshots through Redis pub/sub so every instance sees
// writes made by the others. One pattern subscription per process feeds a
// local hub.
type RedisBroker struct {
	client *redis.Client
	pubsub *redis.PubSub
	local  *LocalBroker
	done   chan struct{}
}

// NewRedisBroker connects to redisURL and starts relaying.
func NewRedisBroker(ctx context.Context, redisURL string) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.MaintNotificationsConfig = &maintnotifications.Config{
		Mode: maintnotifications.ModeDisabled,
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	b, err := NewRedisBrokerWithClient(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return b, nil
}

// NewRedisBrokerWithClient relays through an existing client. Close closes
// the client.
func NewRedisBrokerWithClient(ctx context.Context, client *redis.Client) (*RedisBroker, error) {
	pubsub := client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to quiz channels: %w", err)
	}

	b := &RedisBroker{
		client: client,
		pubsub: pubsub,
		local:  NewLocalBroker(),
		done:   make(chan struct{}),
	}
	go b.run()
	return b, nil
}

func (b *RedisBroker) run() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		id := strings.TrimPrefix(msg.Channel, channelPrefix)
		_ = b.local.Publish(context.Background(), id, []byte(msg.Payload))
	}
	logger.Log.Debug("redis quiz relay stopped")
}

func (b *RedisBroker) Publish(ctx context.Context, id string, payload []byte) error {
	if err := b.client.Publish(ctx, channelPrefix+id, payload).Err(); err != nil {
		logger.Log.Warn("redis publish failed", zap.String("quiz_id", id), zap.Error(err))
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(id string) (<-chan []byte, func()) {
	return b.local.Subscribe(id)
}

func (b *RedisBroker) Close() error {
	err := b.pubsub.Close()
	<-b.done
	_ = b.local.Close()
	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	return err
}
