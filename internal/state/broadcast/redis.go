package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/crmkit/genwatch/internal/common/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTransport implements Transport using Redis pub/sub. Tabs sharing the
// same channel name form one broadcast scope; Redis preserves per-publisher
// ordering and delivers the message back to the publishing subscriber, which
// the store filters out by origin.
type RedisTransport struct {
	logger  *zap.Logger
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub

	mu     sync.Mutex
	closed bool
}

var _ Transport = (*RedisTransport)(nil)

// NewRedisTransport creates a new Redis-based broadcast transport.
func NewRedisTransport(logger *zap.Logger, channel string, cfg config.BroadcastRedisConfig) (*RedisTransport, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	t := &RedisTransport{
		logger:  logger.Named("broadcast.redis"),
		client:  client,
		channel: channel,
	}
	t.pubsub = client.Subscribe(context.Background(), channel)

	return t, nil
}

// Publish implements Transport.Publish
func (t *RedisTransport) Publish(ctx context.Context, update *Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}
	return t.client.Publish(ctx, t.channel, data).Err()
}

// Watch implements Transport.Watch
func (t *RedisTransport) Watch(ctx context.Context) (<-chan *Update, error) {
	ch := make(chan *Update, 64)

	go func() {
		defer close(ch)
		msgs := t.pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					t.logger.Error("failed to unmarshal update",
						zap.Error(err),
						zap.String("payload", msg.Payload))
					continue
				}
				select {
				case ch <- &u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close implements Transport.Close
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.pubsub.Close(); err != nil {
		t.logger.Error("failed to close pubsub", zap.Error(err))
	}
	return t.client.Close()
}
