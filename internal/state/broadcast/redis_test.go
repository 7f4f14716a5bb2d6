package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/crmkit/genwatch/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func configWithType(typ string) config.BroadcastConfig {
	return config.BroadcastConfig{Type: typ, Channel: "genwatch:test"}
}

func TestNewRedisTransport_ConnectionError(t *testing.T) {
	_, err := NewRedisTransport(zap.NewNop(), "genwatch:test", config.BroadcastRedisConfig{
		Addr: "127.0.0.1:0", // invalid
	})
	assert.Error(t, err)
}

func TestRedisTransport_PublishWatchRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	sender, err := NewRedisTransport(zap.NewNop(), "genwatch:test", config.BroadcastRedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer sender.Close()

	receiver, err := NewRedisTransport(zap.NewNop(), "genwatch:test", config.BroadcastRedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer receiver.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := receiver.Watch(ctx)
	require.NoError(t, err)

	u := &Update{Origin: "tab-a", Key: "loading", Value: json.RawMessage(`true`)}
	require.NoError(t, sender.Publish(ctx, u))

	select {
	case got := <-ch:
		require.NotNil(t, got)
		assert.Equal(t, "tab-a", got.Origin)
		assert.Equal(t, "loading", got.Key)
		assert.JSONEq(t, `true`, string(got.Value))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestRedisTransport_EchoesToPublisher(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	tr, err := NewRedisTransport(zap.NewNop(), "genwatch:test", config.BroadcastRedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := tr.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, tr.Publish(ctx, &Update{Origin: "me", Key: "k", Value: json.RawMessage(`1`)}))

	// Redis pub/sub delivers to every subscriber on the channel, the
	// publisher included; origin filtering is the store's job.
	select {
	case got := <-ch:
		assert.Equal(t, "me", got.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("expected own echo from pub/sub")
	}
}

func TestFactory_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := configWithType("redis")
	cfg.Redis.Addr = mr.Addr()
	tr, err := NewTransport(zap.NewNop(), cfg)
	require.NoError(t, err)
	defer tr.Close()
	assert.IsType(t, &RedisTransport{}, tr)
}
