package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRelaySkipsBadPayloadsAndStopsOnClose(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ch := make(chan *redis.Message, 3)
	ch <- &redis.Message{Payload: `{"userId":1,"wagerDate":"2025-11-15","player":{"external_id":"u1"}}`}
	ch <- &redis.Message{Payload: `not json`}
	ch <- &redis.Message{Payload: `{"userId":2,"player":{"external_id":"u2"}}`}
	close(ch)

	var got []string
	err := relay(context.Background(), ch, zap.New(core), func(u PersistedUpdate) {
		got = append(got, u.Player.ExternalID)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got)
	assert.Equal(t, 1, logs.FilterMessage("persisted update unmarshal failed").Len())
}

func TestRelayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay(ctx, make(chan *redis.Message), zap.NewNop(), func(PersistedUpdate) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
