package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscribe escuta o canal de resultados gravados e repassa cada update para fn.
// Bloqueia até o cancelamento do contexto.
func Subscribe(ctx context.Context, r *redis.Client, channel string, log *zap.Logger, fn func(PersistedUpdate)) error {
	sub := r.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	return relay(ctx, sub.Channel(), log, fn)
}

func relay(ctx context.Context, ch <-chan *redis.Message, log *zap.Logger, fn func(PersistedUpdate)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg == nil {
				continue
			}
			var upd PersistedUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
				log.Warn("persisted update unmarshal failed", zap.Error(err))
				continue
			}
			fn(upd)
		}
	}
}
