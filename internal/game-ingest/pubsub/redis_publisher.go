package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/pvp-results-ingest/internal/game-ingest/repository"
	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
	"github.com/radieske/pvp-results-ingest/pkg/contracts/topics"
)

// Publisher é o subconjunto do cliente Redis usado aqui
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type RedisBroadcaster struct {
	r       Publisher
	channel string
	log     *zap.Logger
	timeout time.Duration
	marshal func(any) ([]byte, error)
}

func NewRedisBroadcaster(r Publisher, channel string, log *zap.Logger) *RedisBroadcaster {
	if channel == "" {
		channel = topics.GameResultsBroadcast
	}
	return &RedisBroadcaster{r: r, channel: channel, log: log, timeout: 500 * time.Millisecond, marshal: json.Marshal}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, payload []byte) error {
	return b.r.Publish(ctx, b.channel, payload).Err()
}

// Payload publicado para quem acompanha os resultados em tempo real
type PersistedUpdate struct {
	UserID    int64               `json:"userId"`
	WagerDate string              `json:"wagerDate"`
	Player    events.PlayerResult `json:"player"`
}

// OnPersisted publica o jogador gravado; falha de publish não afeta a persistência
func (b *RedisBroadcaster) OnPersisted(p events.PlayerResult, res repository.WriteResult) {
	msg := PersistedUpdate{UserID: res.UserID, WagerDate: res.WagerDate.Format("2006-01-02"), Player: p}
	payload, err := b.marshal(msg)
	if err != nil {
		b.log.Warn("result broadcast marshal failed",
			zap.String("external_id", p.ExternalID),
			zap.Error(err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := b.Publish(ctx, payload); err != nil {
		b.log.Warn("result broadcast publish failed",
			zap.String("channel", b.channel),
			zap.String("external_id", p.ExternalID),
			zap.Error(err),
		)
	}
}
