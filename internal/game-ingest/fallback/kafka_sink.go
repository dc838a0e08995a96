package fallback

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radieske/pvp-results-ingest/internal/shared/kafka"
	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

// KafkaSink espelha os registros de falha num tópico DLQ para reprocessamento externo
type KafkaSink struct {
	Writer kafka.MessageWriter
	now    func() time.Time
}

// NewKafkaSink cria o espelho DLQ
func NewKafkaSink(w kafka.MessageWriter) *KafkaSink {
	return &KafkaSink{Writer: w, now: time.Now}
}

// Append publica o registro com chave "site:externalId"
func (s *KafkaSink) Append(ctx context.Context, p events.PlayerResult) error {
	b, err := json.Marshal(Record{Timestamp: s.now(), Player: p})
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, s.Writer, p.SiteIdentifier+":"+p.ExternalID, b)
}
