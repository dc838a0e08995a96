package fallback

import (
	"context"
	"errors"
	"time"

	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

// Record é uma linha do log de falhas: quando falhou e o payload original do jogador
type Record struct {
	Timestamp time.Time           `json:"timestamp"`
	Player    events.PlayerResult `json:"player"`
}

// Sink recebe jogadores cuja escrita esgotou as tentativas
type Sink interface {
	Append(ctx context.Context, p events.PlayerResult) error
}

// MultiSink grava no primeiro sink (durável) e espelha nos demais.
// Todos são tentados; os erros são combinados.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, p events.PlayerResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
