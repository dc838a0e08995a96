package stream

import (
	"sync"
	"time"

	"github.com/radieske/pvp-results-ingest/internal/shared/retry"
)

// Backoff calcula a espera entre reconexões: dobra a cada falha consecutiva até o teto
type Backoff struct {
	mu       sync.Mutex
	opts     retry.Options
	failures int
}

// NewBackoff cria o backoff de reconexão (ex.: 2s inicial, teto de 60s)
func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{opts: retry.Options{
		InitialInterval: initial,
		MaxInterval:     max,
		Multiplier:      2,
	}}
}

// Next registra uma falha e retorna quanto esperar antes da próxima tentativa
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	return retry.Backoff(b.failures, b.opts)
}

// Reset volta ao intervalo inicial após uma conexão bem-sucedida
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}
