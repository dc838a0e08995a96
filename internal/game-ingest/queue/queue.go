package queue

import (
	"context"

	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

// Queue é uma fila FIFO limitada de jogos finalizados.
// Vários produtores podem chamar Put; deve existir um único consumidor lógico.
type Queue struct {
	ch chan events.GameFinishedEvent
}

// New cria a fila com a capacidade informada (mínimo 1)
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan events.GameFinishedEvent, capacity)}
}

// Put bloqueia enquanto a fila estiver cheia; o backpressure chega até a leitura do socket.
// Com o contexto já cancelado nada é enfileirado.
func (q *Queue) Put(ctx context.Context, ev events.GameFinishedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get bloqueia até existir um evento ou o contexto ser cancelado
func (q *Queue) Get(ctx context.Context) (events.GameFinishedEvent, error) {
	select {
	case ev := <-q.ch:
		return ev, nil
	case <-ctx.Done():
		return events.GameFinishedEvent{}, ctx.Err()
	}
}

// TryGet retorna o próximo evento sem bloquear
func (q *Queue) TryGet() (events.GameFinishedEvent, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	default:
		return events.GameFinishedEvent{}, false
	}
}

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Cap() int { return cap(q.ch) }
