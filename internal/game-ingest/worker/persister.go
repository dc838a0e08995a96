package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/pvp-results-ingest/internal/game-ingest/fallback"
	"github.com/radieske/pvp-results-ingest/internal/game-ingest/queue"
	"github.com/radieske/pvp-results-ingest/internal/game-ingest/repository"
	"github.com/radieske/pvp-results-ingest/internal/shared/retry"
	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

// ErrWriterPanic marca uma escrita que terminou em panic dentro do writer
var ErrWriterPanic = errors.New("player writer panicked")

// PlayerWriter grava um jogador de forma atômica (usuário + acumulado diário)
type PlayerWriter interface {
	WritePlayer(ctx context.Context, p events.PlayerResult, now time.Time) (repository.WriteResult, error)
}

// Persister consome a fila de jogos finalizados e grava cada jogador com retry.
// Esgotadas as tentativas, o jogador vai para o fallback e o loop segue.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Persister struct {
	Log    *zap.Logger
	Queue  *queue.Queue
	Writer PlayerWriter
	Sink   fallback.Sink

	MaxRetries   int
	RetryDelay   time.Duration
	WriteTimeout time.Duration // por escrita, independente do shutdown
	ErrorPause   time.Duration

	OnConsumed  func()       // métricas (counter++)
	OnPersist   func()       // métricas
	OnFallback  func()       // métricas
	OnError     func(string) // métricas por fase
	OnPersisted func(events.PlayerResult, repository.WriteResult)

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewPersister cria o worker com os valores padrão (2 tentativas, 2s de base)
func NewPersister(log *zap.Logger, q *queue.Queue, w PlayerWriter, sink fallback.Sink) *Persister {
	return &Persister{
		Log:          log,
		Queue:        q,
		Writer:       w,
		Sink:         sink,
		MaxRetries:   2,
		RetryDelay:   2 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorPause:   time.Second,
		now:          time.Now,
		sleep:        retry.Sleep,
	}
}

// Run drena a fila até o cancelamento do contexto.
// No shutdown, eventos que ainda estavam na fila vão direto para o fallback.
func (w *Persister) Run(ctx context.Context) error {
	w.Log.Info("persistence worker started",
		zap.Int("max_retries", w.MaxRetries),
		zap.Duration("retry_delay", w.RetryDelay),
	)
	for {
		ev, err := w.Queue.Get(ctx)
		if err != nil {
			spilled := w.spill(ctx)
			w.Log.Info("persistence worker stopped", zap.Int("spilled_players", spilled))
			return ctx.Err()
		}
		w.safeHandle(ctx, ev)
	}
}

// safeHandle impede que um panic derrube o loop; pausa antes de seguir
func (w *Persister) safeHandle(ctx context.Context, ev events.GameFinishedEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.Log.Error("panic while draining queue",
				zap.String("game_id", ev.GameID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			w.stageError("panic")
			_ = w.sleep(ctx, w.ErrorPause)
		}
	}()
	w.handleEvent(ctx, ev)
}

func (w *Persister) handleEvent(ctx context.Context, ev events.GameFinishedEvent) {
	if w.OnConsumed != nil {
		w.OnConsumed() // callback de métrica: evento consumido
	}
	for _, p := range ev.Players {
		w.persistPlayer(ctx, ev.GameID, p)
	}
}

func (w *Persister) persistPlayer(ctx context.Context, gameID string, p events.PlayerResult) {
	log := w.Log.With(
		zap.String("game_id", gameID),
		zap.String("external_id", p.ExternalID),
		zap.String("site", p.SiteIdentifier),
	)

	var res repository.WriteResult
	err := retry.Do(ctx, func(attempt int) error {
		r, err := w.writeOnce(ctx, p)
		if err != nil {
			log.Warn("player write failed", zap.Int("attempt", attempt), zap.Error(err))
			w.stageError("db_write")
			return err
		}
		res = r
		return nil
	}, retry.Options{
		MaxAttempts:     w.MaxRetries,
		InitialInterval: w.RetryDelay,
		Multiplier:      2,
	})
	if err != nil {
		var canceled *retry.CanceledError
		if errors.As(err, &canceled) {
			log.Warn("retry interrupted by shutdown, routing to fallback", zap.Error(canceled.Last))
		} else {
			log.Error("player write exhausted retries, routing to fallback", zap.Error(err))
		}
		w.toFallback(ctx, log, p)
		return
	}

	if w.OnPersist != nil {
		w.OnPersist() // callback de métrica: jogador persistido
	}
	log.Debug("player persisted",
		zap.Int64("user_id", res.UserID),
		zap.String("wager_date", res.WagerDate.Format("2006-01-02")),
		zap.String("total_bet", p.TotalBet.String()),
	)
	if w.OnPersisted != nil {
		w.OnPersisted(p, res)
	}
}

// writeOnce usa um contexto desacoplado do shutdown: a transação em andamento termina ou falha sozinha
func (w *Persister) writeOnce(ctx context.Context, p events.PlayerResult) (res repository.WriteResult, err error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.WriteTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrWriterPanic, r)
		}
	}()
	return w.Writer.WritePlayer(wctx, p, w.now())
}

// toFallback é a última linha de defesa: falha aqui só é logada
func (w *Persister) toFallback(ctx context.Context, log *zap.Logger, p events.PlayerResult) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.WriteTimeout)
	defer cancel()

	if err := w.Sink.Append(fctx, p); err != nil {
		log.Error("fallback write failed, player result lost", zap.Error(err))
		w.stageError("fallback")
		return
	}
	if w.OnFallback != nil {
		w.OnFallback()
	}
}

// spill esvazia a fila sem bloquear, mandando cada jogador para o fallback
func (w *Persister) spill(ctx context.Context) int {
	n := 0
	for {
		ev, ok := w.Queue.TryGet()
		if !ok {
			return n
		}
		log := w.Log.With(zap.String("game_id", ev.GameID))
		for _, p := range ev.Players {
			w.toFallback(ctx, log.With(zap.String("external_id", p.ExternalID)), p)
			n++
		}
	}
}

func (w *Persister) stageError(stage string) {
	if w.OnError != nil {
		w.OnError(stage)
	}
}
