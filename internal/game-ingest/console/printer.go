package console

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/pvp-results-ingest/internal/game-ingest/queue"
	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

// Printer é o consumidor de diagnóstico: imprime cada jogo finalizado.
// Nunca deve rodar junto do worker de persistência sobre a mesma fila.
type Printer struct {
	Log   *zap.Logger
	Queue *queue.Queue
	Out   io.Writer
}

func (p *Printer) Run(ctx context.Context) error {
	for {
		ev, err := p.Queue.Get(ctx)
		if err != nil {
			return ctx.Err()
		}
		if err := p.Print(ev); err != nil {
			p.Log.Warn("console write failed", zap.Error(err))
		}
	}
}

// Print escreve o jogo e seus jogadores humanos
func (p *Printer) Print(ev events.GameFinishedEvent) error {
	var b strings.Builder
	fmt.Fprintf(&b, "game %s finished (%s) with %d players\n", ev.GameID, ev.Source, len(ev.Players))
	for _, pl := range ev.Players {
		name := pl.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "  %-24s %-12s bet=%s", pl.ExternalID, name, pl.TotalBet.StringFixed(2))
		if pl.TotalProfit.Valid {
			fmt.Fprintf(&b, " profit=%s", pl.TotalProfit.Decimal.StringFixed(2))
		}
		if pl.TotalPayout.Valid {
			fmt.Fprintf(&b, " payout=%s", pl.TotalPayout.Decimal.StringFixed(2))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(p.Out, b.String())
	return err
}
