package console

import (
	"fmt"
	"io"

	"github.com/radieske/pvp-results-ingest/internal/game-ingest/pubsub"
)

// PrintPersisted escreve uma linha por jogador gravado (modo --persisted)
func PrintPersisted(out io.Writer, u pubsub.PersistedUpdate) error {
	_, err := fmt.Fprintf(out, "persisted user=%d site=%s external_id=%s date=%s bet=%s\n",
		u.UserID, u.Player.SiteIdentifier, u.Player.ExternalID, u.WagerDate, u.Player.TotalBet.StringFixed(2))
	return err
}
