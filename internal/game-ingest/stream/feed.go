package stream

import (
	"context"
	"net/http"

	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

// Feed descreve uma fonte de jogos finalizados.
// ParseMessage deve ser pura: nunca falha, apenas retorna false quando a mensagem não interessa.
type Feed interface {
	Name() string
	URL() string
	Header() http.Header
	Subprotocols() []string
	ParseMessage(raw []byte) (events.GameFinishedEvent, bool)
}

// Sender é o lado de escrita da conexão exposto aos hooks do feed
type Sender interface {
	WriteJSON(v any) error
}

// ConnectHook é opcional: executa o handshake logo após a conexão ser aberta
type ConnectHook interface {
	OnConnected(ctx context.Context, conn Sender) error
}

// ControlHandler é opcional: trata mensagens de controle do protocolo (ping, erros).
// Um erro retornado derruba a conexão atual.
type ControlHandler interface {
	HandleControl(ctx context.Context, raw []byte, conn Sender) error
}
