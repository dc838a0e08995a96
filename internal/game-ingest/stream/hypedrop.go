package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/pvp-results-ingest/internal/shared/retry"
	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

// ErrProtocol indica um erro reportado pelo servidor no protocolo de assinatura
var ErrProtocol = errors.New("feed protocol error")

// Tipos de mensagem do protocolo graphql-transport-ws
const (
	msgConnectionInit  = "connection_init"
	msgConnectionAck   = "connection_ack"
	msgNext            = "next"
	msgError           = "error"
	msgConnectionError = "connection_error"
	msgComplete        = "complete"
	msgPing            = "ping"
	msgPong            = "pong"

	statusFinished = "FINISHED"
)

// HypeDropConfig parametriza o feed de jogos PvP do HypeDrop
type HypeDropConfig struct {
	URL            string
	Site           string        // identificador do site gravado junto do externalId
	ProfileBaseURL string        // prefixo da URL de perfil; vazio = sem URL
	SubscribeDelay time.Duration // pausa entre cada assinatura (padrão 200ms)
	Log            *zap.Logger
}

// HypeDrop implementa Feed, ConnectHook e ControlHandler para o router do HypeDrop
type HypeDrop struct {
	cfg HypeDropConfig
}

// NewHypeDrop cria o feed aplicando defaults
func NewHypeDrop(cfg HypeDropConfig) *HypeDrop {
	if cfg.URL == "" {
		cfg.URL = "wss://router.hypedrop.com/ws"
	}
	if cfg.Site == "" {
		cfg.Site = "hypedrop"
	}
	if cfg.SubscribeDelay == 0 {
		cfg.SubscribeDelay = 200 * time.Millisecond
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &HypeDrop{cfg: cfg}
}

func (h *HypeDrop) Name() string { return "HypeDrop" }

func (h *HypeDrop) URL() string { return h.cfg.URL }

func (h *HypeDrop) Subprotocols() []string { return []string{"graphql-transport-ws"} }

// Header imita um navegador; o router recusa handshakes sem Origin
func (h *HypeDrop) Header() http.Header {
	hdr := http.Header{}
	hdr.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	hdr.Set("Origin", "https://www.hypedrop.com")
	return hdr
}

// OnConnected envia connection_init e depois as assinaturas, com pausa entre cada uma
func (h *HypeDrop) OnConnected(ctx context.Context, conn Sender) error {
	init := map[string]any{"type": msgConnectionInit, "payload": map[string]any{}}
	if err := conn.WriteJSON(init); err != nil {
		return &ConnError{Op: "connection_init", Err: err}
	}

	for _, sub := range hypeDropSubscriptions {
		if err := conn.WriteJSON(sub); err != nil {
			return &ConnError{Op: "subscribe " + sub.Payload.OperationName, Err: err}
		}
		if err := retry.Sleep(ctx, h.cfg.SubscribeDelay); err != nil {
			return err
		}
	}
	return nil
}

// HandleControl responde pings e converte erros do servidor em ErrProtocol.
// Um "error" encerra só a operação citada; apenas o da assinatura de jogos derruba a conexão.
func (h *HypeDrop) HandleControl(_ context.Context, raw []byte, conn Sender) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}

	switch env.Type {
	case msgPing:
		if err := conn.WriteJSON(map[string]string{"type": msgPong}); err != nil {
			return &ConnError{Op: "pong", Err: err}
		}
	case msgConnectionError:
		return fmt.Errorf("%w: %s", ErrProtocol, string(env.Payload))
	case msgError:
		if env.ID != updatePvpGameSubscriptionID {
			h.cfg.Log.Warn("auxiliary subscription rejected, ignoring",
				zap.String("sub_id", env.ID),
				zap.String("payload", string(env.Payload)),
			)
			return nil
		}
		return fmt.Errorf("%w: subscription %s: %s", ErrProtocol, env.ID, string(env.Payload))
	}
	return nil
}

// ParseMessage extrai os jogadores humanos de um jogo finalizado.
// Mensagens de outro tipo, jogos não finalizados ou só com bots retornam false.
func (h *HypeDrop) ParseMessage(raw []byte) (events.GameFinishedEvent, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type != msgNext {
		return events.GameFinishedEvent{}, false
	}

	var payload nextPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return events.GameFinishedEvent{}, false
	}
	upd := payload.Data.UpdatePvpGame
	if upd == nil || upd.PvpGame == nil {
		return events.GameFinishedEvent{}, false
	}

	game := upd.PvpGame
	if game.Status != statusFinished {
		return events.GameFinishedEvent{}, false
	}

	players := make([]events.PlayerResult, 0, len(game.Players))
	for _, p := range game.Players {
		if p.IsPvpBot {
			continue
		}
		if pr, ok := h.toPlayerResult(p, game.UpdatedAt); ok {
			players = append(players, pr)
		}
	}
	if len(players) == 0 {
		return events.GameFinishedEvent{}, false
	}

	return events.GameFinishedEvent{
		Event:   events.EventGameFinished,
		GameID:  game.ID,
		Source:  h.cfg.Site,
		Players: players,
	}, true
}

// toPlayerResult tolera sub-campos ausentes; só exige um identificador de usuário
func (h *HypeDrop) toPlayerResult(p pvpPlayer, updatedAt string) (events.PlayerResult, bool) {
	var user pvpUser
	if p.User != nil {
		user = *p.User
	}

	externalID := strings.TrimSpace(p.UserID)
	if externalID == "" {
		externalID = strings.TrimSpace(user.ID)
	}
	if externalID == "" {
		return events.PlayerResult{}, false
	}

	pr := events.PlayerResult{
		ExternalID:     externalID,
		SiteIdentifier: h.cfg.Site,
		DisplayName:    user.DisplayName,
		AvatarURL:      user.Avatar,
		AvatarHash:     user.AvatarHash,
		Level:          user.Level,
		EventTimestamp: updatedAt,
		TotalProfit:    p.TotalProfit,
		TotalPayout:    p.TotalPayout,
	}
	if p.TotalBet.Valid {
		pr.TotalBet = p.TotalBet.Decimal
	}
	if h.cfg.ProfileBaseURL != "" {
		pr.ProfileURL = h.cfg.ProfileBaseURL + externalID
	}
	return pr, true
}

type envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type nextPayload struct {
	Data struct {
		UpdatePvpGame *struct {
			PvpGame *pvpGame `json:"pvpGame"`
		} `json:"updatePvpGame"`
	} `json:"data"`
}

type pvpGame struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	UpdatedAt string      `json:"updatedAt"`
	Players   []pvpPlayer `json:"players"`
}

type pvpPlayer struct {
	UserID      string              `json:"userId"`
	IsPvpBot    bool                `json:"isPvpBot"`
	TotalBet    decimal.NullDecimal `json:"totalBet"`
	TotalProfit decimal.NullDecimal `json:"totalProfit"`
	TotalPayout decimal.NullDecimal `json:"totalPayout"`
	User        *pvpUser            `json:"user"`
}

type pvpUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	AvatarHash  string `json:"avatarHash"`
	Level       *int   `json:"level"`
}
