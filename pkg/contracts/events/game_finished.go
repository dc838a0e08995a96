package events

import "github.com/shopspring/decimal"

// EventGameFinished identifica o tipo do evento normalizado enviado para a fila
const EventGameFinished = "game_finished"

// PlayerResult é o resultado de um jogador humano em um jogo finalizado.
// (ExternalID, SiteIdentifier) é a chave natural do usuário no banco.
type PlayerResult struct {
	ExternalID     string              `json:"external_id"`
	SiteIdentifier string              `json:"website"`
	DisplayName    string              `json:"username"`
	ProfileURL     string              `json:"profile_url"`
	AvatarURL      string              `json:"avatar_url"`
	AvatarHash     string              `json:"avatar_hash"`
	Level          *int                `json:"level"`
	EventTimestamp string              `json:"date,omitempty"` // ISO-8601, opcional
	TotalBet       decimal.Decimal     `json:"total_bet"`
	TotalProfit    decimal.NullDecimal `json:"total_profit"`
	TotalPayout    decimal.NullDecimal `json:"total_payout"`
}

// GameFinishedEvent agrupa os jogadores humanos de um jogo com status FINISHED.
// Nunca é emitido com a lista de jogadores vazia.
type GameFinishedEvent struct {
	Event   string         `json:"event"` // "game_finished"
	GameID  string         `json:"game_id"`
	Source  string         `json:"source"`
	Players []PlayerResult `json:"players"`
}
