package generator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status possíveis de um jogo PvP no feed
const (
	StatusWaiting    = "WAITING"
	StatusInProgress = "IN_PROGRESS"
	StatusFinished   = "FINISHED"
	StatusCancelled  = "CANCELLED"
)

// Jogadores humanos fixos; ids estáveis para o upsert acumular no mesmo usuário
var humanCatalog = []User{
	{ID: "cl9k2x0001", DisplayName: "lucky_ana", Avatar: "https://cdn.example.com/avatars/ana.png", Level: 12},
	{ID: "cl9k2x0002", DisplayName: "boxhunter", Avatar: "https://cdn.example.com/avatars/boxhunter.png", Level: 33},
	{ID: "cl9k2x0003", DisplayName: "rafa.gg", Avatar: "https://cdn.example.com/avatars/rafa.png", Level: 7},
	{ID: "cl9k2x0004", DisplayName: "mint_condition", Avatar: "https://cdn.example.com/avatars/mint.png", Level: 51},
	{ID: "cl9k2x0005", DisplayName: "sneakerhead", Avatar: "https://cdn.example.com/avatars/sneaker.png", Level: 19},
	{ID: "cl9k2x0006", DisplayName: "paulo_drop", Avatar: "https://cdn.example.com/avatars/paulo.png", Level: 3},
}

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	Level       int    `json:"level"`
}

type Player struct {
	UserID      string          `json:"userId"`
	IsPvpBot    bool            `json:"isPvpBot"`
	TotalBet    decimal.Decimal `json:"totalBet"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
	TotalPayout decimal.Decimal `json:"totalPayout"`
	User        User            `json:"user"`
}

type PvpGame struct {
	ID        string   `json:"id"`
	Status    string   `json:"status"`
	UpdatedAt string   `json:"updatedAt"`
	Players   []Player `json:"players"`
}

// Generator produz jogos aleatórios; seguro para uso concorrente
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func New(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed)), now: time.Now}
}

// Next gera um jogo com 2 a 4 jogadores; ~60% dos jogos saem finalizados
func (g *Generator) Next() PvpGame {
	g.mu.Lock()
	defer g.mu.Unlock()

	game := PvpGame{
		ID:        uuid.NewString(),
		Status:    g.status(),
		UpdatedAt: g.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}

	n := 2 + g.rnd.Intn(3)
	perm := g.rnd.Perm(len(humanCatalog))
	for i := 0; i < n; i++ {
		bet := decimal.NewFromInt(int64(1 + g.rnd.Intn(20000))).Shift(-2)
		payout := bet.Mul(decimal.NewFromFloat(g.rnd.Float64() * 2)).Round(2)
		p := Player{
			TotalBet:    bet,
			TotalPayout: payout,
			TotalProfit: payout.Sub(bet),
		}
		// um em cada quatro é bot
		if g.rnd.Intn(4) == 0 {
			id := "bot-" + uuid.NewString()[:8]
			p.UserID = id
			p.IsPvpBot = true
			p.User = User{ID: id, DisplayName: "PvP Bot"}
		} else {
			u := humanCatalog[perm[i]]
			p.UserID = u.ID
			p.User = u
		}
		game.Players = append(game.Players, p)
	}
	return game
}

func (g *Generator) status() string {
	switch r := g.rnd.Intn(10); {
	case r < 6:
		return StatusFinished
	case r < 8:
		return StatusInProgress
	case r < 9:
		return StatusWaiting
	default:
		return StatusCancelled
	}
}
