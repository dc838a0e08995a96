package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// OperationUpdatePvpGame é a assinatura que recebe os frames de jogos
const OperationUpdatePvpGame = "OnUpdatePvpGameThumbnail"

// Metrics agrupa as métricas do simulador; o main registra
type Metrics struct {
	Connections prometheus.Gauge
	FramesSent  prometheus.Counter
}

func NewMetrics() Metrics {
	return Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feed_sim_ws_connections",
			Help: "Clientes WebSocket conectados",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_sim_frames_sent_total",
			Help: "Total de frames next enviados",
		}),
	}
}

// Representa uma conexão de cliente; subID vazio = ainda não assinou os jogos
type clientConn struct {
	id    string
	conn  *websocket.Conn
	wmu   sync.Mutex
	subID string
}

func (c *clientConn) writeJSON(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.conn.WriteJSON(v)
}

type clientMsg struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload struct {
		OperationName string `json:"operationName"`
	} `json:"payload"`
}

// Hub fala graphql-transport-ws com os clientes e faz broadcast dos jogos
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[string]*clientConn
	log      *zap.Logger
	m        Metrics
}

func New(log *zap.Logger, m Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{"graphql-transport-ws"},
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*clientConn),
		log:     log,
		m:       m,
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão: ack, ping/pong e assinaturas
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &clientConn{id: uuid.NewString(), conn: conn}
	h.add(c)
	defer func() {
		h.remove(c.id)
		_ = conn.Close()
	}()

	for {
		var msg clientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "connection_init":
			_ = c.writeJSON(map[string]string{"type": "connection_ack"})
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		case "subscribe":
			if msg.Payload.OperationName == OperationUpdatePvpGame {
				h.mu.Lock()
				c.subID = msg.ID
				h.mu.Unlock()
				h.log.Info("client subscribed to pvp games", zap.String("client_id", c.id), zap.String("sub_id", msg.ID))
			}
		case "complete":
			h.mu.Lock()
			if c.subID == msg.ID {
				c.subID = ""
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	h.m.Connections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		h.m.Connections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

// Broadcast envia o jogo como frame "next" a quem assinou; retorna quantos receberam
func (h *Hub) Broadcast(game any) int {
	h.mu.RLock()
	targets := make(map[*clientConn]string, len(h.clients))
	for _, c := range h.clients {
		if c.subID != "" {
			targets[c] = c.subID
		}
	}
	h.mu.RUnlock()

	data := map[string]any{
		"updatePvpGame": map[string]any{
			"pvpGame":          game,
			"autoJoinedByBots": false,
		},
	}
	sent := 0
	for c, subID := range targets {
		frame := map[string]any{
			"id":      subID,
			"type":    "next",
			"payload": map[string]any{"data": data},
		}
		if err := c.writeJSON(frame); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", c.id), zap.Error(err))
			_ = c.conn.Close()
			continue
		}
		h.m.FramesSent.Inc()
		sent++
	}
	return sent
}

// Ping envia um ping de protocolo para todos; mantém o read deadline do cliente vivo
func (h *Hub) Ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		_ = c.writeJSON(map[string]string{"type": "ping"})
	}
}

// Len retorna o número de clientes conectados
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Snapshot serializa o estado para o endpoint de debug
func (h *Hub) Snapshot() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	type entry struct {
		ID         string `json:"id"`
		Subscribed bool   `json:"subscribed"`
	}
	out := make([]entry, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, entry{ID: c.id, Subscribed: c.subID != ""})
	}
	b, _ := json.Marshal(out)
	return b
}
