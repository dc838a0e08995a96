package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/pvp-results-ingest/internal/shared/retry"
	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

// State é o estado corrente do cliente de streaming
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateListening
	StateReconnectWait
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateListening:
		return "LISTENING"
	case StateReconnectWait:
		return "RECONNECT_WAIT"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ConnError marca falhas de rede (dial, leitura, escrita, timeout); são retentadas com backoff
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *ConnError) Unwrap() error { return e.Err }

// Enqueuer recebe os eventos produzidos pelo cliente (normalmente a queue.Queue)
type Enqueuer interface {
	Put(ctx context.Context, ev events.GameFinishedEvent) error
}

const (
	defaultInitialDelay    = 2 * time.Second
	defaultMaxDelay        = 60 * time.Second
	defaultUnexpectedDelay = 5 * time.Second
	defaultReadTimeout     = 90 * time.Second
	closeGracePeriod       = time.Second
)

// Client mantém uma conexão de assinatura com o feed e reconecta com backoff exponencial.
// Nunca encerra por causa de uma mensagem; só para quando o contexto é cancelado.
type Client struct {
	Feed  Feed
	Queue Enqueuer
	Log   *zap.Logger

	Dialer          *websocket.Dialer
	ReadTimeout     time.Duration
	Backoff         *Backoff
	UnexpectedDelay time.Duration

	OnMessage   func()                         // métricas: frame recebido
	OnEvent     func(events.GameFinishedEvent) // métricas: evento enfileirado
	OnReconnect func(wait time.Duration)       // métricas: reconexão agendada
	OnState     func(State)                    // métricas: gauge de estado

	state atomic.Int32
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient cria o cliente com os defaults (2s → 60s, 5s para erros inesperados)
func NewClient(feed Feed, q Enqueuer, log *zap.Logger) *Client {
	return &Client{
		Feed:            feed,
		Queue:           q,
		Log:             log.With(zap.String("source", feed.Name())),
		ReadTimeout:     defaultReadTimeout,
		Backoff:         NewBackoff(defaultInitialDelay, defaultMaxDelay),
		UnexpectedDelay: defaultUnexpectedDelay,
	}
}

// State retorna o estado atual
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	if c.OnState != nil {
		c.OnState(s)
	}
}

// Run consome o feed indefinidamente até o cancelamento do contexto
func (c *Client) Run(ctx context.Context) error {
	if c.Backoff == nil {
		c.Backoff = NewBackoff(defaultInitialDelay, defaultMaxDelay)
	}
	if c.UnexpectedDelay == 0 {
		c.UnexpectedDelay = defaultUnexpectedDelay
	}
	if c.sleep == nil {
		c.sleep = retry.Sleep
	}
	defer c.setState(StateStopped)

	for {
		if err := ctx.Err(); err != nil {
			c.Log.Info("context canceled, stopping stream client")
			return err
		}

		err := c.session(ctx)
		if ctx.Err() != nil {
			c.Log.Info("context canceled, stopping stream client")
			return ctx.Err()
		}

		var wait time.Duration
		if isConnectionFailure(err) {
			wait = c.Backoff.Next()
			c.Log.Warn("connection lost, retrying", zap.Error(err), zap.Duration("wait", wait))
		} else {
			wait = c.UnexpectedDelay
			c.Log.Error("unexpected stream error, retrying", zap.Error(err), zap.Duration("wait", wait))
		}

		c.setState(StateReconnectWait)
		if c.OnReconnect != nil {
			c.OnReconnect(wait)
		}
		if err := c.sleep(ctx, wait); err != nil {
			c.Log.Info("context canceled, stopping stream client")
			return err
		}
	}
}

// session executa um ciclo completo: conecta, faz o handshake e escuta até falhar
func (c *Client) session(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in stream session: %v", r)
		}
	}()

	c.setState(StateConnecting)
	c.Log.Info("connecting to feed", zap.String("url", c.Feed.URL()))

	dialer := websocket.DefaultDialer
	if c.Dialer != nil {
		dialer = c.Dialer
	}
	d := *dialer
	d.Subprotocols = c.Feed.Subprotocols()

	conn, _, err := d.DialContext(ctx, c.Feed.URL(), c.Feed.Header())
	if err != nil {
		return &ConnError{Op: "dial", Err: err}
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := c.Log.With(zap.String("session_id", sessionID))
	log.Info("connected to feed")
	c.Backoff.Reset()

	// Cancelamento fecha a conexão e desbloqueia a leitura imediatamente
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(closeGracePeriod))
			_ = conn.Close()
		case <-done:
		}
	}()

	c.setState(StateHandshaking)
	if hook, ok := c.Feed.(ConnectHook); ok {
		if err := hook.OnConnected(ctx, conn); err != nil {
			return err
		}
	}

	c.setState(StateListening)
	control, _ := c.Feed.(ControlHandler)

	for {
		if c.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ConnError{Op: "read", Err: err}
		}
		if c.OnMessage != nil {
			c.OnMessage()
		}

		if control != nil {
			if err := control.HandleControl(ctx, msg, conn); err != nil {
				return err
			}
		}

		ev, ok := c.Feed.ParseMessage(msg)
		if !ok {
			continue
		}

		log.Debug("game finished",
			zap.String("game_id", ev.GameID),
			zap.Int("human_players", len(ev.Players)))

		// Bloqueia se a fila estiver cheia: consumidor lento desacelera a leitura
		if err := c.Queue.Put(ctx, ev); err != nil {
			return err
		}
		if c.OnEvent != nil {
			c.OnEvent(ev)
		}
	}
}

// isConnectionFailure separa falhas de rede/protocolo (backoff exponencial) de erros inesperados (espera fixa)
func isConnectionFailure(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce) || errors.Is(err, ErrProtocol)
}
