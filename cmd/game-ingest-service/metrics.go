package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ingestMetrics reúne os coletores do serviço; ligados aos callbacks dos componentes
type ingestMetrics struct {
	framesReceived prometheus.Counter
	gamesEnqueued  prometheus.Counter
	playersSeen    prometheus.Counter
	reconnects     prometheus.Counter
	reconnectWait  prometheus.Histogram
	streamState    prometheus.Gauge
	queueDepth     prometheus.GaugeFunc

	consumed  prometheus.Counter
	persisted prometheus.Counter
	fallbacks prometheus.Counter
	errorsBy  *prometheus.CounterVec
}

func newIngestMetrics(queueLen func() float64) *ingestMetrics {
	return &ingestMetrics{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{Name: "game_ingest_frames_received_total", Help: "frames recebidos do feed"}),
		gamesEnqueued:  prometheus.NewCounter(prometheus.CounterOpts{Name: "game_ingest_games_enqueued_total", Help: "jogos finalizados enfileirados"}),
		playersSeen:    prometheus.NewCounter(prometheus.CounterOpts{Name: "game_ingest_players_enqueued_total", Help: "jogadores humanos enfileirados"}),
		reconnects:     prometheus.NewCounter(prometheus.CounterOpts{Name: "game_ingest_reconnects_total", Help: "reconexões agendadas"}),
		reconnectWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "game_ingest_reconnect_wait_seconds",
			Help:    "espera antes de reconectar",
			Buckets: []float64{2, 4, 8, 16, 32, 60},
		}),
		streamState: prometheus.NewGauge(prometheus.GaugeOpts{Name: "game_ingest_stream_state", Help: "estado do cliente (0=DISCONNECTED .. 5=STOPPED)"}),
		queueDepth:  prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "game_ingest_queue_depth", Help: "jogos aguardando persistência"}, queueLen),

		consumed:  prometheus.NewCounter(prometheus.CounterOpts{Name: "game_ingest_games_consumed_total", Help: "jogos retirados da fila"}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{Name: "game_ingest_players_persisted_total", Help: "jogadores gravados (usuário + acumulado)"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{Name: "game_ingest_players_fallback_total", Help: "jogadores enviados ao fallback"}),
		errorsBy:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "game_ingest_errors_total", Help: "erros por estágio"}, []string{"stage"}),
	}
}

func (m *ingestMetrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.framesReceived, m.gamesEnqueued, m.playersSeen, m.reconnects, m.reconnectWait,
		m.streamState, m.queueDepth, m.consumed, m.persisted, m.fallbacks, m.errorsBy,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
