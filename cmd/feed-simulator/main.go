package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/pvp-results-ingest/internal/feed-simulator/generator"
	"github.com/radieske/pvp-results-ingest/internal/feed-simulator/hub"
	"github.com/radieske/pvp-results-ingest/internal/shared/config"
	"github.com/radieske/pvp-results-ingest/internal/shared/logger"
	"github.com/radieske/pvp-results-ingest/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	log, err := logger.New("feed-simulator", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	m := hub.NewMetrics()
	prometheus.MustRegister(m.Connections, m.FramesSent)

	h := hub.New(log, m)
	gen := generator.New(time.Now().UnixNano())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Gera e envia um jogo a cada 3 segundos; ping de protocolo a cada 30
	go func() {
		games := time.NewTicker(3 * time.Second)
		pings := time.NewTicker(30 * time.Second)
		defer games.Stop()
		defer pings.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-games.C:
				game := gen.Next()
				sent := h.Broadcast(game)
				log.Debug("game frame sent",
					zap.String("game_id", game.ID),
					zap.String("status", game.Status),
					zap.Int("clients", sent),
				)
			case <-pings.C:
				h.Ping()
			}
		}
	}()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	publicAddr := fmt.Sprintf(":%s", cfg.SimulatorPort)
	srv := &http.Server{Addr: publicAddr, Handler: hub.Handler(h), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("feed simulator running",
			zap.String("addr", publicAddr),
			zap.String("paths", "/ws,/debug/clients"),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("feed simulator stopped")
}
