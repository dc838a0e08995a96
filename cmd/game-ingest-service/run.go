package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radieske/pvp-results-ingest/internal/game-ingest/fallback"
	"github.com/radieske/pvp-results-ingest/internal/game-ingest/pubsub"
	"github.com/radieske/pvp-results-ingest/internal/game-ingest/queue"
	"github.com/radieske/pvp-results-ingest/internal/game-ingest/repository"
	"github.com/radieske/pvp-results-ingest/internal/game-ingest/stream"
	"github.com/radieske/pvp-results-ingest/internal/game-ingest/worker"
	sharedcache "github.com/radieske/pvp-results-ingest/internal/shared/cache"
	"github.com/radieske/pvp-results-ingest/internal/shared/config"
	"github.com/radieske/pvp-results-ingest/internal/shared/db"
	"github.com/radieske/pvp-results-ingest/internal/shared/kafka"
	"github.com/radieske/pvp-results-ingest/internal/shared/logger"
	"github.com/radieske/pvp-results-ingest/internal/shared/metrics"
	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Consume the feed and persist every finished game",
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runService(ctx, cfg, log)
		},
	}
}

func runService(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	sslMode, _ := config.NormalizeSSLMode(cfg.DBSSLMode)

	// Inicializa dependências: Postgres obrigatório; Redis e Kafka opcionais
	pg, err := db.ConnectPostgres(ctx, db.PostgresConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  sslMode,
		MinConns: cfg.DBMinConns,
		MaxConns: cfg.DBMaxConns,
	}, log)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer func() {
		_ = pg.Close()
		log.Info("database pool closed")
	}()

	repo := repository.NewPostgresRepo(pg)
	if cfg.DBAutoMigrate {
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("database schema ensured")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer redisClient.Close()
	}

	sinks := fallback.MultiSink{fallback.NewFileSink(cfg.BackupFilePath)}
	if cfg.KafkaBrokers != "" {
		dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicDLQ)
		defer dlq.Close()
		sinks = append(sinks, fallback.NewKafkaSink(dlq))
		log.Info("fallback mirrored to kafka", zap.String("topic", cfg.TopicDLQ))
	}

	q := queue.New(cfg.QueueCapacity)

	// Métricas Prometheus para monitoramento de cada etapa
	m := newIngestMetrics(func() float64 { return float64(q.Len()) })
	if err := m.register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	client := newStreamClient(cfg, q, log, m)

	persister := worker.NewPersister(log.Named("worker"), q, repo, sinks)
	persister.MaxRetries = cfg.WriterMaxRetries
	persister.RetryDelay = cfg.WriterRetryDelay
	persister.OnConsumed = func() { m.consumed.Inc() }
	persister.OnPersist = func() { m.persisted.Inc() }
	persister.OnFallback = func() { m.fallbacks.Inc() }
	persister.OnError = func(stage string) { m.errorsBy.WithLabelValues(stage).Inc() }
	if redisClient != nil {
		// Após sucesso de persistência, publica o resultado no Redis Pub/Sub
		persister.OnPersisted = pubsub.NewRedisBroadcaster(redisClient, cfg.RedisChannel, log).OnPersisted
	}

	// Servidor HTTP para métricas e health check
	checks := []metrics.HealthCheck{{Name: "postgres", Check: pg.PingContext}}
	if redisClient != nil {
		checks = append(checks, metrics.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, checks...)

	log.Info("game-ingest started",
		zap.String("feed", cfg.FeedURL),
		zap.Int("queue_capacity", q.Cap()),
		zap.String("fallback_file", cfg.BackupFilePath),
	)

	runPipeline(ctx, client, persister)

	log.Info("shutdown signal received, workers stopped")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown", zap.Error(err))
	}
	log.Info("game-ingest stopped")
	return nil
}

func newStreamClient(cfg *config.Config, q *queue.Queue, log *zap.Logger, m *ingestMetrics) *stream.Client {
	feed := stream.NewHypeDrop(stream.HypeDropConfig{
		URL:            cfg.FeedURL,
		Site:           cfg.FeedSite,
		ProfileBaseURL: cfg.FeedProfileBaseURL,
		Log:            log.Named("feed"),
	})
	client := stream.NewClient(feed, q, log.Named("stream"))
	if cfg.FeedReadTimeout > 0 {
		client.ReadTimeout = cfg.FeedReadTimeout
	}
	if m != nil {
		client.OnMessage = func() { m.framesReceived.Inc() }
		client.OnEvent = func(ev events.GameFinishedEvent) {
			m.gamesEnqueued.Inc()
			m.playersSeen.Add(float64(len(ev.Players)))
		}
		client.OnReconnect = func(wait time.Duration) {
			m.reconnects.Inc()
			m.reconnectWait.Observe(wait.Seconds())
		}
		client.OnState = func(s stream.State) { m.streamState.Set(float64(s)) }
	}
	return client
}

type runner interface {
	Run(ctx context.Context) error
}

// runPipeline para o produtor primeiro e só então o consumidor.
// Assim o consumidor esvazia a fila quando nada mais pode ser enfileirado.
func runPipeline(ctx context.Context, producer, consumer runner) {
	consumerCtx, stopConsumer := context.WithCancel(context.WithoutCancel(ctx))
	defer stopConsumer()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(consumerCtx)
	}()

	_ = producer.Run(ctx)
	stopConsumer()
	<-done
}
