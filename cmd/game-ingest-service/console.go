package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radieske/pvp-results-ingest/internal/game-ingest/console"
	"github.com/radieske/pvp-results-ingest/internal/game-ingest/pubsub"
	"github.com/radieske/pvp-results-ingest/internal/game-ingest/queue"
	sharedcache "github.com/radieske/pvp-results-ingest/internal/shared/cache"
	"github.com/radieske/pvp-results-ingest/internal/shared/config"
	"github.com/radieske/pvp-results-ingest/internal/shared/logger"
)

// console nunca roda o worker de persistência: a fila tem um único consumidor
func newConsoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Print finished games from the feed without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			persisted, _ := cmd.Flags().GetBool("persisted")

			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if persisted {
				return tailPersisted(ctx, cfg, log)
			}
			if err := cfg.ValidateFeed(); err != nil {
				return err
			}
			return printFeed(ctx, cfg, log)
		},
	}
	cmd.Flags().Bool("persisted", false, "tail results already persisted by a running service (Redis pub/sub)")
	return cmd
}

func printFeed(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	q := queue.New(cfg.QueueCapacity)
	client := newStreamClient(cfg, q, log, nil)
	printer := &console.Printer{Log: log, Queue: q, Out: os.Stdout}

	log.Info("console mode started", zap.String("feed", cfg.FeedURL))
	runPipeline(ctx, client, printer)
	log.Info("console mode stopped")
	return nil
}

func tailPersisted(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.RedisAddr == "" {
		return fmt.Errorf("%w: REDIS_ADDR", config.ErrMissingRequired)
	}
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer rdb.Close()

	log.Info("tailing persisted results", zap.String("channel", cfg.RedisChannel))
	err = pubsub.Subscribe(ctx, rdb, cfg.RedisChannel, log, func(u pubsub.PersistedUpdate) {
		if err := console.PrintPersisted(os.Stdout, u); err != nil {
			log.Warn("console write failed", zap.Error(err))
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
