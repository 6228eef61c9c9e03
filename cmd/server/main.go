// Command server runs the AstraSync agent registry: the HTTP API, the
// PostgreSQL-backed record store, and the optional notification relay.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/AstraSyncAI/astrasync-api/internal/notification"
	"github.com/AstraSyncAI/astrasync-api/internal/platform/config"
	"github.com/AstraSyncAI/astrasync-api/internal/platform/httpserver"
	"github.com/AstraSyncAI/astrasync-api/internal/platform/logger"
	platformmetrics "github.com/AstraSyncAI/astrasync-api/internal/platform/metrics"
	platformpg "github.com/AstraSyncAI/astrasync-api/internal/platform/postgres"
	platformredis "github.com/AstraSyncAI/astrasync-api/internal/platform/redis"
	registrycache "github.com/AstraSyncAI/astrasync-api/internal/registry/cache"
	registryhandler "github.com/AstraSyncAI/astrasync-api/internal/registry/handler"
	"github.com/AstraSyncAI/astrasync-api/internal/registry/idgen"
	registrymetrics "github.com/AstraSyncAI/astrasync-api/internal/registry/metrics"
	"github.com/AstraSyncAI/astrasync-api/internal/registry/service"
	"github.com/AstraSyncAI/astrasync-api/internal/registry/store"
	agentstore "github.com/AstraSyncAI/astrasync-api/internal/registry/store/agent"
	notificationstore "github.com/AstraSyncAI/astrasync-api/internal/registry/store/notification"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := platformpg.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := platformpg.Migrate(db); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	agents := agentstore.NewPostgres(db)
	notifications := notificationstore.NewPostgres(db)

	opts := []service.Option{
		service.WithTx(store.NewPostgresTx(db)),
		service.WithLogger(log),
		service.WithMetrics(registrymetrics.New()),
	}
	if redisClient != nil {
		opts = append(opts, service.WithCache(registrycache.New(redisClient,
			registrycache.WithTTL(cfg.Redis.CacheTTL),
			registrycache.WithLogger(log),
		)))
	}
	svc := service.New(agents, notifications, idgen.New(), opts...)

	handler := registryhandler.New(svc, log, cfg.BaseURL)
	router := newRouter(handler, log, platformmetrics.New(), db, redisClient)
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting registry server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := notification.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()

		relay := notification.NewRelay(notifications, publisher,
			notification.WithPollInterval(cfg.RelayPollInterval),
			notification.WithLogger(log),
		)
		group.Go(func() error {
			log.Info("starting notification relay",
				"topic", cfg.Kafka.Topic,
				"interval", cfg.RelayPollInterval.String(),
			)
			if err := relay.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		log.Info("notification relay disabled, no kafka brokers configured")
	}

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
