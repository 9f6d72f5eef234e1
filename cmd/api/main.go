package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivory-showcase/showcase-backend/config"
	"github.com/ivory-showcase/showcase-backend/internal/bootstrap"
	"github.com/ivory-showcase/showcase-backend/internal/ledger"
	"github.com/ivory-showcase/showcase-backend/internal/logging"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/cascade"
	cronjob "github.com/ivory-showcase/showcase-backend/internal/showcase/cron"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/normalize"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/repository"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/service"
	"go.uber.org/zap"
)

const (
	serviceName     = "showcase-backend"
	shutdownTimeout = 10 * time.Second
	warmupTimeout   = 2 * time.Minute
)

func main() {
	if err := run(); err != nil {
		log.Println("error: ", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	bootstrap.SetGinMode(cfg.App.Environment)
	ctx := context.Background()

	rdb, err := bootstrap.OpenRedis(ctx, bootstrap.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("redis unavailable, running without stage cache", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	client := ledger.NewClient(ledger.Config{
		Endpoint:  cfg.Ledger.RPCURL,
		Timeout:   cfg.Ledger.Timeout,
		RateLimit: cfg.Ledger.RateLimit,
		Burst:     cfg.Ledger.Burst,
	}, logger)

	opts := cascade.Options{
		Address:     cfg.Showcase.OwnerAddress,
		TypeTag:     cfg.Showcase.BlobType,
		Concurrency: cfg.Showcase.Concurrency,
	}
	if rdb != nil {
		opts.Cache = repository.NewStageCache(rdb, cfg.Showcase.Freshness)
	}
	pipeline := cascade.New(client, opts, logger)

	projects := service.NewProjectService(pipeline, normalize.New(logger), logger,
		service.WithFreshness(cfg.Showcase.Freshness))
	warmCtx, cancelWarm := context.WithTimeout(ctx, warmupTimeout)
	if err := projects.Load(warmCtx); err != nil {
		logger.Warn("initial project load failed, serving empty until the next refresh", zap.Error(err))
	}
	cancelWarm()

	scheduler := cronjob.NewScheduler(cfg.Showcase.RefreshSchedule, projects, logger)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    serviceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Redis:          rdb,
		Projects:       projects,
		Logger:         logger,
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", server.Addr),
			zap.String("network", cfg.Ledger.Network),
			zap.String("owner", cfg.Showcase.OwnerAddress),
			zap.Bool("cache", rdb != nil),
		)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("starting server: %w", err)

	case sig := <-shutdown:
		logger.Info("start shutdown", zap.String("signal", sig.String()))

		sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(sctx); err != nil {
			logger.Warn("graceful shutdown did not complete", zap.Error(err))
			if err := server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}
		scheduler.Stop()
		projects.Wait()
	}

	return nil
}
