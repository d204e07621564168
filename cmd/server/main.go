package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pestops-bknd/internal/auth"
	"pestops-bknd/internal/config"
	"pestops-bknd/internal/database"
	"pestops-bknd/internal/events"
	"pestops-bknd/internal/logger"
	"pestops-bknd/internal/routes"
	"pestops-bknd/internal/watermark"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	db, err := database.New(cfg)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseDriver == "sqlite" {
		// local runs have no separate migration step
		if err := database.CreateSchema(ctx, db); err != nil {
			logr.Fatal("failed to create schema", zap.Error(err))
		}
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTIssuer)
	if err != nil {
		logr.Fatal("failed to init jwt manager", zap.Error(err))
	}

	pub, closeEvents := buildPublisher(ctx, cfg, logr)
	defer closeEvents()

	r := routes.NewRouter(ctx, routes.Deps{
		DB:     db,
		Config: cfg,
		Logger: logr,
		JWT:    jwtMgr,
		Events: pub,
		Fence:  watermark.NewFence(nil),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started", zap.String("port", cfg.Port), zap.String("db_driver", cfg.DatabaseDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logr.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	logr.Info("server exited gracefully")
}

// buildPublisher wires the configured event sinks. A sink that cannot be
// reached at startup is skipped with a warning; sync never depends on it.
func buildPublisher(ctx context.Context, cfg *config.Config, logr *logger.Logger) (events.Publisher, func()) {
	var (
		sinks   events.Multi
		closers []func()
	)

	if cfg.RedisAddr != "" {
		client, err := events.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logr.Warn("redis events disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			sinks = append(sinks, events.NewRedisStreamPublisher(client, cfg.EventsStream))
			closers = append(closers, func() { _ = client.Close() })
			logr.Info("publishing events to redis stream", zap.String("stream", cfg.EventsStream))
		}
	}

	if cfg.MQTTBroker != "" {
		mq, err := events.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
		if err != nil {
			logr.Warn("mqtt events disabled", zap.String("broker", cfg.MQTTBroker), zap.Error(err))
		} else {
			sinks = append(sinks, mq)
			closers = append(closers, mq.Close)
			logr.Info("publishing events to mqtt", zap.String("broker", cfg.MQTTBroker))
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(sinks) == 0 {
		return events.Nop{}, closeAll
	}
	return sinks, closeAll
}
