package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"github.com/suPer8Hu/chat-relay/internal/ai"
	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/config"
	"github.com/suPer8Hu/chat-relay/internal/document"
	"github.com/suPer8Hu/chat-relay/internal/httpapi"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/handlers"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"github.com/suPer8Hu/chat-relay/internal/store/dbstore"
	"github.com/suPer8Hu/chat-relay/internal/store/rabbitmq"
	"github.com/suPer8Hu/chat-relay/internal/store/redisstore"
	"github.com/suPer8Hu/chat-relay/internal/worker"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// fail before any dial when credentials are missing
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := dbstore.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = dbstore.Close(db) }()

	if cfg.Storage.AutoMigrate {
		if err := dbstore.Migrate(ctx, db, chat.Models()...); err != nil {
			return err
		}
	}

	client := dbstore.NewClient(db)
	// the probe result is informational; a failing probe does not stop startup
	if n, err := client.Count(ctx, chat.TableInteractions); err != nil {
		logger.Warn("storage probe failed", zap.Error(err))
	} else {
		logger.Info("storage probe ok", zap.String("driver", cfg.Storage.Driver), zap.Int64("interaction_logs", n))
	}

	svc := chat.NewService(chat.NewRepo(client), logger.Named("chat"))

	observers := chat.Observers{chat.LogObserver{Log: logger.Named("interactions")}}
	var outcomes handlers.OutcomeReader
	if cfg.Redis.Addr != "" {
		rs, err := redisstore.Open(ctx, cfg.Redis, logger.Named("redis"))
		if err != nil {
			return err
		}
		defer func() { _ = rs.Close() }()
		observers = append(observers, rs)
		outcomes = rs
	}

	var (
		dispatcher chat.InteractionDispatcher
		pool       *worker.Pool
	)
	switch cfg.Dispatch.Mode {
	case "rabbitmq":
		pub, err := rabbitmq.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Queue, logger.Named("publisher"), observers)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		dispatcher = pub
	default:
		pool = worker.NewPool(worker.Options{
			Workers:     cfg.Dispatch.Workers,
			QueueSize:   cfg.Dispatch.QueueSize,
			TaskTimeout: cfg.Dispatch.TaskTimeout,
		}, logger.Named("pool"))
		dispatcher = chat.NewPoolDispatcher(pool, svc, observers)
	}

	provider, err := ai.NewDefaultRegistry(cfg.OpenAI).Get(ctx, cfg.OpenAI.Provider, cfg.OpenAI.Model)
	if err != nil {
		return err
	}
	relay := chat.NewRelay(provider, cfg.OpenAI.SystemPrompt, dispatcher, logger.Named("relay"))

	h := handlers.NewHandler(svc, relay, document.NewPlaceholderGenerator(logger.Named("document")), outcomes, logger)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(h, cfg.Server, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("provider", cfg.OpenAI.Provider),
			zap.String("model", cfg.OpenAI.Model),
			zap.String("dispatch", cfg.Dispatch.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("api shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// drain interaction logs queued by requests that already returned
	if pool != nil {
		if err := pool.Close(shutdownCtx); err != nil {
			logger.Warn("dispatch pool drain", zap.Error(err))
		}
	}
	return nil
}
