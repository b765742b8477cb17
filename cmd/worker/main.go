package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/pflag"
	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/config"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"github.com/suPer8Hu/chat-relay/internal/store/dbstore"
	"github.com/suPer8Hu/chat-relay/internal/store/rabbitmq"
	"github.com/suPer8Hu/chat-relay/internal/store/redisstore"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// the worker never calls the model API, so only storage credentials matter
	if err := cfg.Storage.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := dbstore.Open(cfg.Storage)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer func() { _ = dbstore.Close(db) }()
	if cfg.Storage.AutoMigrate {
		if err := dbstore.Migrate(ctx, db, chat.Models()...); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	svc := chat.NewService(chat.NewRepo(dbstore.NewClient(db)), logger.Named("chat"))

	observers := chat.Observers{chat.LogObserver{Log: logger.Named("interactions")}}
	if cfg.Redis.Addr != "" {
		rs, err := redisstore.Open(ctx, cfg.Redis, logger.Named("redis"))
		if err != nil {
			logger.Fatal("open redis", zap.Error(err))
		}
		defer func() { _ = rs.Close() }()
		observers = append(observers, rs)
	}

	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		logger.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.Rabbit.Queue); err != nil {
		logger.Fatal("queue declare", zap.Error(err))
	}

	//  strict concurrency control
	concurrency := cfg.Worker.Concurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.Rabbit.Queue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatal("consume", zap.Error(err))
	}

	logger.Info("worker started", zap.String("queue", cfg.Rabbit.Queue), zap.Int("concurrency", concurrency))

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := logger.With(zap.Int("worker", workerID))
			for d := range jobs {
				start := time.Now()
				// in-flight logs finish even after a shutdown signal
				jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Dispatch.TaskTimeout)
				err := rabbitmq.Process(jobCtx, svc, observers, d.Body)
				cancel()
				if err != nil {
					wlog.Warn("interaction log failed, dead-lettering",
						zap.String("request_id", d.CorrelationId),
						zap.Duration("took", time.Since(start)),
						zap.Error(err),
					)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					wlog.Warn("ack failed", zap.String("request_id", d.CorrelationId), zap.Error(err))
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Error("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}
