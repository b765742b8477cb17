// Package redisstore keeps short-lived diagnostics about detached
// interaction logs.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/config"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"go.uber.org/zap"
)

const (
	keyPrefix    = "chat-relay:interaction:"
	defaultTTL   = 24 * time.Hour
	writeTimeout = 2 * time.Second
)

var ErrNotFound = errors.New("redisstore: outcome not found")

type Store struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// Open connects and pings so a bad address fails at startup.
func Open(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, pkgerrors.Wrapf(err, "redis ping %s", cfg.Addr)
	}
	return New(rdb, cfg.TTL, log), nil
}

func New(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl, log: logging.OrNop(log)}
}

func (s *Store) Close() error { return s.rdb.Close() }

func outcomeKey(relayRequestID string) string {
	return keyPrefix + relayRequestID
}

func (s *Store) Record(ctx context.Context, o chat.Outcome) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	key := outcomeKey(o.RelayRequestID)
	if o.Status.Provisional() {
		// never overwrite a final status
		return s.rdb.SetNX(ctx, key, b, s.ttl).Err()
	}
	return s.rdb.Set(ctx, key, b, s.ttl).Err()
}

func (s *Store) Get(ctx context.Context, relayRequestID string) (*chat.Outcome, error) {
	b, err := s.rdb.Get(ctx, outcomeKey(relayRequestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var o chat.Outcome
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ObserveInteraction records o. Failures are logged and swallowed: this is
// a diagnostics path.
func (s *Store) ObserveInteraction(ctx context.Context, o chat.Outcome) {
	if o.RelayRequestID == "" {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.Record(cctx, o); err != nil {
		s.log.Warn("record interaction outcome failed",
			zap.String("request_id", o.RelayRequestID), zap.Error(err))
	}
}
