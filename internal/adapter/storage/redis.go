package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/redis/go-redis/v9"
)

var _ port.SessionStorage = (*RedisStorage)(nil)

type RedisConfig struct {
	URL          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
}

// NewRedisClient parses the URL, applies the timeouts and pings the server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	const op = "storage.NewRedisClient"

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: redis is unavailable: %w", op, err)
	}
	return client, nil
}

type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, ttl time.Duration) RedisStorage {
	return RedisStorage{client: client, ttl: ttlOrDefault(ttl)}
}

func (s RedisStorage) LoadSession(
	ctx context.Context, id string,
) (*domain.Session, error) {
	const op = "RedisStorage.LoadSession"

	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: redis get failed: %w", op, err)
	}

	sess, err := unmarshalSession(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

// SaveSession writes the session and restarts its TTL.
func (s RedisStorage) SaveSession(
	ctx context.Context, sess *domain.Session,
) error {
	const op = "RedisStorage.SaveSession"

	data, err := marshalSession(sess)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: redis set failed: %w", op, err)
	}
	return nil
}

func (s RedisStorage) Close() {
	const op = "RedisStorage.Close"
	log := slog.With("op", op)

	log.Info("closing redis client...")
	if err := s.client.Close(); err != nil {
		log.Error("failed to close", "err", err)
		return
	}
	log.Info("redis client is closed")
}

func sessionKey(id string) string {
	return "storefront:session:" + id
}
