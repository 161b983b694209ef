// Package session resolves opaque session tokens to actor identities. The
// actor is then carried explicitly in every mutating request; nothing in the
// service reads session state through package-level globals.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/halcyonops/intel-console/internal/config"
)

// ErrNoSession is returned when a token is unknown or expired.
var ErrNoSession = errors.New("session not found")

// Resolver maps a session token to the acting user.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// RedisStore keeps sessions in Redis with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore creates a session store backed by Redis.
func NewRedisStore(cfg config.RedisConfig, logger *slog.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{
		client: client,
		ttl:    cfg.SessionTTL,
		logger: logger,
	}
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Create opens a session for the actor and returns its token.
func (s *RedisStore) Create(ctx context.Context, actor string) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, key(token), actor, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	s.logger.Info("Session created", "actor", actor)
	return token, nil
}

// Resolve returns the actor bound to the token, refreshing its TTL.
func (s *RedisStore) Resolve(ctx context.Context, token string) (string, error) {
	actor, err := s.client.Get(ctx, key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve session: %w", err)
	}
	if err := s.client.Expire(ctx, key(token), s.ttl).Err(); err != nil {
		s.logger.Warn("Failed to refresh session TTL", "error", err)
	}
	return actor, nil
}

// Revoke ends a session.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	deleted, err := s.client.Del(ctx, key(token)).Result()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if deleted == 0 {
		return ErrNoSession
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func key(token string) string {
	return "session:" + token
}
