package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"indexer/internal/constants"
	apperrors "indexer/pkg/errors"
	"indexer/pkg/metrics"
)

// RedisStore keeps only the latest run per token, expiring after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(token string) string {
	return constants.RunLogKeyPrefix + token
}

// Record skips runs without a token; there is nothing to look them up by.
func (s *RedisStore) Record(ctx context.Context, run Run) error {
	if run.Token == "" {
		return nil
	}

	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if err := s.client.Set(ctx, key(run.Token), body, s.ttl).Err(); err != nil {
		metrics.IncRunLogWrite("redis", "error")
		return fmt.Errorf("failed to store run: %w", err)
	}

	metrics.IncRunLogWrite("redis", "ok")
	return nil
}

func (s *RedisStore) Latest(ctx context.Context, token string) (*Run, error) {
	body, err := s.client.Get(ctx, key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNotFound.WithDetail("token", token)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var run Run
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}
