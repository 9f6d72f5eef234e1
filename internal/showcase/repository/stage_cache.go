package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ivory-showcase/showcase-backend/internal/showcase/domain"
	"github.com/redis/go-redis/v9"
)

const (
	stageKeyPrefix   = "showcase:stage:" // showcase:stage:{stage}:{key}
	scanBatch        = 100
	DefaultFreshness = 5 * time.Minute
)

// StageCache stores cascade stage outputs in Redis. Entries expire after
// the freshness window, so an expired entry is a miss and the stage refetches.
type StageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStageCache creates a new StageCache
func NewStageCache(client *redis.Client, freshness time.Duration) *StageCache {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &StageCache{
		client: client,
		ttl:    freshness,
	}
}

// Get loads the cached output of stage for key into dst. It reports false
// when nothing fresh is cached.
func (r *StageCache) Get(ctx context.Context, stage domain.Stage, key string, dst any) (bool, error) {
	data, err := r.client.Get(ctx, r.stageKey(stage, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s stage: %w", stage, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s stage: %w", stage, err)
	}
	return true, nil
}

// Put stores the output of stage for key
func (r *StageCache) Put(ctx context.Context, stage domain.Stage, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s stage: %w", stage, err)
	}
	if err := r.client.Set(ctx, r.stageKey(stage, key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store %s stage: %w", stage, err)
	}
	return nil
}

// InvalidateAll drops every cached entry of every stage
func (r *StageCache) InvalidateAll(ctx context.Context) error {
	for _, stage := range domain.Stages {
		if err := r.invalidate(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

func (r *StageCache) invalidate(ctx context.Context, stage domain.Stage) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, stageKeyPrefix+string(stage)+":*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan %s stage: %w", stage, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate %s stage: %w", stage, err)
	}
	return nil
}

func (r *StageCache) stageKey(stage domain.Stage, key string) string {
	return stageKeyPrefix + string(stage) + ":" + key
}
