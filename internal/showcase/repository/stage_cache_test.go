package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ivory-showcase/showcase-backend/internal/ledger"
	"github.com/ivory-showcase/showcase-backend/internal/showcase/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	err = client.Ping(context.Background()).Err()
	require.NoError(t, err)

	return client, mr
}

func TestStageCache_PutGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	cache := NewStageCache(client, time.Minute)
	ctx := context.Background()

	t.Run("miss on empty cache", func(t *testing.T) {
		var got []ledger.OwnedObject
		hit, err := cache.Get(ctx, domain.StageOwned, "0xowner", &got)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("round trips stage output", func(t *testing.T) {
		owned := []ledger.OwnedObject{{Data: &ledger.ObjectData{ObjectID: "0x1", Version: "4"}}}
		require.NoError(t, cache.Put(ctx, domain.StageOwned, "0xowner", owned))

		var got []ledger.OwnedObject
		hit, err := cache.Get(ctx, domain.StageOwned, "0xowner", &got)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, owned, got)
	})

	t.Run("keys are scoped by stage", func(t *testing.T) {
		var got [][]ledger.DynamicField
		hit, err := cache.Get(ctx, domain.StageFields, "0xowner", &got)
		require.NoError(t, err)
		assert.False(t, hit)
	})
}

func TestStageCache_ExpiresAfterFreshness(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	cache := NewStageCache(client, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, domain.StageDetails, "k", []string{"a"}))
	assert.Equal(t, 5*time.Minute, mr.TTL("showcase:stage:details:k"))

	mr.FastForward(5*time.Minute + time.Second)

	var got []string
	hit, err := cache.Get(ctx, domain.StageDetails, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStageCache_InvalidateAll(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	cache := NewStageCache(client, 0)
	ctx := context.Background()

	for _, stage := range domain.Stages {
		for _, key := range []string{"a", "b"} {
			require.NoError(t, cache.Put(ctx, stage, key, []int{1}))
		}
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, cache.InvalidateAll(ctx))

	for _, stage := range domain.Stages {
		var got []int
		hit, err := cache.Get(ctx, stage, "a", &got)
		require.NoError(t, err)
		assert.False(t, hit, string(stage))
	}
	assert.True(t, mr.Exists("unrelated"))
}

func TestStageCache_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	cache := NewStageCache(client, time.Minute)
	require.NoError(t, mr.Set("showcase:stage:owned:0xowner", "{not json"))

	var got []ledger.OwnedObject
	hit, err := cache.Get(context.Background(), domain.StageOwned, "0xowner", &got)
	assert.Error(t, err)
	assert.False(t, hit)
}
