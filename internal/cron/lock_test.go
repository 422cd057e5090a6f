package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockSingleHolder(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	ctx := context.Background()
	first, err := NewRedisLock(store, "multilab:lock:cron", time.Hour)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "multilab:lock:cron", time.Hour)
	require.NoError(t, err)

	won, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	won, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, won)

	require.NoError(t, second.Release(ctx))
	require.Contains(t, store.values, "multilab:lock:cron", "non-holder must not delete the key")

	require.NoError(t, first.Release(ctx))
	require.NotContains(t, store.values, "multilab:lock:cron")

	won, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	ctx := context.Background()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)
	_, err = lock.Acquire(ctx)
	require.NoError(t, err)

	// lease expired and another worker took it
	store.values["k"] = "someone-else"
	require.NoError(t, lock.Release(ctx))
	require.Equal(t, "someone-else", store.values["k"])
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	require.Error(t, err)
	_, err = NewRedisLock(&memoryLockStore{}, "", time.Minute)
	require.Error(t, err)
	_, err = NewRedisLock(&memoryLockStore{}, "k", 0)
	require.Error(t, err)
}
