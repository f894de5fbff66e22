package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockSingleHolder(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "sf:lock:cron-worker", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "sf:lock:cron-worker", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Minute, store.ttls["sf:lock:cron-worker"])

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, second.Release(ctx))
	require.Contains(t, store.values, "sf:lock:cron-worker")

	require.NoError(t, first.Release(ctx))
	require.NotContains(t, store.values, "sf:lock:cron-worker")

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockExpiredLeaseIsNotStolenBack(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	lock, err := NewRedisLock(store, "k", 0)
	require.NoError(t, err)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, defaultLockTTL, store.ttls["k"])

	// lease expired and another worker took it
	store.values["k"] = "other-worker"
	require.NoError(t, lock.Release(ctx))
	require.Equal(t, "other-worker", store.values["k"])
}

func TestRedisLockErrors(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	require.Error(t, err)
	_, err = NewRedisLock(newMemoryLockStore(), "", 0)
	require.Error(t, err)

	store := newMemoryLockStore()
	store.err = errors.New("connection refused")
	lock, err := NewRedisLock(store, "k", time.Second)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	require.ErrorContains(t, err, "connection refused")
}
