package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
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

func (m *memoryLockStore) LockKey(name string) string { return "sf:lock:" + name }

func TestRedisLockIsExclusiveUntilReleased(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "cron:test", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "cron:test", 0)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("second holder must not acquire")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release without holding: %v", err)
	}
	if _, ok := store.values["sf:lock:cron:test"]; !ok {
		t.Fatalf("non-holder release removed the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatalf("lock should be free after release")
	}
}

func TestRedisLockLeavesForeignToken(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	lock, _ := NewRedisLock(store, "cron:test", time.Minute)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("acquire failed")
	}
	// the key expired and another worker took it
	store.values["sf:lock:cron:test"] = "someone-else"
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["sf:lock:cron:test"] != "someone-else" {
		t.Fatalf("released a lock held by another worker")
	}
}
