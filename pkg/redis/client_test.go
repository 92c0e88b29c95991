package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{cmd: mock}

	for hit, wantAllowed := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "test-scope", 2, time.Second)
		if err != nil {
			t.Fatalf("hit %d: unexpected error: %v", hit+1, err)
		}
		if allowed != wantAllowed || count != int64(hit+1) {
			t.Fatalf("hit %d: allowed=%v count=%d", hit+1, allowed, count)
		}
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].key != "sf:rate_limit:test-scope" {
		t.Fatalf("window should be armed once on the first hit, got %+v", mock.expireCalls)
	}
}

func TestSessionPayloadLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{cmd: mock}

	key := client.SessionKey("abc")
	if err := client.Set(ctx, key, `{"products":["1"]}`, time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	payload, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if payload != `{"products":["1"]}` {
		t.Fatalf("unexpected payload %q", payload)
	}
	if err := client.Expire(ctx, key, 2*time.Hour); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].ttl != 2*time.Hour {
		t.Fatalf("expected one expire call with 2h ttl, got %+v", mock.expireCalls)
	}

	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
	if _, err := client.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without a connection should be a no-op, got %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 3 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	for got, want := range map[string]string{
		client.IdempotencyKey("scope", "id"): "sf:idempotency:scope:id",
		client.RateLimitKey("scope"):         "sf:rate_limit:scope",
		client.SessionKey("abc"):             "sf:session:abc",
		client.AccessSessionKey("jti"):       "sf:session:access:jti",
		client.LockKey("cron:prod"):          "sf:lock:cron:prod",
		client.SessionKey(" "):               "sf:session",
	} {
		if got != want {
			t.Fatalf("got key %q, want %q", got, want)
		}
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestOptionsFromAddressKeepsExplicitSettings(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{Address: "cache:6379", Password: "pw", DB: 2, MinIdleConns: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.Password != "pw" || opts.DB != 2 || opts.MinIdleConns != 3 {
		t.Fatalf("unexpected options %+v", opts)
	}
}
