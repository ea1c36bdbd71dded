package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

type memoryCmdable struct {
	data    map[string]string
	counts  map[string]int64
	ttls    map[string]time.Duration
	expires int
	incrErr error
}

func newMemoryCmdable() *memoryCmdable {
	return &memoryCmdable{
		data:   map[string]string{},
		counts: map[string]int64{},
		ttls:   map[string]time.Duration{},
	}
}

func (m *memoryCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memoryCmdable) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	if ttl > 0 {
		m.ttls[key] = ttl
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := m.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (m *memoryCmdable) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.Set(ctx, key, value, ttl)
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	if m.incrErr != nil {
		return redis.NewIntResult(0, m.incrErr)
	}
	m.counts[key]++
	return redis.NewIntResult(m.counts[key], nil)
}

func (m *memoryCmdable) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expires++
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCmdable) PTTL(_ context.Context, key string) *redis.DurationCmd {
	ttl, ok := m.ttls[key]
	if !ok {
		return redis.NewDurationResult(-1, nil)
	}
	return redis.NewDurationResult(ttl, nil)
}

func (m *memoryCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
		delete(m.counts, k)
		delete(m.ttls, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestFixedWindowCountsAndExpiresOnce(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCmdable()
	client := &Client{store: mem}

	for i, want := range []bool{true, true, false} {
		w, err := client.FixedWindow(ctx, "api:user:1", 2, time.Minute)
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if w.Allowed != want || w.Count != int64(i+1) {
			t.Fatalf("hit %d: unexpected window %+v", i, w)
		}
		if w.ResetIn != time.Minute {
			t.Fatalf("hit %d: expected reset in a minute, got %v", i, w.ResetIn)
		}
	}
	if mem.expires != 1 {
		t.Fatalf("expected a single expire, got %d", mem.expires)
	}
	if _, ok := mem.counts["sl:rate_limit:api:user:1"]; !ok {
		t.Fatalf("expected counter under the rate limit namespace, got %v", mem.counts)
	}
}

func TestIncrWithTTLRepairsMissingExpiry(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCmdable()
	client := &Client{store: mem}
	mem.counts["k"] = 4

	n, err := client.IncrWithTTL(ctx, "k", time.Hour)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if n != 5 || mem.ttls["k"] != time.Hour {
		t.Fatalf("expected ttl restored on a stuck counter, n=%d ttl=%v", n, mem.ttls["k"])
	}
}

func TestIncrErrorsSurface(t *testing.T) {
	mem := newMemoryCmdable()
	mem.incrErr = errors.New("connection reset")
	client := &Client{store: mem}

	if _, err := client.FixedWindow(context.Background(), "s", 1, time.Second); err == nil {
		t.Fatalf("expected incr failure to surface")
	}
}

func TestSessionValueLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMemoryCmdable()}
	key := client.AccessSessionKey("jti-1")

	if err := client.Set(ctx, key, "refresh-value", 10*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := client.Get(ctx, key); err != nil || got != "refresh-value" {
		t.Fatalf("expected stored value, got %q %v", got, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, key); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
	if err := client.Del(ctx); err != nil {
		t.Fatalf("empty delete should be a no-op, got %v", err)
	}
}

func TestSetNXHoldsLock(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMemoryCmdable()}
	key := client.LockKey("prune_common_items")

	if ok, err := client.SetNX(ctx, key, "worker-a", time.Minute); err != nil || !ok {
		t.Fatalf("expected first acquire, ok=%v err=%v", ok, err)
	}
	if ok, err := client.SetNX(ctx, key, "worker-b", time.Minute); err != nil || ok {
		t.Fatalf("expected second acquire to fail, ok=%v err=%v", ok, err)
	}
}

func TestUninitializedClient(t *testing.T) {
	var nilClient *Client
	if err := nilClient.Ping(context.Background()); err != ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if _, err := (&Client{}).Get(context.Background(), "k"); err != ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	c := &Client{}
	cases := map[string]string{
		c.IdempotencyKey("scope", "id"):  "sl:idempotency:scope:id",
		c.IdempotencyKey("scope", " "):   "sl:idempotency:scope",
		c.RateLimitKey("api:ip:1.2.3.4"): "sl:rate_limit:api:ip:1.2.3.4",
		c.LockKey("prune"):               "sl:lock:prune",
		c.AccessSessionKey("jti"):        "sl:session:access:jti",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestOptionsPreferURLAndFillGaps(t *testing.T) {
	opts, err := options(config.RedisConfig{URL: "redis://:pw@cache:6380/3", DB: 5, PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 3 || opts.Password != "pw" {
		t.Fatalf("expected url settings to win, got %+v", opts)
	}
	if opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("expected config to fill unset fields, got pool=%d dial=%v", opts.PoolSize, opts.DialTimeout)
	}

	opts, err = options(config.RedisConfig{Address: "localhost:6379", DB: 2})
	if err != nil || opts.Addr != "localhost:6379" || opts.DB != 2 {
		t.Fatalf("unexpected address options %+v %v", opts, err)
	}

	if _, err := options(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
}
