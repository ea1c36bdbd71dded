package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func newTestManager(t *testing.T) (*Manager, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	m, err := NewManager(store, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 30 * 24 * 60})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, store
}

func TestNewManagerValidatesLifetimes(t *testing.T) {
	if _, err := NewManager(nil, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 30 * 24 * 60}); err == nil {
		t.Fatalf("expected nil store to be rejected")
	}
	if _, err := NewManager(newMemoryStore(), config.JWTConfig{ExpirationMinutes: 60 * 24 * 2, RefreshTokenTTLMinutes: 24 * 60}); err == nil {
		t.Fatalf("expected refresh ttl shorter than access ttl to be rejected")
	}
}

func TestGenerateStoresDigestOnly(t *testing.T) {
	m, store := newTestManager(t)
	userID := uuid.New()

	token, err := m.Generate(context.Background(), "jti-1", userID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	raw := store.data["sess:jti-1"]
	if strings.Contains(raw, token) {
		t.Fatalf("raw refresh token must not be stored")
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.UserID != userID || rec.TokenHash != digest(token) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if store.ttls["sess:jti-1"] != 30*24*time.Hour {
		t.Fatalf("expected refresh ttl, got %v", store.ttls["sess:jti-1"])
	}
}

func TestRotateIsSingleUse(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	token, err := m.Generate(ctx, "jti-1", userID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.Rotate(ctx, "jti-1", "wrong"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	rot, err := m.Rotate(ctx, "jti-1", token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rot.UserID != userID || rot.AccessID == "jti-1" || rot.RefreshToken == token {
		t.Fatalf("unexpected rotation %+v", rot)
	}
	if _, ok := store.data["sess:jti-1"]; ok {
		t.Fatalf("old session left behind")
	}
	if live, _ := m.HasSession(ctx, rot.AccessID); !live {
		t.Fatalf("expected new session live")
	}

	if _, err := m.Rotate(ctx, "jti-1", token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
}

func TestHasSessionAndRevoke(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Generate(ctx, "jti-2", uuid.New()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ok, err := m.HasSession(ctx, "jti-2"); err != nil || !ok {
		t.Fatalf("expected live session, ok=%v err=%v", ok, err)
	}
	if err := m.Revoke(ctx, "jti-2"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, err := m.HasSession(ctx, "jti-2"); err != nil || ok {
		t.Fatalf("expected revoked session, ok=%v err=%v", ok, err)
	}
	if err := m.Revoke(ctx, " "); err == nil {
		t.Fatalf("expected blank access id to be rejected")
	}
}

func TestCorruptSessionIsInvalid(t *testing.T) {
	m, store := newTestManager(t)
	store.data["sess:bad"] = "legacy-user:token"

	if _, err := m.Rotate(context.Background(), "bad", "token"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if ok, err := m.HasSession(context.Background(), "bad"); err != nil || ok {
		t.Fatalf("corrupt session must not count as live, ok=%v err=%v", ok, err)
	}
}

func TestStoreFailureSurfaces(t *testing.T) {
	m, store := newTestManager(t)
	store.getErr = errors.New("redis down")

	if _, err := m.HasSession(context.Background(), "jti"); err == nil || errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestNewAccessIDIsUnique(t *testing.T) {
	a, b := NewAccessID(), NewAccessID()
	if a == b || len(a) != 26 {
		t.Fatalf("expected distinct 26-char ids, got %q %q", a, b)
	}
}
