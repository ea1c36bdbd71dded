package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/sharedlists-backend/api/controllers"
	"github.com/angelmondragon/sharedlists-backend/internal/items"
	"github.com/angelmondragon/sharedlists-backend/internal/lists"
	pkgAuth "github.com/angelmondragon/sharedlists-backend/pkg/auth"
	"github.com/angelmondragon/sharedlists-backend/pkg/auth/session"
	"github.com/angelmondragon/sharedlists-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/angelmondragon/sharedlists-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubLists struct {
	lists.Service
	gotUser uuid.UUID
	gotList uuid.UUID
}

func (s *stubLists) List(_ context.Context, userID uuid.UUID) ([]lists.ListDTO, error) {
	s.gotUser = userID
	return []lists.ListDTO{}, nil
}

func (s *stubLists) Get(_ context.Context, userID, listID uuid.UUID) (*lists.ListDTO, error) {
	s.gotUser, s.gotList = userID, listID
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgListNotFound)
}

type stubItems struct {
	items.Service
	reordered []items.ReorderEntry
}

func (s *stubItems) Reorder(_ context.Context, _, _ uuid.UUID, entries []items.ReorderEntry) ([]items.ItemDTO, error) {
	s.reordered = entries
	return []items.ItemDTO{}, nil
}

type stubLive struct{ userID uuid.UUID }

func (s *stubLive) ServeWS(w http.ResponseWriter, _ *http.Request, userID uuid.UUID) {
	s.userID = userID
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type fixture struct {
	handler http.Handler
	cfg     *config.Config
	lists   *stubLists
	items   *stubItems
	live    *stubLive
}

func newFixture(t *testing.T, pingers map[string]controllers.Pinger) *fixture {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "sharedlists", ExpirationMinutes: 15},
	}
	reg := prometheus.NewRegistry()
	f := &fixture{cfg: cfg, lists: &stubLists{}, items: &stubItems{}, live: &stubLive{}}
	f.handler = NewRouter(RouterParams{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		Sessions: stubSessions{},
		Pingers:  pingers,
		Gatherer: reg,
		Metrics:  metrics.NewHTTPMetrics(reg),
		Lists:    f.lists,
		Items:    f.items,
		Live:     f.live,
	})
	return f
}

func (f *fixture) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Email:  "router@example.com",
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	if payload.Success {
		t.Fatalf("expected failure envelope")
	}
	return payload.Error.Code
}

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t, map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}})
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected live 200, got %d", rec.Code)
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected ready 200, got %d", rec.Code)
	}

	down := newFixture(t, map[string]controllers.Pinger{"redis": stubPinger{err: errors.New("refused")}})
	rec := down.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected ready 503, got %d", rec.Code)
	}
}

func TestListsRequireBearer(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/lists", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeUnauthorized) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestListsIndexPassesCaller(t *testing.T) {
	f := newFixture(t, nil)
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lists", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, userID))
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.lists.gotUser != userID {
		t.Fatalf("expected caller %s, got %s", userID, f.lists.gotUser)
	}
}

func TestListRouteParams(t *testing.T) {
	f := newFixture(t, nil)
	userID := uuid.New()
	token := f.token(t, userID)

	bad := httptest.NewRequest(http.MethodGet, "/api/v1/lists/not-a-uuid", nil)
	bad.Header.Set("Authorization", "Bearer "+token)
	if rec := f.do(bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}

	listID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/lists/"+listID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := f.do(req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if f.lists.gotList != listID {
		t.Fatalf("expected list %s, got %s", listID, f.lists.gotList)
	}
}

func TestReorderDecodesItemOrders(t *testing.T) {
	f := newFixture(t, nil)
	itemID := uuid.New()
	body := `{"item_orders":[{"item_id":"` + itemID.String() + `","position":3}]}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/lists/"+uuid.NewString()+"/items/reorder", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.token(t, uuid.New()))
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.items.reordered) != 1 || f.items.reordered[0].ItemID != itemID || f.items.reordered[0].Position != 3 {
		t.Fatalf("unexpected entries %+v", f.items.reordered)
	}

	empty := httptest.NewRequest(http.MethodPost, "/api/v1/lists/"+uuid.NewString()+"/items/reorder", strings.NewReader(`{"item_orders":[]}`))
	empty.Header.Set("Authorization", "Bearer "+f.token(t, uuid.New()))
	if rec := f.do(empty); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty reorder, got %d", rec.Code)
	}
}

func TestRealtimeAcceptsQueryToken(t *testing.T) {
	f := newFixture(t, nil)
	userID := uuid.New()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/realtime?token="+f.token(t, userID), nil))
	if rec.Code != http.StatusSwitchingProtocols {
		t.Fatalf("expected hand-off to hub, got %d", rec.Code)
	}
	if f.live.userID != userID {
		t.Fatalf("expected hub to receive %s, got %s", userID, f.live.userID)
	}

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/realtime", nil)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("expected http metrics in exposition")
	}
}
