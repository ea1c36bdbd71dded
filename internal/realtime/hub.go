package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/config"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/angelmondragon/sharedlists-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/multierr"
)

// HubParams groups the dependencies of the live channel transport.
type HubParams struct {
	Registry       *Registry
	Config         config.RealtimeConfig
	AllowedOrigins []string
	Logger         *logger.Logger
	Metrics        *metrics.RealtimeMetrics
}

// Hub upgrades authenticated requests to websocket connections and owns their lifecycle.
type Hub struct {
	registry *Registry
	cfg      config.RealtimeConfig
	logg     *logger.Logger
	metrics  *metrics.RealtimeMetrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[ConnID]*client
	closed  bool
}

// NewHub validates params and applies transport defaults for zero values.
func NewHub(params HubParams) (*Hub, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := withDefaults(params.Config)
	origins := params.AllowedOrigins

	return &Hub{
		registry: params.Registry,
		cfg:      cfg,
		logg:     params.Logger,
		metrics:  params.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), origins)
			},
		},
		clients: make(map[ConnID]*client),
	}, nil
}

func withDefaults(cfg config.RealtimeConfig) config.RealtimeConfig {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 4096
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = time.Minute
	}
	return cfg
}

// Native clients send no Origin header; browsers must match the allow list.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, candidate := range allowed {
		if candidate == "*" || strings.EqualFold(candidate, origin) {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request for an already authenticated user, joins the connection to
// its scopes and announces session:ready. It returns once the pumps are running.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logg.Warn(h.logg.WithField(r.Context(), "error", err.Error()), "realtime.upgrade_failed")
		return
	}

	// The request context ends when the handler returns; the connection outlives it.
	base := h.logg.WithUserID(context.WithoutCancel(r.Context()), userID)
	c := newClient(base, h, conn, userID)

	if !h.track(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.cfg.WriteWait))
		_ = conn.Close()
		return
	}
	h.metrics.ConnectionOpened()
	go c.writePump()

	listIDs, err := h.registry.OnConnect(c.ctx, c)
	if err != nil {
		code := websocket.CloseInternalServerErr
		reason := "scope resolution failed"
		if errors.Is(err, ErrScopeChurn) {
			code = websocket.CloseTryAgainLater
			reason = "access changed, reconnect"
		}
		h.logg.Error(c.ctx, "realtime.connect_failed", err)
		_ = c.closeWith(code, reason)
		return
	}
	if listIDs == nil {
		listIDs = []uuid.UUID{}
	}

	h.logg.Info(h.logg.WithField(c.ctx, "list_count", len(listIDs)), "realtime.connect")
	c.sendEvent(EventSessionReady, SessionReady{
		ConnectionID:          c.id,
		UserID:                userID,
		ListIDs:               listIDs,
		ResyncIntervalSeconds: int(h.cfg.ResyncInterval / time.Second),
	})

	go c.readPump()
}

// Close sends a going-away frame to every open connection and tears them down. Later
// upgrades are refused.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	var errs error
	for _, c := range clients {
		errs = multierr.Append(errs, c.closeWith(websocket.CloseGoingAway, "server shutting down"))
	}
	return errs
}

// ConnectionCount reports connections currently tracked by the hub.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) track(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) untrack(id ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func newConnID() ConnID {
	return ConnID(ulid.Make().String())
}
