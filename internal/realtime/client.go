package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// client is one websocket connection. The write pump is the only goroutine writing data
// frames; control frames go through WriteControl which is safe alongside it.
type client struct {
	id     ConnID
	userID uuid.UUID
	conn   *websocket.Conn
	hub    *Hub
	cfg    config.RealtimeConfig
	ctx    context.Context

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(ctx context.Context, hub *Hub, conn *websocket.Conn, userID uuid.UUID) *client {
	id := newConnID()
	return &client{
		id:     id,
		userID: userID,
		conn:   conn,
		hub:    hub,
		cfg:    hub.cfg,
		ctx:    hub.logg.WithConnID(ctx, string(id)),
		send:   make(chan []byte, hub.cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *client) ID() ConnID        { return c.id }
func (c *client) UserID() uuid.UUID { return c.userID }

// Send enqueues without blocking. It reports false when the queue is full or the
// connection is closing; the channel is never closed so a late Send cannot panic.
func (c *client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *client) sendEvent(event string, data any) bool {
	frame, err := encodeEnvelope(event, data, time.Now())
	if err != nil {
		c.hub.logg.Error(c.ctx, "realtime.encode_failed", err)
		return false
	}
	return c.Send(frame)
}

// shutdown unregisters the connection and closes the socket. Safe to call repeatedly.
func (c *client) shutdown() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.registry.OnDisconnect(c.id)
		c.hub.untrack(c.id)
		err = c.conn.Close()
		c.hub.metrics.ConnectionClosed()
		c.hub.logg.Info(c.ctx, "realtime.disconnect")
	})
	return err
}

// closeWith sends a close frame with the given code before shutting down.
func (c *client) closeWith(code int, reason string) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	deadline := time.Now().Add(c.cfg.WriteWait)
	err := c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	if errors.Is(err, websocket.ErrCloseSent) {
		err = nil
	}
	if closeErr := c.shutdown(); err == nil {
		err = closeErr
	}
	return err
}

func (c *client) readPump() {
	defer func() { _ = c.shutdown() }()

	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.logg.Warn(c.hub.logg.WithField(c.ctx, "error", err.Error()), "realtime.read_failed")
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) handleFrame(data []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.sendEvent(EventError, ErrorPayload{Code: string(pkgerrors.CodeValidation), Message: "malformed frame"})
		return
	}
	listID, err := uuid.Parse(frame.ListID)
	if err != nil {
		c.sendEvent(EventError, ErrorPayload{Code: string(pkgerrors.CodeValidation), Message: "invalid list_id", ListID: frame.ListID})
		return
	}
	ctx := c.hub.logg.WithListID(c.ctx, listID)

	switch frame.Type {
	case FrameJoinList:
		if err := c.hub.registry.RequestJoinScope(ctx, c.id, listID); err != nil {
			code := joinErrorCode(err)
			c.hub.metrics.IncJoin(code)
			c.hub.logg.Warn(c.hub.logg.WithField(ctx, "code", code), "realtime.join.rejected")
			c.sendEvent(EventError, ErrorPayload{Code: code, Message: joinErrorMessage(err), ListID: frame.ListID})
			return
		}
		c.hub.metrics.IncJoin("ok")
		c.hub.logg.Info(ctx, "realtime.join")
		c.sendEvent(EventScopeJoined, ScopeAck{ListID: listID})
	case FrameLeaveList:
		c.hub.registry.RequestLeaveScope(c.id, listID)
		c.hub.logg.Info(ctx, "realtime.leave")
		c.sendEvent(EventScopeLeft, ScopeAck{ListID: listID})
	default:
		c.sendEvent(EventError, ErrorPayload{Code: string(pkgerrors.CodeValidation), Message: "unknown frame type", ListID: frame.ListID})
	}
}

func joinErrorCode(err error) string {
	if errors.Is(err, ErrScopeChurn) {
		return string(pkgerrors.CodeDependency)
	}
	return string(pkgerrors.CodeOf(err))
}

func joinErrorMessage(err error) string {
	typed := pkgerrors.As(err)
	if typed != nil && pkgerrors.IsClientCode(typed.Code()) {
		return typed.Message()
	}
	return pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).PublicMessage
}
