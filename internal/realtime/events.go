package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Server to client event names.
const (
	EventListCreated  = "list:created"
	EventListUpdated  = "list:updated"
	EventListArchived = "list:archived"
	EventListDeleted  = "list:deleted"

	EventItemAdded      = "item:added"
	EventItemUpdated    = "item:updated"
	EventItemChecked    = "item:checked"
	EventItemDeleted    = "item:deleted"
	EventItemsCleared   = "items:cleared"
	EventItemsReordered = "items:reordered"

	EventMemberAdded   = "member:added"
	EventMemberRemoved = "member:removed"
	EventMemberLeft    = "member:left"
	EventMemberUpdated = "member:updated"

	EventSessionReady = "session:ready"
	EventScopeJoined  = "scope:joined"
	EventScopeLeft    = "scope:left"
	EventError        = "error"
)

// Client to server frame types.
const (
	FrameJoinList  = "join:list"
	FrameLeaveList = "leave:list"
)

// Envelope is the wire shape of every server frame.
type Envelope struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	EmittedAt time.Time `json:"emitted_at"`
}

// ClientFrame is a request sent by the client over the live channel.
type ClientFrame struct {
	Type   string `json:"type"`
	ListID string `json:"list_id"`
}

// SessionReady is sent once the connection has joined its initial scopes.
type SessionReady struct {
	ConnectionID          ConnID      `json:"connection_id"`
	UserID                uuid.UUID   `json:"user_id"`
	ListIDs               []uuid.UUID `json:"list_ids"`
	ResyncIntervalSeconds int         `json:"resync_interval_seconds"`
}

// ScopeAck acknowledges a join or leave request.
type ScopeAck struct {
	ListID uuid.UUID `json:"list_id"`
}

// ErrorPayload reports a rejected client frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ListID  string `json:"list_id,omitempty"`
}

func encodeEnvelope(event string, data any, at time.Time) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: data, EmittedAt: at.UTC()})
}
