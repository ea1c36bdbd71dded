package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/angelmondragon/sharedlists-backend/pkg/metrics"
	"github.com/google/uuid"
)

// Emitter is the broadcast surface handed to services.
type Emitter interface {
	EmitToList(ctx context.Context, listID uuid.UUID, event string, payload any) int
	EmitToUser(ctx context.Context, userID uuid.UUID, event string, payload any) int
}

// Broadcaster fans events out to the connections the registry routes them to. Delivery is
// best effort: a full or closed queue drops the frame and the client catches up on resync.
type Broadcaster struct {
	registry *Registry
	logg     *logger.Logger
	metrics  *metrics.RealtimeMetrics
	now      func() time.Time
}

// NewBroadcaster wires a broadcaster to the registry. metrics may be nil.
func NewBroadcaster(registry *Registry, logg *logger.Logger, m *metrics.RealtimeMetrics) (*Broadcaster, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Broadcaster{registry: registry, logg: logg, metrics: m, now: time.Now}, nil
}

// EmitToList delivers the event to every connection in the list scope and returns how many
// connections accepted it.
func (b *Broadcaster) EmitToList(ctx context.Context, listID uuid.UUID, event string, payload any) int {
	ctx = b.logg.WithListID(ctx, listID)
	return b.deliver(ctx, b.registry.listSinks(listID), event, payload)
}

// EmitToUser delivers the event to every live connection of the user.
func (b *Broadcaster) EmitToUser(ctx context.Context, userID uuid.UUID, event string, payload any) int {
	ctx = b.logg.WithField(ctx, "target_user_id", userID.String())
	return b.deliver(ctx, b.registry.userSinks(userID), event, payload)
}

func (b *Broadcaster) deliver(ctx context.Context, sinks []Sink, event string, payload any) int {
	if len(sinks) == 0 {
		return 0
	}
	frame, err := encodeEnvelope(event, payload, b.now())
	if err != nil {
		b.logg.Error(b.logg.WithField(ctx, "event", event), "realtime.emit.encode_failed", err)
		return 0
	}

	delivered := 0
	for _, sink := range sinks {
		if sink.Send(frame) {
			delivered++
			continue
		}
		b.metrics.IncDropped(event)
		dropCtx := b.logg.WithFields(ctx, map[string]any{
			"event":   event,
			"conn_id": string(sink.ID()),
		})
		b.logg.Warn(dropCtx, "realtime.emit.dropped")
	}
	b.metrics.AddDelivered(event, delivered)
	return delivered
}
