// Package realtimetest provides an in-memory emitter for service tests.
package realtimetest

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const (
	ScopeList = "list"
	ScopeUser = "user"
)

// Emission is one recorded broadcast.
type Emission struct {
	Scope   string
	Target  uuid.UUID
	Event   string
	Payload any
}

// Recorder captures emits instead of delivering them. The zero value is ready to use.
type Recorder struct {
	mu        sync.Mutex
	emissions []Emission
}

func (r *Recorder) EmitToList(_ context.Context, listID uuid.UUID, event string, payload any) int {
	r.record(Emission{Scope: ScopeList, Target: listID, Event: event, Payload: payload})
	return 1
}

func (r *Recorder) EmitToUser(_ context.Context, userID uuid.UUID, event string, payload any) int {
	r.record(Emission{Scope: ScopeUser, Target: userID, Event: event, Payload: payload})
	return 1
}

func (r *Recorder) record(e Emission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emissions = append(r.emissions, e)
}

// Emissions returns a copy of everything recorded so far.
func (r *Recorder) Emissions() []Emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Emission(nil), r.emissions...)
}

// Events returns the recorded event names in order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.emissions))
	for _, e := range r.emissions {
		out = append(out, e.Event)
	}
	return out
}
