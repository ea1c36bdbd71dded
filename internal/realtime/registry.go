package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	"github.com/google/uuid"
)

// ConnID identifies one live connection.
type ConnID string

// Sink is the registry's view of a connection: who it belongs to and how to hand it a frame.
// Send must never block and must report false once the connection is closed.
type Sink interface {
	ID() ConnID
	UserID() uuid.UUID
	Send(frame []byte) bool
}

type scopeAuthorizer interface {
	AccessibleListIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	EnsureAccess(ctx context.Context, userID, listID uuid.UUID, min enums.ListRole) (enums.ListRole, error)
}

const maxScopeAttempts = 3

var (
	// ErrScopeChurn means access kept changing while scopes were being computed.
	// The caller should drop the connection so the client reconnects.
	ErrScopeChurn = errors.New("realtime: access changed during scope resolution")
	// ErrUnknownConnection is returned for connections that are not (or no longer) registered.
	ErrUnknownConnection = errors.New("realtime: unknown connection")
)

type connSet map[ConnID]struct{}

type entry struct {
	sink  Sink
	lists map[uuid.UUID]struct{}
}

type revision struct {
	user   uint64
	global uint64
}

// Registry maps users and lists to their live connections. A single RWMutex guards
// every index; the lock is never held across storage calls.
type Registry struct {
	access scopeAuthorizer

	mu        sync.RWMutex
	conns     map[ConnID]*entry
	users     map[uuid.UUID]connSet
	lists     map[uuid.UUID]connSet
	userRev   map[uuid.UUID]uint64
	globalRev uint64
	// revSeq feeds userRev so a pruned and recreated entry never repeats an old value.
	revSeq uint64
}

// NewRegistry builds an empty registry that consults access when admitting connections to lists.
func NewRegistry(access scopeAuthorizer) (*Registry, error) {
	if access == nil {
		return nil, fmt.Errorf("access resolver required")
	}
	return &Registry{
		access:  access,
		conns:   make(map[ConnID]*entry),
		users:   make(map[uuid.UUID]connSet),
		lists:   make(map[uuid.UUID]connSet),
		userRev: make(map[uuid.UUID]uint64),
	}, nil
}

// OnConnect registers sink in its personal scope and then in the scope of every list its
// user can access. The list ids joined are returned. On failure the sink is unregistered.
func (r *Registry) OnConnect(ctx context.Context, sink Sink) ([]uuid.UUID, error) {
	id, userID := sink.ID(), sink.UserID()

	r.mu.Lock()
	r.conns[id] = &entry{sink: sink, lists: make(map[uuid.UUID]struct{})}
	if _, live := r.users[userID]; !live {
		r.bumpUser(userID)
	}
	addTo(r.users, userID, id)
	r.mu.Unlock()

	for attempt := 0; attempt < maxScopeAttempts; attempt++ {
		rev := r.revisionOf(userID)

		listIDs, err := r.access.AccessibleListIDs(ctx, userID)
		if err != nil {
			r.OnDisconnect(id)
			return nil, err
		}

		gone, stale := r.joinScopes(id, userID, listIDs, rev)
		if gone {
			return nil, nil
		}
		if !stale {
			return r.ScopesOf(id), nil
		}
	}

	r.OnDisconnect(id)
	return nil, ErrScopeChurn
}

// OnDisconnect removes the connection from every scope. Unknown ids are ignored.
func (r *Registry) OnDisconnect(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return
	}
	userID := e.sink.UserID()
	for listID := range e.lists {
		removeFrom(r.lists, listID, id)
	}
	removeFrom(r.users, userID, id)
	if _, live := r.users[userID]; !live {
		delete(r.userRev, userID)
	}
	delete(r.conns, id)
}

// AddConnectionsOfUserToList puts every live connection of the user into the list scope
// once the resolver confirms the user can still see the list, and returns how many were added.
// A revoke that lands while access is being checked wins over the grant.
func (r *Registry) AddConnectionsOfUserToList(ctx context.Context, userID, listID uuid.UUID) (int, error) {
	for attempt := 0; attempt < maxScopeAttempts; attempt++ {
		rev, live := r.userSnapshot(userID)
		if !live {
			return 0, nil
		}

		if _, err := r.access.EnsureAccess(ctx, userID, listID, enums.ListRoleViewer); err != nil {
			return 0, err
		}

		added, stale := r.grantScope(userID, listID, rev)
		if !stale {
			return added, nil
		}
	}
	return 0, ErrScopeChurn
}

// RemoveConnectionsOfUserFromList takes every live connection of the user out of the list
// scope and invalidates any scope resolution in flight for that user.
func (r *Registry) RemoveConnectionsOfUserFromList(userID, listID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return 0
	}
	r.bumpUser(userID)

	removed := 0
	for id := range conns {
		e := r.conns[id]
		if _, in := e.lists[listID]; !in {
			continue
		}
		delete(e.lists, listID)
		removeFrom(r.lists, listID, id)
		removed++
	}
	return removed
}

// DropList removes the whole list scope, used when the list itself is deleted.
func (r *Registry) DropList(listID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.globalRev++
	conns := r.lists[listID]
	for id := range conns {
		if e, ok := r.conns[id]; ok {
			delete(e.lists, listID)
		}
	}
	delete(r.lists, listID)
	return len(conns)
}

// RequestJoinScope admits a connection into a list scope once the access resolver confirms
// at least viewer access. Without access the resolver's NotFound error is returned.
func (r *Registry) RequestJoinScope(ctx context.Context, id ConnID, listID uuid.UUID) error {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownConnection
	}
	userID := e.sink.UserID()

	for attempt := 0; attempt < maxScopeAttempts; attempt++ {
		rev := r.revisionOf(userID)

		if _, err := r.access.EnsureAccess(ctx, userID, listID, enums.ListRoleViewer); err != nil {
			return err
		}

		gone, stale := r.joinScopes(id, userID, []uuid.UUID{listID}, rev)
		if gone {
			return ErrUnknownConnection
		}
		if !stale {
			return nil
		}
	}
	return ErrScopeChurn
}

// RequestLeaveScope removes the connection from one list scope. Narrowing is always allowed.
func (r *Registry) RequestLeaveScope(id ConnID, listID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return
	}
	delete(e.lists, listID)
	removeFrom(r.lists, listID, id)
}

// ScopesOf returns the list scopes the connection currently belongs to.
func (r *Registry) ScopesOf(id ConnID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(e.lists))
	for listID := range e.lists {
		out = append(out, listID)
	}
	return out
}

// ConnectionCount returns the number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) listSinks(listID uuid.UUID) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sinksLocked(r.lists[listID])
}

func (r *Registry) userSinks(userID uuid.UUID) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sinksLocked(r.users[userID])
}

func (r *Registry) sinksLocked(set connSet) []Sink {
	if len(set) == 0 {
		return nil
	}
	out := make([]Sink, 0, len(set))
	for id := range set {
		if e, ok := r.conns[id]; ok {
			out = append(out, e.sink)
		}
	}
	return out
}

// userSnapshot returns the user's revision and whether any connection is live, read together.
func (r *Registry) userSnapshot(userID uuid.UUID) (revision, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, live := r.users[userID]
	return revision{user: r.userRev[userID], global: r.globalRev}, live
}

// bumpUser must be called with the write lock held.
func (r *Registry) bumpUser(userID uuid.UUID) {
	r.revSeq++
	r.userRev[userID] = r.revSeq
}

// grantScope adds the user's live connections to the list unless a revoke or list drop
// happened since seen was taken.
func (r *Registry) grantScope(userID, listID uuid.UUID, seen revision) (added int, stale bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.userRev[userID] != seen.user || r.globalRev != seen.global {
		return 0, true
	}
	for id := range r.users[userID] {
		e := r.conns[id]
		if _, already := e.lists[listID]; already {
			continue
		}
		e.lists[listID] = struct{}{}
		addTo(r.lists, listID, id)
		added++
	}
	return added, false
}

func (r *Registry) revisionOf(userID uuid.UUID) revision {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return revision{user: r.userRev[userID], global: r.globalRev}
}

// joinScopes applies a resolved scope set. gone reports the connection disconnected while
// resolving; stale reports a revoke or list drop raced with the resolution.
func (r *Registry) joinScopes(id ConnID, userID uuid.UUID, listIDs []uuid.UUID, seen revision) (gone, stale bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return true, false
	}
	if r.userRev[userID] != seen.user || r.globalRev != seen.global {
		return false, true
	}
	for _, listID := range listIDs {
		e.lists[listID] = struct{}{}
		addTo(r.lists, listID, id)
	}
	return false, false
}

func addTo(index map[uuid.UUID]connSet, key uuid.UUID, id ConnID) {
	set, ok := index[key]
	if !ok {
		set = make(connSet)
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFrom(index map[uuid.UUID]connSet, key uuid.UUID, id ConnID) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}
