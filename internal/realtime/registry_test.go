package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/google/uuid"
)

type stubAccess struct {
	mu      sync.Mutex
	lists   map[uuid.UUID][]uuid.UUID
	roles   map[uuid.UUID]map[uuid.UUID]enums.ListRole
	err     error
	calls   int
	onQuery func(call int)
}

func newStubAccess() *stubAccess {
	return &stubAccess{
		lists: make(map[uuid.UUID][]uuid.UUID),
		roles: make(map[uuid.UUID]map[uuid.UUID]enums.ListRole),
	}
}

func (s *stubAccess) grant(userID, listID uuid.UUID, role enums.ListRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[userID] = append(s.lists[userID], listID)
	if s.roles[userID] == nil {
		s.roles[userID] = make(map[uuid.UUID]enums.ListRole)
	}
	s.roles[userID][listID] = role
}

func (s *stubAccess) AccessibleListIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	ids := append([]uuid.UUID(nil), s.lists[userID]...)
	hook := s.onQuery
	err := s.err
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return ids, err
}

func (s *stubAccess) EnsureAccess(_ context.Context, userID, listID uuid.UUID, min enums.ListRole) (enums.ListRole, error) {
	s.mu.Lock()
	role := s.roles[userID][listID]
	hook := s.onQuery
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if role == enums.ListRoleNone {
		return role, pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgListNotFound)
	}
	if !role.AtLeast(min) {
		return role, pkgerrors.New(pkgerrors.CodeForbidden, pkgerrors.MsgInsufficientPermissions)
	}
	return role, nil
}

type stubSink struct {
	id     ConnID
	userID uuid.UUID

	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
}

func newStubSink(userID uuid.UUID) *stubSink {
	return &stubSink{id: newConnID(), userID: userID}
}

func (s *stubSink) ID() ConnID        { return s.id }
func (s *stubSink) UserID() uuid.UUID { return s.userID }

func (s *stubSink) Send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.full {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

func (s *stubSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func newTestRegistry(t *testing.T, access *stubAccess) *Registry {
	t.Helper()
	reg, err := NewRegistry(access)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func sortedIDs(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}

func TestNewRegistryRequiresAccess(t *testing.T) {
	if _, err := NewRegistry(nil); err == nil {
		t.Fatal("expected error without access resolver")
	}
}

func TestOnConnectJoinsEveryAccessibleScope(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	listA, listB := uuid.New(), uuid.New()
	access.grant(user, listA, enums.ListRoleOwner)
	access.grant(user, listB, enums.ListRoleViewer)
	reg := newTestRegistry(t, access)

	sink := newStubSink(user)
	joined, err := reg.OnConnect(context.Background(), sink)
	if err != nil {
		t.Fatalf("on connect: %v", err)
	}
	if got, want := sortedIDs(joined), sortedIDs([]uuid.UUID{listA, listB}); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected scopes %v got %v", want, got)
	}
	if n := len(reg.listSinks(listA)); n != 1 {
		t.Fatalf("expected 1 sink in list A, got %d", n)
	}
	if n := len(reg.userSinks(user)); n != 1 {
		t.Fatalf("expected 1 sink in personal scope, got %d", n)
	}
}

func TestOnConnectStorageFailureUnregisters(t *testing.T) {
	access := newStubAccess()
	access.err = pkgerrors.New(pkgerrors.CodeDependency, "down")
	reg := newTestRegistry(t, access)

	if _, err := reg.OnConnect(context.Background(), newStubSink(uuid.New())); err == nil {
		t.Fatal("expected error")
	}
	if reg.ConnectionCount() != 0 {
		t.Fatalf("expected failed connection to be unregistered")
	}
}

func TestOnDisconnectIsTotalAndIdempotent(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	list := uuid.New()
	access.grant(user, list, enums.ListRoleEditor)
	reg := newTestRegistry(t, access)

	sink := newStubSink(user)
	if _, err := reg.OnConnect(context.Background(), sink); err != nil {
		t.Fatalf("on connect: %v", err)
	}

	reg.OnDisconnect(sink.ID())
	reg.OnDisconnect(sink.ID())
	reg.OnDisconnect("never-registered")

	if len(reg.listSinks(list)) != 0 || len(reg.userSinks(user)) != 0 {
		t.Fatalf("expected connection removed from every scope")
	}
	if len(reg.lists) != 0 || len(reg.users) != 0 || len(reg.userRev) != 0 {
		t.Fatalf("expected empty indexes to be pruned: lists=%d users=%d revs=%d", len(reg.lists), len(reg.users), len(reg.userRev))
	}
}

func TestGrantReachesLiveConnections(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	reg := newTestRegistry(t, access)

	first, second := newStubSink(user), newStubSink(user)
	for _, s := range []*stubSink{first, second} {
		if _, err := reg.OnConnect(context.Background(), s); err != nil {
			t.Fatalf("on connect: %v", err)
		}
	}

	list := uuid.New()
	access.grant(user, list, enums.ListRoleEditor)
	if added, err := reg.AddConnectionsOfUserToList(context.Background(), user, list); err != nil || added != 2 {
		t.Fatalf("expected 2 connections added, got %d (%v)", added, err)
	}
	if added, err := reg.AddConnectionsOfUserToList(context.Background(), user, list); err != nil || added != 0 {
		t.Fatalf("expected second grant to be a no-op, got %d (%v)", added, err)
	}
	if added, err := reg.AddConnectionsOfUserToList(context.Background(), uuid.New(), list); err != nil || added != 0 {
		t.Fatalf("expected offline user grant to be a no-op, got %d (%v)", added, err)
	}
	if n := len(reg.listSinks(list)); n != 2 {
		t.Fatalf("expected 2 sinks in list scope, got %d", n)
	}
}

func TestGrantRequiresCurrentAccess(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	reg := newTestRegistry(t, access)
	sink := newStubSink(user)
	if _, err := reg.OnConnect(context.Background(), sink); err != nil {
		t.Fatalf("on connect: %v", err)
	}

	list := uuid.New()
	added, err := reg.AddConnectionsOfUserToList(context.Background(), user, list)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found without access, got %v", err)
	}
	if added != 0 || len(reg.ScopesOf(sink.ID())) != 0 {
		t.Fatalf("expected no scope without access")
	}
}

func TestGrantLosesToRevokeDuringAccessCheck(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	list := uuid.New()
	reg := newTestRegistry(t, access)
	sink := newStubSink(user)
	if _, err := reg.OnConnect(context.Background(), sink); err != nil {
		t.Fatalf("on connect: %v", err)
	}
	access.grant(user, list, enums.ListRoleEditor)

	// the membership is deleted and revoked while the grant is checking access
	revoked := false
	access.mu.Lock()
	access.onQuery = func(int) {
		if revoked {
			return
		}
		revoked = true
		access.mu.Lock()
		delete(access.roles[user], list)
		access.mu.Unlock()
		reg.RemoveConnectionsOfUserFromList(user, list)
	}
	access.mu.Unlock()

	added, err := reg.AddConnectionsOfUserToList(context.Background(), user, list)
	if err == nil || added != 0 {
		t.Fatalf("expected grant to be refused after revoke, added=%d err=%v", added, err)
	}
	if scopes := reg.ScopesOf(sink.ID()); len(scopes) != 0 {
		t.Fatalf("revoked user still routed into %v", scopes)
	}
}

func TestGrantAfterReconnectStillChecksRevision(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	reg := newTestRegistry(t, access)

	first := newStubSink(user)
	if _, err := reg.OnConnect(context.Background(), first); err != nil {
		t.Fatalf("on connect: %v", err)
	}
	before, _ := reg.userSnapshot(user)
	reg.OnDisconnect(first.ID())
	if _, err := reg.OnConnect(context.Background(), newStubSink(user)); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	after, _ := reg.userSnapshot(user)
	if before == after {
		t.Fatalf("expected a fresh revision after reconnect, both %+v", before)
	}
}

func TestRevokeRemovesOnlyThatUser(t *testing.T) {
	access := newStubAccess()
	alice, bob := uuid.New(), uuid.New()
	list := uuid.New()
	access.grant(alice, list, enums.ListRoleOwner)
	access.grant(bob, list, enums.ListRoleEditor)
	reg := newTestRegistry(t, access)

	aliceSink, bobSink := newStubSink(alice), newStubSink(bob)
	for _, s := range []*stubSink{aliceSink, bobSink} {
		if _, err := reg.OnConnect(context.Background(), s); err != nil {
			t.Fatalf("on connect: %v", err)
		}
	}

	if removed := reg.RemoveConnectionsOfUserFromList(bob, list); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	sinks := reg.listSinks(list)
	if len(sinks) != 1 || sinks[0].ID() != aliceSink.ID() {
		t.Fatalf("expected only alice to remain, got %v", sinks)
	}
	if len(reg.ScopesOf(bobSink.ID())) != 0 {
		t.Fatalf("expected bob's connection to have no list scopes")
	}
	if len(reg.userSinks(bob)) != 1 {
		t.Fatalf("expected bob's personal scope intact")
	}
}

func TestDropListRemovesScope(t *testing.T) {
	access := newStubAccess()
	alice, bob := uuid.New(), uuid.New()
	list := uuid.New()
	access.grant(alice, list, enums.ListRoleOwner)
	access.grant(bob, list, enums.ListRoleViewer)
	reg := newTestRegistry(t, access)

	aliceSink, bobSink := newStubSink(alice), newStubSink(bob)
	for _, s := range []*stubSink{aliceSink, bobSink} {
		if _, err := reg.OnConnect(context.Background(), s); err != nil {
			t.Fatalf("on connect: %v", err)
		}
	}

	if dropped := reg.DropList(list); dropped != 2 {
		t.Fatalf("expected 2 connections dropped, got %d", dropped)
	}
	if len(reg.listSinks(list)) != 0 {
		t.Fatalf("expected list scope gone")
	}
	if len(reg.ScopesOf(aliceSink.ID())) != 0 || len(reg.ScopesOf(bobSink.ID())) != 0 {
		t.Fatalf("expected per-connection scope sets cleaned")
	}
}

func TestRequestJoinScopeIsAuthorized(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	allowed, foreign := uuid.New(), uuid.New()
	reg := newTestRegistry(t, access)

	sink := newStubSink(user)
	if _, err := reg.OnConnect(context.Background(), sink); err != nil {
		t.Fatalf("on connect: %v", err)
	}
	access.grant(user, allowed, enums.ListRoleViewer)

	if err := reg.RequestJoinScope(context.Background(), sink.ID(), foreign); pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign list, got %v", err)
	}
	if len(reg.listSinks(foreign)) != 0 {
		t.Fatalf("unauthorized join must not add the connection")
	}

	if err := reg.RequestJoinScope(context.Background(), sink.ID(), allowed); err != nil {
		t.Fatalf("join allowed list: %v", err)
	}
	if len(reg.listSinks(allowed)) != 1 {
		t.Fatalf("expected connection in joined scope")
	}

	reg.RequestLeaveScope(sink.ID(), allowed)
	if len(reg.listSinks(allowed)) != 0 {
		t.Fatalf("expected leave to remove the connection")
	}

	if err := reg.RequestJoinScope(context.Background(), "missing", allowed); !errors.Is(err, ErrUnknownConnection) {
		t.Fatalf("expected unknown connection, got %v", err)
	}
}

func TestOnConnectRetriesWhenRevokedDuringQuery(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	list := uuid.New()
	access.grant(user, list, enums.ListRoleEditor)
	reg := newTestRegistry(t, access)

	access.onQuery = func(call int) {
		if call != 1 {
			return
		}
		// The membership is removed while the first query is in flight.
		access.mu.Lock()
		access.lists[user] = nil
		access.mu.Unlock()
		reg.RemoveConnectionsOfUserFromList(user, list)
	}

	sink := newStubSink(user)
	joined, err := reg.OnConnect(context.Background(), sink)
	if err != nil {
		t.Fatalf("on connect: %v", err)
	}
	if len(joined) != 0 {
		t.Fatalf("expected stale scope discarded, got %v", joined)
	}
	if len(reg.listSinks(list)) != 0 {
		t.Fatalf("revoked list must not hold the connection")
	}
	if access.calls != 2 {
		t.Fatalf("expected one retry, got %d queries", access.calls)
	}
}

func TestOnConnectGivesUpUnderChurn(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	reg := newTestRegistry(t, access)
	access.onQuery = func(int) { reg.DropList(uuid.New()) }

	_, err := reg.OnConnect(context.Background(), newStubSink(user))
	if !errors.Is(err, ErrScopeChurn) {
		t.Fatalf("expected churn error, got %v", err)
	}
	if access.calls != maxScopeAttempts {
		t.Fatalf("expected %d attempts, got %d", maxScopeAttempts, access.calls)
	}
	if reg.ConnectionCount() != 0 {
		t.Fatalf("expected connection unregistered after churn")
	}
}

func TestOnConnectNoopWhenDisconnectedDuringQuery(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	list := uuid.New()
	access.grant(user, list, enums.ListRoleViewer)
	reg := newTestRegistry(t, access)

	sink := newStubSink(user)
	access.onQuery = func(int) { reg.OnDisconnect(sink.ID()) }

	joined, err := reg.OnConnect(context.Background(), sink)
	if err != nil || joined != nil {
		t.Fatalf("expected silent no-op, got %v %v", joined, err)
	}
	if len(reg.listSinks(list)) != 0 || reg.ConnectionCount() != 0 {
		t.Fatalf("disconnected connection must not be resurrected")
	}
}

func TestRequestJoinScopeRetriesWhenRevokedDuringCheck(t *testing.T) {
	access := newStubAccess()
	user := uuid.New()
	list := uuid.New()
	reg := newTestRegistry(t, access)

	sink := newStubSink(user)
	if _, err := reg.OnConnect(context.Background(), sink); err != nil {
		t.Fatalf("on connect: %v", err)
	}
	access.grant(user, list, enums.ListRoleViewer)

	start := access.calls
	access.onQuery = func(call int) {
		if call != start+1 {
			return
		}
		access.mu.Lock()
		delete(access.roles[user], list)
		access.mu.Unlock()
		reg.RemoveConnectionsOfUserFromList(user, list)
	}

	err := reg.RequestJoinScope(context.Background(), sink.ID(), list)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected the retry to observe the revoke, got %v", err)
	}
	if len(reg.listSinks(list)) != 0 {
		t.Fatalf("revoked user must not be admitted")
	}
}
