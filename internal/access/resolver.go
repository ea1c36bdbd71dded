package access

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/google/uuid"
)

type roleRepository interface {
	RoleFor(ctx context.Context, userID, listID uuid.UUID) (enums.ListRole, error)
	ListIDsFor(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Resolver computes a user's effective role on a list. Nothing is cached: every call
// reads current storage state so revocations apply on the next request.
type Resolver struct {
	repo    roleRepository
	timeout time.Duration
}

// NewResolver builds a resolver whose storage calls are bounded by timeout.
func NewResolver(repo roleRepository, timeout time.Duration) (*Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("access repository required")
	}
	return &Resolver{repo: repo, timeout: timeout}, nil
}

// ResolveRole returns owner, editor, viewer or none.
func (r *Resolver) ResolveRole(ctx context.Context, userID, listID uuid.UUID) (enums.ListRole, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	role, err := r.repo.RoleFor(ctx, userID, listID)
	if err != nil {
		return enums.ListRoleNone, pkgerrors.WrapStorage(err, "resolve list role")
	}
	return role, nil
}

// EnsureAccess fails with NotFound when the user has no relationship to the list, so
// existence is never disclosed, and with Forbidden when the role is below min.
func (r *Resolver) EnsureAccess(ctx context.Context, userID, listID uuid.UUID, min enums.ListRole) (enums.ListRole, error) {
	role, err := r.ResolveRole(ctx, userID, listID)
	if err != nil {
		return enums.ListRoleNone, err
	}
	if role == enums.ListRoleNone {
		return enums.ListRoleNone, pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgListNotFound)
	}
	if !role.AtLeast(min) {
		return role, pkgerrors.New(pkgerrors.CodeForbidden, pkgerrors.MsgInsufficientPermissions)
	}
	return role, nil
}

// AccessibleListIDs returns owned and shared list ids.
func (r *Resolver) AccessibleListIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()

	ids, err := r.repo.ListIDsFor(ctx, userID)
	if err != nil {
		return nil, pkgerrors.WrapStorage(err, "list accessible lists")
	}
	return ids, nil
}
