package members

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/sharedlists-backend/internal/realtime"
	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	msgOwnerAlreadyOnList = "User is already the owner of this list"
	msgCannotRemoveOwner  = "Cannot remove the list owner"
	msgCannotChangeOwner  = "Cannot change the owner's role"
	msgOwnerCannotLeave   = "List owner cannot leave. Delete the list instead."
	msgNotAMember         = "You are not a member of this list"
)

type membersRepository interface {
	ListByList(ctx context.Context, listID uuid.UUID) ([]MemberDTO, error)
	Get(ctx context.Context, listID, userID uuid.UUID) (*MemberDTO, error)
	Create(ctx context.Context, listID, userID uuid.UUID, role enums.ListRole) (*models.ListMember, error)
	UpdateRole(ctx context.Context, listID, userID uuid.UUID, role enums.ListRole) (bool, error)
	Delete(ctx context.Context, listID, userID uuid.UUID) (bool, error)
}

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type accessChecker interface {
	EnsureAccess(ctx context.Context, userID, listID uuid.UUID, min enums.ListRole) (enums.ListRole, error)
}

// scopeUpdater keeps live connections in step with membership changes.
type scopeUpdater interface {
	AddConnectionsOfUserToList(ctx context.Context, userID, listID uuid.UUID) (int, error)
	RemoveConnectionsOfUserFromList(userID, listID uuid.UUID) int
}

// Service manages who a list is shared with.
type Service interface {
	List(ctx context.Context, actorID, listID uuid.UUID) ([]MemberDTO, error)
	Add(ctx context.Context, actorID, listID uuid.UUID, input AddMemberInput) (*MemberDTO, error)
	UpdateRole(ctx context.Context, actorID, listID, targetID uuid.UUID, role enums.ListRole) (*MemberDTO, error)
	Remove(ctx context.Context, actorID, listID, targetID uuid.UUID) error
	Leave(ctx context.Context, actorID, listID uuid.UUID) error
}

// ServiceParams groups the members service dependencies.
type ServiceParams struct {
	Repo           membersRepository
	Users          userFinder
	Access         accessChecker
	Scopes         scopeUpdater
	Emitter        realtime.Emitter
	Logger         *logger.Logger
	StorageTimeout time.Duration
}

type service struct {
	repo    membersRepository
	users   userFinder
	access  accessChecker
	scopes  scopeUpdater
	emitter realtime.Emitter
	logg    *logger.Logger
	timeout time.Duration
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("members repository required")
	case params.Users == nil:
		return nil, fmt.Errorf("users repository required")
	case params.Access == nil:
		return nil, fmt.Errorf("access resolver required")
	case params.Scopes == nil:
		return nil, fmt.Errorf("scope registry required")
	case params.Emitter == nil:
		return nil, fmt.Errorf("emitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		users:   params.Users,
		access:  params.Access,
		scopes:  params.Scopes,
		emitter: params.Emitter,
		logg:    params.Logger,
		timeout: params.StorageTimeout,
	}, nil
}

func (s *service) List(ctx context.Context, actorID, listID uuid.UUID) ([]MemberDTO, error) {
	if _, err := s.access.EnsureAccess(ctx, actorID, listID, enums.ListRoleViewer); err != nil {
		return nil, err
	}

	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.repo.ListByList(ctx, listID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgListNotFound)
		}
		return nil, pkgerrors.WrapStorage(err, "list members")
	}
	return out, nil
}

// Add shares the list with an existing user. Only the owner may share.
func (s *service) Add(ctx context.Context, actorID, listID uuid.UUID, input AddMemberInput) (*MemberDTO, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Email is required")
	}
	role := input.Role
	if role == enums.ListRoleNone {
		role = enums.ListRoleEditor
	}
	if !role.IsAssignable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Role must be editor or viewer")
	}
	if _, err := s.access.EnsureAccess(ctx, actorID, listID, enums.ListRoleOwner); err != nil {
		return nil, err
	}

	var added *MemberDTO
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgUserNotFound)
			}
			return err
		}
		// the acting owner is the list owner
		if user.ID == actorID {
			return pkgerrors.New(pkgerrors.CodeConflict, msgOwnerAlreadyOnList)
		}
		created, err := s.repo.Create(ctx, listID, user.ID, role)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, pkgerrors.MsgAlreadyMember)
			}
			return err
		}
		// the inserted row and the looked-up user; no read-back after commit
		added = &MemberDTO{
			ID:          &created.ID,
			UserID:      user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Role:        created.Role,
			JoinedAt:    created.JoinedAt,
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.WrapStorage(err, "add member")
	}

	event := memberEvent{ListID: listID, Member: *added, UserID: actorID}
	s.emitter.EmitToList(ctx, listID, realtime.EventMemberAdded, event)
	s.emitter.EmitToUser(ctx, added.UserID, realtime.EventMemberAdded, event)
	joined, err := s.scopes.AddConnectionsOfUserToList(ctx, added.UserID, listID)
	if err != nil {
		// a concurrent removal won; the member's sockets stay out of the list
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"list_id":   listID.String(),
			"member_id": added.UserID.String(),
			"error":     err.Error(),
		}), "members.add.registry_failed")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"list_id":        listID.String(),
		"member_id":      added.UserID.String(),
		"joined_sockets": joined,
	}), "members.added")
	return added, nil
}

func (s *service) UpdateRole(ctx context.Context, actorID, listID, targetID uuid.UUID, role enums.ListRole) (*MemberDTO, error) {
	if !role.IsAssignable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Role must be editor or viewer")
	}
	if _, err := s.access.EnsureAccess(ctx, actorID, listID, enums.ListRoleOwner); err != nil {
		return nil, err
	}
	if targetID == actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, msgCannotChangeOwner)
	}

	var updated *MemberDTO
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		found, err := s.repo.UpdateRole(ctx, listID, targetID, role)
		if err != nil {
			return err
		}
		if !found {
			return pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgMemberNotFound)
		}
		updated, err = s.repo.Get(ctx, listID, targetID)
		return err
	})
	if err != nil {
		return nil, memberError(err, "update member role")
	}

	s.emitter.EmitToList(ctx, listID, realtime.EventMemberUpdated, memberEvent{ListID: listID, Member: *updated, UserID: actorID})
	return updated, nil
}

// Remove revokes a member. Their sockets leave the list scope before the event goes out.
func (s *service) Remove(ctx context.Context, actorID, listID, targetID uuid.UUID) error {
	if _, err := s.access.EnsureAccess(ctx, actorID, listID, enums.ListRoleOwner); err != nil {
		return err
	}
	if targetID == actorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, msgCannotRemoveOwner)
	}

	if err := s.deleteMembership(ctx, listID, targetID, pkgerrors.MsgMemberNotFound); err != nil {
		return err
	}

	left := s.scopes.RemoveConnectionsOfUserFromList(targetID, listID)
	event := memberRemovedEvent{ListID: listID, RemovedUserID: targetID, UserID: actorID}
	s.emitter.EmitToList(ctx, listID, realtime.EventMemberRemoved, event)
	s.emitter.EmitToUser(ctx, targetID, realtime.EventMemberRemoved, event)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"list_id":      listID.String(),
		"member_id":    targetID.String(),
		"left_sockets": left,
	}), "members.removed")
	return nil
}

func (s *service) Leave(ctx context.Context, actorID, listID uuid.UUID) error {
	role, err := s.access.EnsureAccess(ctx, actorID, listID, enums.ListRoleViewer)
	if err != nil {
		return err
	}
	if role == enums.ListRoleOwner {
		return pkgerrors.New(pkgerrors.CodeForbidden, msgOwnerCannotLeave)
	}

	if err := s.deleteMembership(ctx, listID, actorID, msgNotAMember); err != nil {
		return err
	}

	s.scopes.RemoveConnectionsOfUserFromList(actorID, listID)
	event := memberLeftEvent{ListID: listID, LeftUserID: actorID, UserID: actorID}
	s.emitter.EmitToList(ctx, listID, realtime.EventMemberLeft, event)
	s.emitter.EmitToUser(ctx, actorID, realtime.EventMemberLeft, event)
	return nil
}

func (s *service) deleteMembership(ctx context.Context, listID, userID uuid.UUID, notFound string) error {
	var found bool
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		found, err = s.repo.Delete(ctx, listID, userID)
		return err
	})
	if err != nil {
		return pkgerrors.WrapStorage(err, "delete membership")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return nil
}

func (s *service) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

func memberError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgMemberNotFound)
	}
	return pkgerrors.WrapStorage(err, msg)
}
