package lists

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/sharedlists-backend/internal/items"
	"github.com/angelmondragon/sharedlists-backend/internal/members"
	"github.com/angelmondragon/sharedlists-backend/internal/realtime"
	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type listsRepository interface {
	Create(ctx context.Context, list *models.ShoppingList) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]ListDTO, error)
	SummaryFor(ctx context.Context, userID, listID uuid.UUID) (*ListDTO, error)
	UpdateFields(ctx context.Context, listID uuid.UUID, fields map[string]any) (*models.ShoppingList, error)
	ParticipantIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error)
	Delete(ctx context.Context, listID uuid.UUID) (bool, error)
}

type itemReader interface {
	ListByList(ctx context.Context, listID uuid.UUID) ([]models.ListItem, error)
}

type memberReader interface {
	ListByList(ctx context.Context, listID uuid.UUID) ([]members.MemberDTO, error)
}

type accessChecker interface {
	EnsureAccess(ctx context.Context, userID, listID uuid.UUID, min enums.ListRole) (enums.ListRole, error)
}

type scopeUpdater interface {
	AddConnectionsOfUserToList(ctx context.Context, userID, listID uuid.UUID) (int, error)
	DropList(listID uuid.UUID) int
}

// Service exposes list operations.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]ListDTO, error)
	Get(ctx context.Context, userID, listID uuid.UUID) (*ListDTO, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateListInput) (*ListDTO, error)
	Update(ctx context.Context, userID, listID uuid.UUID, input UpdateListInput) (*ListDTO, error)
	Archive(ctx context.Context, userID, listID uuid.UUID, archived bool) (*ListDTO, error)
	Delete(ctx context.Context, userID, listID uuid.UUID) error
	Sync(ctx context.Context, userID, listID uuid.UUID) (*SyncSnapshot, error)
}

// ServiceParams groups the list service dependencies.
type ServiceParams struct {
	Repo           listsRepository
	Items          itemReader
	Members        memberReader
	Access         accessChecker
	Scopes         scopeUpdater
	Emitter        realtime.Emitter
	Logger         *logger.Logger
	StorageTimeout time.Duration
}

type service struct {
	repo    listsRepository
	items   itemReader
	members memberReader
	access  accessChecker
	scopes  scopeUpdater
	emitter realtime.Emitter
	logg    *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("lists repository required")
	case params.Items == nil:
		return nil, fmt.Errorf("items reader required")
	case params.Members == nil:
		return nil, fmt.Errorf("members reader required")
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
		items:   params.Items,
		members: params.Members,
		access:  params.Access,
		scopes:  params.Scopes,
		emitter: params.Emitter,
		logg:    params.Logger,
		timeout: params.StorageTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]ListDTO, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.WrapStorage(err, "list shopping lists")
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, listID uuid.UUID) (*ListDTO, error) {
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleViewer); err != nil {
		return nil, err
	}
	return s.summary(ctx, userID, listID)
}

// Create stores the list, tells the creator's other sessions, and routes them into the new scope.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateListInput) (*ListDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "List name is required")
	}

	list := &models.ShoppingList{Name: name, OwnerID: userID}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, list)
	}); err != nil {
		return nil, pkgerrors.WrapStorage(err, "create list")
	}

	dto := &ListDTO{
		ListRecord:  recordFromModel(list),
		UserRole:    enums.ListRoleOwner,
		MemberCount: 1,
	}
	s.emitter.EmitToUser(ctx, userID, realtime.EventListCreated, listEvent{List: dto.ListRecord, UserID: userID})
	if _, err := s.scopes.AddConnectionsOfUserToList(ctx, userID, list.ID); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"list_id": list.ID.String(), "error": err.Error()}), "list.create.registry_failed")
	}
	return dto, nil
}

func (s *service) Update(ctx context.Context, userID, listID uuid.UUID, input UpdateListInput) (*ListDTO, error) {
	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "List name cannot be empty")
		}
		fields["name"] = name
	}
	if input.IsArchived != nil {
		fields["is_archived"] = *input.IsArchived
	}
	return s.mutate(ctx, userID, listID, fields, realtime.EventListUpdated)
}

func (s *service) Archive(ctx context.Context, userID, listID uuid.UUID, archived bool) (*ListDTO, error) {
	return s.mutate(ctx, userID, listID, map[string]any{"is_archived": archived}, realtime.EventListArchived)
}

// Delete drops the live list scope before announcing the deletion on each participant's personal scope.
func (s *service) Delete(ctx context.Context, userID, listID uuid.UUID) error {
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleOwner); err != nil {
		return err
	}

	var participants []uuid.UUID
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		participants, err = s.repo.ParticipantIDs(ctx, listID)
		if err != nil {
			return err
		}
		found, err := s.repo.Delete(ctx, listID)
		if err != nil {
			return err
		}
		if !found {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return listError(err, "delete list")
	}

	dropped := s.scopes.DropList(listID)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"list_id":         listID.String(),
		"dropped_sockets": dropped,
	}), "list.delete.registry")

	event := listDeletedEvent{ListID: listID, UserID: userID}
	for _, participant := range participants {
		s.emitter.EmitToUser(ctx, participant, realtime.EventListDeleted, event)
	}
	return nil
}

// Sync returns the snapshot clients refetch on reconnect and on the resync interval.
func (s *service) Sync(ctx context.Context, userID, listID uuid.UUID) (*SyncSnapshot, error) {
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleViewer); err != nil {
		return nil, err
	}

	snapshot := &SyncSnapshot{ServerTime: s.now()}
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		list, err := s.repo.SummaryFor(ctx, userID, listID)
		if err != nil {
			return err
		}
		rows, err := s.items.ListByList(ctx, listID)
		if err != nil {
			return err
		}
		participants, err := s.members.ListByList(ctx, listID)
		if err != nil {
			return err
		}
		snapshot.List = *list
		snapshot.Items = items.FromModels(rows)
		snapshot.Members = participants
		return nil
	})
	if err != nil {
		return nil, listError(err, "sync list")
	}
	return snapshot, nil
}

func (s *service) mutate(ctx context.Context, userID, listID uuid.UUID, fields map[string]any, event string) (*ListDTO, error) {
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleEditor); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return s.summary(ctx, userID, listID)
	}

	var updated *models.ShoppingList
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.UpdateFields(ctx, listID, fields)
		return err
	})
	if err != nil {
		return nil, listError(err, "update list")
	}

	s.emitter.EmitToList(ctx, listID, event, listEvent{List: recordFromModel(updated), UserID: userID})
	return s.summary(ctx, userID, listID)
}

func (s *service) summary(ctx context.Context, userID, listID uuid.UUID) (*ListDTO, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	dto, err := s.repo.SummaryFor(ctx, userID, listID)
	if err != nil {
		return nil, listError(err, "load list")
	}
	return dto, nil
}

func (s *service) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

func listError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgListNotFound)
	}
	return pkgerrors.WrapStorage(err, msg)
}
