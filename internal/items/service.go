package items

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

type itemsRepository interface {
	ListByList(ctx context.Context, listID uuid.UUID) ([]models.ListItem, error)
	FindByID(ctx context.Context, listID, itemID uuid.UUID) (*models.ListItem, error)
	Append(ctx context.Context, item *models.ListItem) error
	Update(ctx context.Context, listID, itemID uuid.UUID, fields map[string]any) (*models.ListItem, error)
	Delete(ctx context.Context, listID, itemID uuid.UUID) (bool, error)
	ToggleCheck(ctx context.Context, listID, itemID, userID uuid.UUID, at time.Time) (*models.ListItem, error)
	ClearChecked(ctx context.Context, listID uuid.UUID) (int64, error)
	Reorder(ctx context.Context, listID uuid.UUID, entries []ReorderEntry, at time.Time) error
}

type accessChecker interface {
	EnsureAccess(ctx context.Context, userID, listID uuid.UUID, min enums.ListRole) (enums.ListRole, error)
}

type usageRecorder interface {
	RecordUsage(ctx context.Context, userID uuid.UUID, name string, at time.Time) error
}

// Service exposes item operations. Every mutation is broadcast to the list scope after it commits.
type Service interface {
	List(ctx context.Context, userID, listID uuid.UUID) ([]ItemDTO, error)
	Add(ctx context.Context, userID, listID uuid.UUID, input CreateItemInput) (*ItemDTO, error)
	Update(ctx context.Context, userID, listID, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	Delete(ctx context.Context, userID, listID, itemID uuid.UUID) error
	ToggleCheck(ctx context.Context, userID, listID, itemID uuid.UUID) (*ItemDTO, error)
	ClearChecked(ctx context.Context, userID, listID uuid.UUID) (*ClearResult, error)
	Reorder(ctx context.Context, userID, listID uuid.UUID, entries []ReorderEntry) ([]ItemDTO, error)
}

// ServiceParams groups the item service dependencies.
type ServiceParams struct {
	Repo           itemsRepository
	Access         accessChecker
	Emitter        realtime.Emitter
	Usage          usageRecorder
	Logger         *logger.Logger
	StorageTimeout time.Duration
}

type service struct {
	repo    itemsRepository
	access  accessChecker
	emitter realtime.Emitter
	usage   usageRecorder
	logg    *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewService validates params and builds the item service. Usage tracking is optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if params.Access == nil {
		return nil, fmt.Errorf("access resolver required")
	}
	if params.Emitter == nil {
		return nil, fmt.Errorf("emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		access:  params.Access,
		emitter: params.Emitter,
		usage:   params.Usage,
		logg:    params.Logger,
		timeout: params.StorageTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) List(ctx context.Context, userID, listID uuid.UUID) ([]ItemDTO, error) {
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleViewer); err != nil {
		return nil, err
	}

	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.repo.ListByList(ctx, listID)
	if err != nil {
		return nil, pkgerrors.WrapStorage(err, "list items")
	}
	return FromModels(rows), nil
}

func (s *service) Add(ctx context.Context, userID, listID uuid.UUID, input CreateItemInput) (*ItemDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Item name is required")
	}
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleEditor); err != nil {
		return nil, err
	}

	item := &models.ListItem{
		ListID:   listID,
		Name:     name,
		Quantity: blankToNil(input.Quantity),
		Notes:    blankToNil(input.Notes),
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.repo.Append(ctx, item)
	}); err != nil {
		// the list was deleted between the access check and the insert
		if db.IsForeignKeyViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgListNotFound)
		}
		return nil, pkgerrors.WrapStorage(err, "add item")
	}

	s.recordUsage(ctx, userID, name)

	dto := FromModel(item)
	s.emitter.EmitToList(ctx, listID, realtime.EventItemAdded, itemEvent{ListID: listID, Item: dto, UserID: userID})
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID, listID, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Item name cannot be empty")
	}
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleEditor); err != nil {
		return nil, err
	}

	if input.empty() {
		return s.loadOne(ctx, listID, itemID)
	}

	fields := map[string]any{}
	if input.Name != nil {
		fields["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Quantity != nil {
		fields["quantity"] = blankToNil(input.Quantity)
	}
	if input.Notes != nil {
		fields["notes"] = blankToNil(input.Notes)
	}
	if input.Position != nil {
		fields["position"] = *input.Position
	}

	var updated *models.ListItem
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.Update(ctx, listID, itemID, fields)
		return err
	})
	if err != nil {
		return nil, itemError(err, "update item")
	}

	dto := FromModel(updated)
	s.emitter.EmitToList(ctx, listID, realtime.EventItemUpdated, itemEvent{ListID: listID, Item: dto, UserID: userID})
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, userID, listID, itemID uuid.UUID) error {
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleEditor); err != nil {
		return err
	}

	var found bool
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		found, err = s.repo.Delete(ctx, listID, itemID)
		return err
	})
	if err != nil {
		return pkgerrors.WrapStorage(err, "delete item")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgItemNotFound)
	}

	s.emitter.EmitToList(ctx, listID, realtime.EventItemDeleted, itemDeletedEvent{ListID: listID, ItemID: itemID, UserID: userID})
	return nil
}

func (s *service) ToggleCheck(ctx context.Context, userID, listID, itemID uuid.UUID) (*ItemDTO, error) {
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleEditor); err != nil {
		return nil, err
	}

	var toggled *models.ListItem
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		toggled, err = s.repo.ToggleCheck(ctx, listID, itemID, userID, s.now())
		return err
	})
	if err != nil {
		return nil, itemError(err, "toggle item")
	}

	dto := FromModel(toggled)
	s.emitter.EmitToList(ctx, listID, realtime.EventItemChecked, itemEvent{ListID: listID, Item: dto, UserID: userID})
	return &dto, nil
}

func (s *service) ClearChecked(ctx context.Context, userID, listID uuid.UUID) (*ClearResult, error) {
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleEditor); err != nil {
		return nil, err
	}

	var deleted int64
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.repo.ClearChecked(ctx, listID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.WrapStorage(err, "clear checked items")
	}

	s.emitter.EmitToList(ctx, listID, realtime.EventItemsCleared, itemsClearedEvent{ListID: listID, DeletedCount: deleted, UserID: userID})
	return &ClearResult{DeletedCount: deleted}, nil
}

func (s *service) Reorder(ctx context.Context, userID, listID uuid.UUID, entries []ReorderEntry) ([]ItemDTO, error) {
	if len(entries) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Items array is required")
	}
	if _, err := s.access.EnsureAccess(ctx, userID, listID, enums.ListRoleEditor); err != nil {
		return nil, err
	}

	var rows []models.ListItem
	reorder := func(ctx context.Context) error {
		if err := s.repo.Reorder(ctx, listID, entries, s.now()); err != nil {
			return err
		}
		var err error
		rows, err = s.repo.ListByList(ctx, listID)
		return err
	}
	err := s.withTimeout(ctx, reorder)
	if db.IsRetryable(err) {
		// two editors dragging at once; one more attempt normally wins
		err = s.withTimeout(ctx, reorder)
	}
	if err != nil {
		return nil, pkgerrors.WrapStorage(err, "reorder items")
	}

	dtos := FromModels(rows)
	s.emitter.EmitToList(ctx, listID, realtime.EventItemsReordered, itemsReorderedEvent{ListID: listID, Items: dtos, UserID: userID})
	return dtos, nil
}

func (s *service) loadOne(ctx context.Context, listID, itemID uuid.UUID) (*ItemDTO, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	item, err := s.repo.FindByID(ctx, listID, itemID)
	if err != nil {
		return nil, itemError(err, "load item")
	}
	dto := FromModel(item)
	return &dto, nil
}

// recordUsage feeds autocomplete. It runs after the item is stored, so failures are only logged.
func (s *service) recordUsage(ctx context.Context, userID uuid.UUID, name string) {
	if s.usage == nil {
		return
	}
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.usage.RecordUsage(ctx, userID, name, s.now())
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "items.usage.record_failed")
	}
}

func (s *service) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

func itemError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgItemNotFound)
	}
	return pkgerrors.WrapStorage(err, msg)
}

func blankToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
