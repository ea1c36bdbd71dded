package lists

import (
	"time"

	"github.com/angelmondragon/sharedlists-backend/internal/items"
	"github.com/angelmondragon/sharedlists-backend/internal/members"
	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	"github.com/google/uuid"
)

// ListRecord is the list as every participant sees it.
type ListRecord struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	OwnerID    uuid.UUID `json:"owner_id"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListDTO adds the caller's role and the item and member counts.
type ListDTO struct {
	ListRecord
	UserRole         enums.ListRole `json:"user_role"`
	ActiveItemsCount int64          `json:"active_items_count"`
	TotalItemsCount  int64          `json:"total_items_count"`
	MemberCount      int64          `json:"member_count"`
}

// SyncSnapshot is the full state a client reconciles against.
type SyncSnapshot struct {
	List       ListDTO             `json:"list"`
	Items      []items.ItemDTO     `json:"items"`
	Members    []members.MemberDTO `json:"members"`
	ServerTime time.Time           `json:"server_time"`
}

// CreateListInput names a new list.
type CreateListInput struct {
	Name string
}

// UpdateListInput carries the optional list fields.
type UpdateListInput struct {
	Name       *string
	IsArchived *bool
}

func recordFromModel(m *models.ShoppingList) ListRecord {
	return ListRecord{
		ID:         m.ID,
		Name:       m.Name,
		OwnerID:    m.OwnerID,
		IsArchived: m.IsArchived,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

type summaryRow struct {
	ID               uuid.UUID
	Name             string
	OwnerID          uuid.UUID
	IsArchived       bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	UserRole         string
	ActiveItemsCount int64
	TotalItemsCount  int64
	MemberCount      int64
}

func (r summaryRow) toDTO() ListDTO {
	return ListDTO{
		ListRecord: ListRecord{
			ID:         r.ID,
			Name:       r.Name,
			OwnerID:    r.OwnerID,
			IsArchived: r.IsArchived,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		},
		UserRole:         enums.ListRole(r.UserRole),
		ActiveItemsCount: r.ActiveItemsCount,
		TotalItemsCount:  r.TotalItemsCount,
		MemberCount:      r.MemberCount,
	}
}

type listEvent struct {
	List   ListRecord `json:"list"`
	UserID uuid.UUID  `json:"user_id"`
}

type listDeletedEvent struct {
	ListID uuid.UUID `json:"list_id"`
	UserID uuid.UUID `json:"user_id"`
}
