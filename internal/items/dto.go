package items

import (
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/google/uuid"
)

// ItemDTO is the public representation of a list item.
type ItemDTO struct {
	ID        uuid.UUID  `json:"id"`
	ListID    uuid.UUID  `json:"list_id"`
	Name      string     `json:"name"`
	Quantity  *string    `json:"quantity"`
	Notes     *string    `json:"notes"`
	IsChecked bool       `json:"is_checked"`
	CheckedAt *time.Time `json:"checked_at"`
	CheckedBy *uuid.UUID `json:"checked_by"`
	Position  int        `json:"position"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// FromModel maps a persisted item to its DTO.
func FromModel(m *models.ListItem) ItemDTO {
	return ItemDTO{
		ID:        m.ID,
		ListID:    m.ListID,
		Name:      m.Name,
		Quantity:  m.Quantity,
		Notes:     m.Notes,
		IsChecked: m.IsChecked,
		CheckedAt: m.CheckedAt,
		CheckedBy: m.CheckedBy,
		Position:  m.Position,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromModels maps items in order.
func FromModels(rows []models.ListItem) []ItemDTO {
	out := make([]ItemDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}

// CreateItemInput carries the fields accepted when adding an item.
type CreateItemInput struct {
	Name     string
	Quantity *string
	Notes    *string
}

// UpdateItemInput carries optional item fields; nil leaves the column untouched.
type UpdateItemInput struct {
	Name     *string
	Quantity *string
	Notes    *string
	Position *int
}

func (in UpdateItemInput) empty() bool {
	return in.Name == nil && in.Quantity == nil && in.Notes == nil && in.Position == nil
}

// ReorderEntry assigns a position to one item.
type ReorderEntry struct {
	ItemID   uuid.UUID `json:"item_id"`
	Position int       `json:"position"`
}

// ClearResult reports how many checked items were removed.
type ClearResult struct {
	DeletedCount int64 `json:"deleted_count"`
}

type itemEvent struct {
	ListID uuid.UUID `json:"list_id"`
	Item   ItemDTO   `json:"item"`
	UserID uuid.UUID `json:"user_id"`
}

type itemDeletedEvent struct {
	ListID uuid.UUID `json:"list_id"`
	ItemID uuid.UUID `json:"item_id"`
	UserID uuid.UUID `json:"user_id"`
}

type itemsClearedEvent struct {
	ListID       uuid.UUID `json:"list_id"`
	DeletedCount int64     `json:"deleted_count"`
	UserID       uuid.UUID `json:"user_id"`
}

type itemsReorderedEvent struct {
	ListID uuid.UUID `json:"list_id"`
	Items  []ItemDTO `json:"items"`
	UserID uuid.UUID `json:"user_id"`
}
