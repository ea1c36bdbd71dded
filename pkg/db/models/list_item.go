package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListItem is one entry of a shopping list. Position orders unchecked items and
// need not be contiguous.
type ListItem struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ListID    uuid.UUID  `gorm:"column:list_id;type:uuid;not null;index"`
	Name      string     `gorm:"type:text;not null"`
	Quantity  *string    `gorm:"column:quantity"`
	Notes     *string    `gorm:"column:notes"`
	IsChecked bool       `gorm:"column:is_checked;not null;default:false"`
	CheckedAt *time.Time `gorm:"column:checked_at"`
	CheckedBy *uuid.UUID `gorm:"column:checked_by;type:uuid"`
	Position  int        `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (ListItem) TableName() string { return "list_items" }

func (i *ListItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
