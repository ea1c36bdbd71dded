package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommonItem records how often a user adds an item name; it feeds autocomplete.
type CommonItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_common_items_user_name"`
	Name       string    `gorm:"type:text;not null;uniqueIndex:idx_common_items_user_name"`
	UsageCount int       `gorm:"column:usage_count;not null;default:1"`
	LastUsedAt time.Time `gorm:"column:last_used_at;not null"`
	Category   *string   `gorm:"column:category"`
}

func (CommonItem) TableName() string { return "common_items" }

func (c *CommonItem) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
