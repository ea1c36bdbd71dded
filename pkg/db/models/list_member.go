package models

import (
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListMember grants a non-owner user editor or viewer rights on a list.
type ListMember struct {
	ID       uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ListID   uuid.UUID      `gorm:"column:list_id;type:uuid;not null;uniqueIndex:idx_list_members_list_user"`
	UserID   uuid.UUID      `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_list_members_list_user;index"`
	Role     enums.ListRole `gorm:"column:role;type:text;not null"`
	JoinedAt time.Time      `gorm:"column:joined_at;autoCreateTime"`
}

func (ListMember) TableName() string { return "list_members" }

func (m *ListMember) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
