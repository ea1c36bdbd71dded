package users

import (
	"strings"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	"github.com/google/uuid"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID                uuid.UUID      `json:"id"`
	Email             string         `json:"email"`
	DisplayName       *string        `json:"display_name"`
	PreferredLanguage enums.Language `json:"preferred_language"`
	LastLoginAt       *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email             string
	PasswordHash      string
	DisplayName       *string
	PreferredLanguage enums.Language
}

// ProfileUpdate carries the optional profile fields a user may change.
type ProfileUpdate struct {
	DisplayName       *string
	PreferredLanguage *enums.Language
}

// columns maps the set fields to their columns. An empty display name clears it.
func (p ProfileUpdate) columns() map[string]any {
	cols := map[string]any{}
	if p.DisplayName != nil {
		if name := strings.TrimSpace(*p.DisplayName); name == "" {
			cols["display_name"] = nil
		} else {
			cols["display_name"] = name
		}
	}
	if p.PreferredLanguage != nil {
		cols["preferred_language"] = *p.PreferredLanguage
	}
	return cols
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:                u.ID,
		Email:             u.Email,
		DisplayName:       u.DisplayName,
		PreferredLanguage: u.PreferredLanguage,
		LastLoginAt:       u.LastLoginAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	lang := c.PreferredLanguage
	if lang == "" {
		lang = enums.LanguageEnglish
	}
	return &models.User{
		Email:             c.Email,
		PasswordHash:      c.PasswordHash,
		DisplayName:       c.DisplayName,
		PreferredLanguage: lang,
	}
}
