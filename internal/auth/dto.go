package auth

import (
	"github.com/angelmondragon/sharedlists-backend/internal/users"
)

// RegisterRequest is the sign-up payload. Registration logs the user in.
type RegisterRequest struct {
	Email             string  `json:"email" validate:"required,email,max=255"`
	Password          string  `json:"password" validate:"required,min=8,max=128"`
	DisplayName       *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	PreferredLanguage string  `json:"preferred_language,omitempty" validate:"omitempty,oneof=en el de"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the refresh token paired with the (possibly expired) bearer.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UpdateProfileRequest holds optional profile fields.
type UpdateProfileRequest struct {
	DisplayName       *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	PreferredLanguage *string `json:"preferred_language,omitempty" validate:"omitempty,oneof=en el de"`
}

// ChangePasswordRequest requires the current password before setting a new one.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// AuthResponse contains the tokens and user produced by register, login and refresh.
type AuthResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}
