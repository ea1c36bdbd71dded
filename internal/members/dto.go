package members

import (
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	"github.com/google/uuid"
)

// MemberDTO describes one participant of a list. The owner has no membership id.
type MemberDTO struct {
	ID          *uuid.UUID     `json:"id"`
	UserID      uuid.UUID      `json:"user_id"`
	Email       string         `json:"email"`
	DisplayName *string        `json:"display_name"`
	Role        enums.ListRole `json:"role"`
	JoinedAt    time.Time      `json:"joined_at"`
}

// AddMemberInput identifies the user to share with by email.
type AddMemberInput struct {
	Email string
	Role  enums.ListRole
}

type memberRow struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Email       string
	DisplayName *string
	Role        string
	JoinedAt    time.Time
}

func (r memberRow) toDTO() MemberDTO {
	id := r.ID
	return MemberDTO{
		ID:          &id,
		UserID:      r.UserID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Role:        enums.ListRole(r.Role),
		JoinedAt:    r.JoinedAt,
	}
}

type memberEvent struct {
	ListID uuid.UUID `json:"list_id"`
	Member MemberDTO `json:"member"`
	UserID uuid.UUID `json:"user_id"`
}

type memberRemovedEvent struct {
	ListID        uuid.UUID `json:"list_id"`
	RemovedUserID uuid.UUID `json:"removed_user_id"`
	UserID        uuid.UUID `json:"user_id"`
}

type memberLeftEvent struct {
	ListID     uuid.UUID `json:"list_id"`
	LeftUserID uuid.UUID `json:"left_user_id"`
	UserID     uuid.UUID `json:"user_id"`
}
