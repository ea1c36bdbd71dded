package members

import (
	"context"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists list memberships.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type ownerRow struct {
	UserID      uuid.UUID
	Email       string
	DisplayName *string
	CreatedAt   time.Time
}

// ListByList returns the owner first, then members by join time.
func (r *Repository) ListByList(ctx context.Context, listID uuid.UUID) ([]MemberDTO, error) {
	var owners []ownerRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT u.id AS user_id, u.email, u.display_name, sl.created_at
		FROM shopping_lists sl
		JOIN users u ON u.id = sl.owner_id
		WHERE sl.id = ?`, listID).
		Scan(&owners).Error
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var rows []memberRow
	err = r.db.WithContext(ctx).Raw(`
		SELECT lm.id, lm.user_id, u.email, u.display_name, lm.role, lm.joined_at
		FROM list_members lm
		JOIN users u ON u.id = lm.user_id
		WHERE lm.list_id = ? AND lm.user_id <> ?
		ORDER BY lm.joined_at ASC`, listID, owners[0].UserID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]MemberDTO, 0, len(rows)+1)
	owner := owners[0]
	out = append(out, MemberDTO{
		UserID:      owner.UserID,
		Email:       owner.Email,
		DisplayName: owner.DisplayName,
		Role:        enums.ListRoleOwner,
		JoinedAt:    owner.CreatedAt,
	})
	for _, row := range rows {
		out = append(out, row.toDTO())
	}
	return out, nil
}

// Get returns one membership joined with its user.
func (r *Repository) Get(ctx context.Context, listID, userID uuid.UUID) (*MemberDTO, error) {
	var rows []memberRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT lm.id, lm.user_id, u.email, u.display_name, lm.role, lm.joined_at
		FROM list_members lm
		JOIN users u ON u.id = lm.user_id
		WHERE lm.list_id = ? AND lm.user_id = ?`, listID, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	dto := rows[0].toDTO()
	return &dto, nil
}

// Create inserts a membership. A duplicate surfaces as a unique violation.
func (r *Repository) Create(ctx context.Context, listID, userID uuid.UUID, role enums.ListRole) (*models.ListMember, error) {
	member := &models.ListMember{ListID: listID, UserID: userID, Role: role}
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		return nil, err
	}
	return member, nil
}

// UpdateRole changes a member's role and reports whether the membership existed.
func (r *Repository) UpdateRole(ctx context.Context, listID, userID uuid.UUID, role enums.ListRole) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ListMember{}).
		Where("list_id = ? AND user_id = ?", listID, userID).
		Update("role", role)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete removes a membership and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, listID, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("list_id = ? AND user_id = ?", listID, userID).
		Delete(&models.ListMember{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
