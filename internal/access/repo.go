package access

import (
	"context"

	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository answers role questions straight from the lists and membership tables.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type roleRow struct {
	Role string
}

type listIDRow struct {
	ID uuid.UUID
}

// RoleFor returns the user's role on the list, or ListRoleNone when the user neither
// owns the list nor holds a membership row. Ownership wins over a stray membership.
func (r *Repository) RoleFor(ctx context.Context, userID, listID uuid.UUID) (enums.ListRole, error) {
	var rows []roleRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT CASE WHEN sl.owner_id = ? THEN 'owner' ELSE lm.role END AS role
		FROM shopping_lists sl
		LEFT JOIN list_members lm ON lm.list_id = sl.id AND lm.user_id = ?
		WHERE sl.id = ? AND (sl.owner_id = ? OR lm.user_id IS NOT NULL)
		LIMIT 1`, userID, userID, listID, userID).
		Scan(&rows).Error
	if err != nil {
		return enums.ListRoleNone, err
	}
	if len(rows) == 0 {
		return enums.ListRoleNone, nil
	}
	return enums.ListRole(rows[0].Role), nil
}

// ListIDsFor returns every list the user owns or is a member of.
func (r *Repository) ListIDsFor(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var rows []listIDRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT id FROM shopping_lists WHERE owner_id = ?
		UNION
		SELECT list_id AS id FROM list_members WHERE user_id = ?`, userID, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
