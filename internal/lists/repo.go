package lists

import (
	"context"

	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// summarySelect yields one row per list the user can access. Args: user, user.
const summarySelect = `
	SELECT sl.id, sl.name, sl.owner_id, sl.is_archived, sl.created_at, sl.updated_at,
		CASE WHEN sl.owner_id = ? THEN 'owner' ELSE lm.role END AS user_role,
		(SELECT COUNT(*) FROM list_items li WHERE li.list_id = sl.id AND li.is_checked = ?) AS active_items_count,
		(SELECT COUNT(*) FROM list_items li WHERE li.list_id = sl.id) AS total_items_count,
		(SELECT COUNT(*) FROM list_members m WHERE m.list_id = sl.id) + 1 AS member_count
	FROM shopping_lists sl
	LEFT JOIN list_members lm ON lm.list_id = sl.id AND lm.user_id = ?
	WHERE (sl.owner_id = ? OR lm.user_id IS NOT NULL)`

// Repository persists shopping lists.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, list *models.ShoppingList) error {
	return r.db.WithContext(ctx).Create(list).Error
}

func (r *Repository) FindByID(ctx context.Context, listID uuid.UUID) (*models.ShoppingList, error) {
	var list models.ShoppingList
	if err := r.db.WithContext(ctx).First(&list, "id = ?", listID).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

// ListForUser returns every owned or shared list, most recently updated first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]ListDTO, error) {
	var rows []summaryRow
	err := r.db.WithContext(ctx).
		Raw(summarySelect+` ORDER BY sl.updated_at DESC`, userID, false, userID, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ListDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDTO())
	}
	return out, nil
}

// SummaryFor returns one list as seen by userID, or gorm.ErrRecordNotFound.
func (r *Repository) SummaryFor(ctx context.Context, userID, listID uuid.UUID) (*ListDTO, error) {
	var rows []summaryRow
	err := r.db.WithContext(ctx).
		Raw(summarySelect+` AND sl.id = ?`, userID, false, userID, userID, listID).
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

// UpdateFields applies the column changes and returns the fresh row.
func (r *Repository) UpdateFields(ctx context.Context, listID uuid.UUID, fields map[string]any) (*models.ShoppingList, error) {
	res := r.db.WithContext(ctx).Model(&models.ShoppingList{}).Where("id = ?", listID).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, listID)
}

// ParticipantIDs returns the owner followed by every member.
func (r *Repository) ParticipantIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error) {
	list, err := r.FindByID(ctx, listID)
	if err != nil {
		return nil, err
	}
	var memberIDs []uuid.UUID
	err = r.db.WithContext(ctx).
		Model(&models.ListMember{}).
		Where("list_id = ?", listID).
		Pluck("user_id", &memberIDs).Error
	if err != nil {
		return nil, err
	}
	return append([]uuid.UUID{list.OwnerID}, memberIDs...), nil
}

// Delete removes the list; members and items go with it via ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, listID uuid.UUID) (bool, error) {
	var found bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// children first; the schema cascades as well
		if err := tx.Where("list_id = ?", listID).Delete(&models.ListItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("list_id = ?", listID).Delete(&models.ListMember{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", listID).Delete(&models.ShoppingList{})
		if res.Error != nil {
			return res.Error
		}
		found = res.RowsAffected > 0
		return nil
	})
	return found, err
}
