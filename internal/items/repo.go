package items

import (
	"context"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists list items.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListByList returns unchecked items first, each group by position then creation time.
func (r *Repository) ListByList(ctx context.Context, listID uuid.UUID) ([]models.ListItem, error) {
	var rows []models.ListItem
	err := r.db.WithContext(ctx).
		Where("list_id = ?", listID).
		Order("is_checked ASC, position ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID loads an item scoped to its list.
func (r *Repository) FindByID(ctx context.Context, listID, itemID uuid.UUID) (*models.ListItem, error) {
	var item models.ListItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND list_id = ?", itemID, listID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Append inserts item after the current last position of its list.
func (r *Repository) Append(ctx context.Context, item *models.ListItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next struct{ Position int }
		if err := tx.Raw(
			"SELECT COALESCE(MAX(position), -1) + 1 AS position FROM list_items WHERE list_id = ?",
			item.ListID,
		).Scan(&next).Error; err != nil {
			return err
		}
		item.Position = next.Position
		return tx.Create(item).Error
	})
}

// Update applies fields to the item and returns the stored row.
func (r *Repository) Update(ctx context.Context, listID, itemID uuid.UUID, fields map[string]any) (*models.ListItem, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ListItem{}).
		Where("id = ? AND list_id = ?", itemID, listID).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, listID, itemID)
}

// Delete removes the item and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, listID, itemID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND list_id = ?", itemID, listID).
		Delete(&models.ListItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ToggleCheck flips is_checked in one statement, stamping or clearing who checked it.
func (r *Repository) ToggleCheck(ctx context.Context, listID, itemID, userID uuid.UUID, at time.Time) (*models.ListItem, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE list_items
		SET is_checked = NOT is_checked,
			checked_at = CASE WHEN is_checked THEN NULL ELSE ? END,
			checked_by = CASE WHEN is_checked THEN NULL ELSE ? END,
			updated_at = ?
		WHERE id = ? AND list_id = ?`, at, userID, at, itemID, listID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, listID, itemID)
}

// ClearChecked deletes every checked item of the list.
func (r *Repository) ClearChecked(ctx context.Context, listID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("list_id = ? AND is_checked = ?", listID, true).
		Delete(&models.ListItem{})
	return res.RowsAffected, res.Error
}

// Reorder assigns positions atomically. Ids that do not belong to the list are ignored.
func (r *Repository) Reorder(ctx context.Context, listID uuid.UUID, entries []ReorderEntry, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			if err := tx.Model(&models.ListItem{}).
				Where("id = ? AND list_id = ?", e.ItemID, listID).
				Updates(map[string]any{"position": e.Position, "updated_at": at}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
