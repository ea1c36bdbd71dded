package suggestions

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists the per-user item usage history behind autocomplete.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// RecordUsage inserts the name or bumps its counter when the user already used it.
func (r *Repository) RecordUsage(ctx context.Context, userID uuid.UUID, name string, at time.Time) error {
	row := &models.CommonItem{
		UserID:     userID,
		Name:       name,
		UsageCount: 1,
		LastUsedAt: at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{
				"usage_count":  gorm.Expr("common_items.usage_count + 1"),
				"last_used_at": at,
			}),
		}).
		Create(row).Error
}

// SearchPrefix returns names starting with prefix, case-insensitively, most used first.
func (r *Repository) SearchPrefix(ctx context.Context, userID uuid.UUID, prefix string, limit int) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.CommonItem{}).
		Where("user_id = ? AND LOWER(name) LIKE LOWER(?) ESCAPE '!'", userID, escapeLike(prefix)+"%").
		Order("usage_count DESC, last_used_at DESC").
		Limit(limit).
		Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// MostUsed returns the user's most frequent items.
func (r *Repository) MostUsed(ctx context.Context, userID uuid.UUID, limit int) ([]models.CommonItem, error) {
	var rows []models.CommonItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("usage_count DESC, last_used_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ByCategory returns item names in the category, most used first.
func (r *Repository) ByCategory(ctx context.Context, userID uuid.UUID, category string, limit int) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.CommonItem{}).
		Where("user_id = ? AND category = ?", userID, category).
		Order("usage_count DESC, last_used_at DESC").
		Limit(limit).
		Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// PruneUnusedBefore deletes history rows not used since cutoff.
func (r *Repository) PruneUnusedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("last_used_at < ?", cutoff).
		Delete(&models.CommonItem{})
	return res.RowsAffected, res.Error
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
