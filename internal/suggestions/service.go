package suggestions

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/google/uuid"
)

const (
	prefixLimit   = 5
	commonLimit   = 20
	categoryLimit = 10
	maxQueryLen   = 100
)

type suggestionsRepository interface {
	SearchPrefix(ctx context.Context, userID uuid.UUID, prefix string, limit int) ([]string, error)
	MostUsed(ctx context.Context, userID uuid.UUID, limit int) ([]models.CommonItem, error)
	ByCategory(ctx context.Context, userID uuid.UUID, category string, limit int) ([]string, error)
}

// CommonItemDTO is one entry of the user's usage history.
type CommonItemDTO struct {
	Name       string    `json:"name"`
	UsageCount int       `json:"usage_count"`
	LastUsedAt time.Time `json:"last_used_at"`
	Category   *string   `json:"category"`
}

// Service serves autocomplete from the caller's own history only.
type Service interface {
	Suggest(ctx context.Context, userID uuid.UUID, query string) ([]string, error)
	Common(ctx context.Context, userID uuid.UUID) ([]CommonItemDTO, error)
	ByCategory(ctx context.Context, userID uuid.UUID, category string) ([]string, error)
}

type service struct {
	repo    suggestionsRepository
	timeout time.Duration
}

// NewService builds the suggestions service.
func NewService(repo suggestionsRepository, storageTimeout time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("suggestions repository required")
	}
	return &service{repo: repo, timeout: storageTimeout}, nil
}

func (s *service) Suggest(ctx context.Context, userID uuid.UUID, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" || utf8.RuneCountInString(query) > maxQueryLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Query must be between 1 and 100 characters")
	}

	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	names, err := s.repo.SearchPrefix(ctx, userID, query, prefixLimit)
	if err != nil {
		return nil, pkgerrors.WrapStorage(err, "search suggestions")
	}
	return nonNil(names), nil
}

func (s *service) Common(ctx context.Context, userID uuid.UUID) ([]CommonItemDTO, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.repo.MostUsed(ctx, userID, commonLimit)
	if err != nil {
		return nil, pkgerrors.WrapStorage(err, "load common items")
	}
	out := make([]CommonItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, CommonItemDTO{
			Name:       row.Name,
			UsageCount: row.UsageCount,
			LastUsedAt: row.LastUsedAt,
			Category:   row.Category,
		})
	}
	return out, nil
}

func (s *service) ByCategory(ctx context.Context, userID uuid.UUID, category string) ([]string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Category is required")
	}

	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	names, err := s.repo.ByCategory(ctx, userID, category, categoryLimit)
	if err != nil {
		return nil, pkgerrors.WrapStorage(err, "load category suggestions")
	}
	return nonNil(names), nil
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
