package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/angelmondragon/sharedlists-backend/pkg/metrics"
)

const defaultCommonItemRetentionDays = 365

type commonItemPruner interface {
	PruneUnusedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CommonItemPruneJobParams configure the autocomplete history cleanup.
type CommonItemPruneJobParams struct {
	Logger         *logger.Logger
	Repository     commonItemPruner
	Metrics        *metrics.CronJobMetrics
	RetentionDays  int
	StorageTimeout time.Duration
}

// NewCommonItemPruneJob drops usage history nobody has touched within the retention window.
func NewCommonItemPruneJob(params CommonItemPruneJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("common items repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultCommonItemRetentionDays
	}
	return &commonItemPruneJob{
		logg:      params.Logger,
		repo:      params.Repository,
		metrics:   params.Metrics,
		retention: retention,
		timeout:   params.StorageTimeout,
		now:       time.Now,
	}, nil
}

type commonItemPruneJob struct {
	logg      *logger.Logger
	repo      commonItemPruner
	metrics   *metrics.CronJobMetrics
	retention int
	timeout   time.Duration
	now       func() time.Time
}

func (j *commonItemPruneJob) Name() string { return "prune-common-items" }

func (j *commonItemPruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)

	queryCtx, cancel := db.WithTimeout(ctx, j.timeout)
	defer cancel()

	deleted, err := j.repo.PruneUnusedBefore(queryCtx, cutoff)
	if err != nil {
		return fmt.Errorf("prune common items: %w", err)
	}
	j.metrics.AddPruned(deleted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "cron.common_items.pruned")
	return nil
}
