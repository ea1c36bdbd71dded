package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/sharedlists-backend/internal/suggestions"
	"github.com/angelmondragon/sharedlists-backend/pkg/db/dbtest"
)

type stubPruner struct {
	cutoff time.Time
	err    error
}

func (s *stubPruner) PruneUnusedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return 3, s.err
}

func TestCommonItemPruneJobUsesRetentionWindow(t *testing.T) {
	pruner := &stubPruner{}
	job, err := NewCommonItemPruneJob(CommonItemPruneJobParams{
		Logger:        newTestLogger(),
		Repository:    pruner,
		RetentionDays: 30,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	job.(*commonItemPruneJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := now.Add(-30 * 24 * time.Hour); !pruner.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, pruner.cutoff)
	}
}

func TestCommonItemPruneJobPropagatesErrors(t *testing.T) {
	job, err := NewCommonItemPruneJob(CommonItemPruneJobParams{
		Logger:     newTestLogger(),
		Repository: &stubPruner{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCommonItemPruneJobDeletesStaleRows(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.SeedUser(t, conn, "pruner@example.com")
	repo := suggestions.NewRepository(conn.DB())
	ctx := context.Background()

	old := time.Now().UTC().AddDate(-2, 0, 0)
	if err := repo.RecordUsage(ctx, user.ID, "Flour", old); err != nil {
		t.Fatalf("record old usage: %v", err)
	}
	if err := repo.RecordUsage(ctx, user.ID, "Milk", time.Now().UTC()); err != nil {
		t.Fatalf("record fresh usage: %v", err)
	}

	job, err := NewCommonItemPruneJob(CommonItemPruneJobParams{
		Logger:         newTestLogger(),
		Repository:     repo,
		RetentionDays:  365,
		StorageTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	names, err := repo.SearchPrefix(ctx, user.ID, "", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(names) != 1 || names[0] != "Milk" {
		t.Fatalf("expected only Milk to survive, got %v", names)
	}
}
