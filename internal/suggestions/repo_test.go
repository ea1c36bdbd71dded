package suggestions

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
)

func TestRecordUsageUpsertsPerUser(t *testing.T) {
	client := dbtest.Open(t)
	alice := dbtest.SeedUser(t, client, "alice@example.com")
	bob := dbtest.SeedUser(t, client, "bob@example.com")
	repo := NewRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := repo.RecordUsage(ctx, alice.ID, "Milk", now); err != nil {
			t.Fatalf("record usage: %v", err)
		}
	}
	if err := repo.RecordUsage(ctx, bob.ID, "Milk", now); err != nil {
		t.Fatalf("record usage: %v", err)
	}

	rows, err := repo.MostUsed(ctx, alice.ID, 20)
	if err != nil {
		t.Fatalf("most used: %v", err)
	}
	if len(rows) != 1 || rows[0].UsageCount != 3 {
		t.Fatalf("expected one row used 3 times, got %+v", rows)
	}
}

func TestSearchPrefixIsCaseInsensitiveAndRanked(t *testing.T) {
	client := dbtest.Open(t)
	user := dbtest.SeedUser(t, client, "alice@example.com")
	repo := NewRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()

	usage := map[string]int{"Milk": 1, "milk chocolate": 4, "Mint": 2, "Bread": 9, "100% juice": 1}
	for name, n := range usage {
		for i := 0; i < n; i++ {
			if err := repo.RecordUsage(ctx, user.ID, name, now); err != nil {
				t.Fatalf("record usage: %v", err)
			}
		}
	}

	names, err := repo.SearchPrefix(ctx, user.ID, "MIL", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(names) != 2 || names[0] != "milk chocolate" || names[1] != "Milk" {
		t.Fatalf("unexpected suggestions %v", names)
	}

	names, err = repo.SearchPrefix(ctx, user.ID, "%", 5)
	if err != nil {
		t.Fatalf("search wildcard: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected wildcard to be literal, got %v", names)
	}

	names, err = repo.SearchPrefix(ctx, user.ID, "100%", 5)
	if err != nil {
		t.Fatalf("search literal percent: %v", err)
	}
	if len(names) != 1 || names[0] != "100% juice" {
		t.Fatalf("expected literal match, got %v", names)
	}
}

func TestByCategoryAndPrune(t *testing.T) {
	client := dbtest.Open(t)
	user := dbtest.SeedUser(t, client, "alice@example.com")
	repo := NewRepository(client.DB())
	ctx := context.Background()

	dairy := "dairy"
	old := time.Now().UTC().AddDate(-2, 0, 0)
	fresh := time.Now().UTC()
	rows := []models.CommonItem{
		{UserID: user.ID, Name: "Milk", UsageCount: 5, LastUsedAt: fresh, Category: &dairy},
		{UserID: user.ID, Name: "Cheese", UsageCount: 2, LastUsedAt: old, Category: &dairy},
		{UserID: user.ID, Name: "Nails", UsageCount: 1, LastUsedAt: old},
	}
	if err := client.DB().Create(&rows).Error; err != nil {
		t.Fatalf("seed common items: %v", err)
	}

	names, err := repo.ByCategory(ctx, user.ID, "dairy", 10)
	if err != nil {
		t.Fatalf("by category: %v", err)
	}
	if len(names) != 2 || names[0] != "Milk" {
		t.Fatalf("unexpected category suggestions %v", names)
	}

	pruned, err := repo.PruneUnusedBefore(ctx, time.Now().UTC().AddDate(-1, 0, 0))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 2 {
		t.Fatalf("expected 2 pruned rows, got %d", pruned)
	}
	left, _ := repo.MostUsed(ctx, user.ID, 20)
	if len(left) != 1 || left[0].Name != "Milk" {
		t.Fatalf("expected only fresh item left, got %+v", left)
	}
}
