package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestRepositoryCreateDefaultsLanguage(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Email: "ana@example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.PreferredLanguage != enums.LanguageEnglish {
		t.Fatalf("expected default language en, got %s", user.PreferredLanguage)
	}

	found, err := repo.FindByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("expected %s got %s", user.ID, found.ID)
	}
}

func TestRepositoryDuplicateEmailIsUniqueViolation(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	if _, err := repo.Create(ctx, CreateUserDTO{Email: "dup@example.com", PasswordHash: "hash"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := repo.Create(ctx, CreateUserDTO{Email: "dup@example.com", PasswordHash: "hash"})
	if !db.IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestRepositoryUpdateProfileAndPassword(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	seeded := dbtest.SeedUser(t, client, "bo@example.com")

	name := "Bo"
	lang := enums.LanguageGerman
	updated, err := repo.UpdateProfile(ctx, seeded.ID, ProfileUpdate{DisplayName: &name, PreferredLanguage: &lang})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.DisplayName == nil || *updated.DisplayName != "Bo" || updated.PreferredLanguage != enums.LanguageGerman {
		t.Fatalf("unexpected profile %+v", updated)
	}

	if err := repo.UpdatePasswordHash(ctx, seeded.ID, "new-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if err := repo.UpdateLastLogin(ctx, seeded.ID, time.Now().UTC()); err != nil {
		t.Fatalf("update last login: %v", err)
	}
	reloaded, err := repo.FindByID(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.PasswordHash != "new-hash" || reloaded.LastLoginAt == nil {
		t.Fatalf("expected hash and last login to be stored, got %+v", reloaded)
	}
}

func TestRepositoryUpdateProfileUnknownUser(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	name := "Ghost"

	_, err := repo.UpdateProfile(context.Background(), uuid.New(), ProfileUpdate{DisplayName: &name})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestRepositoryBlankDisplayNameClears(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	seeded := dbtest.SeedUser(t, client, "cy@example.com")

	name := "Cy"
	if _, err := repo.UpdateProfile(ctx, seeded.ID, ProfileUpdate{DisplayName: &name}); err != nil {
		t.Fatalf("set name: %v", err)
	}
	blank := "   "
	updated, err := repo.UpdateProfile(ctx, seeded.ID, ProfileUpdate{DisplayName: &blank})
	if err != nil {
		t.Fatalf("clear name: %v", err)
	}
	if updated.DisplayName != nil {
		t.Fatalf("expected display name cleared, got %q", *updated.DisplayName)
	}

	same, err := repo.UpdateProfile(ctx, seeded.ID, ProfileUpdate{})
	if err != nil || same.ID != seeded.ID {
		t.Fatalf("empty update should return the stored row, got %+v %v", same, err)
	}
}

func TestRepositoryPasswordUpdateUnknownUser(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	err := repo.UpdatePasswordHash(context.Background(), uuid.New(), "hash")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}
