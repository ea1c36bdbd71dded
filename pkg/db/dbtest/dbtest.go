// Package dbtest opens throwaway sqlite databases carrying the production models.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open returns a client backed by a private in-memory database with every model migrated.
func Open(t *testing.T) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.User{},
		&models.ShoppingList{},
		&models.ListMember{},
		&models.ListItem{},
		&models.CommonItem{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db.FromGorm(conn)
}

// SeedUser inserts a user with the given email and a placeholder hash.
func SeedUser(t *testing.T, client *db.Client, email string) models.User {
	t.Helper()
	user := models.User{Email: email, PasswordHash: "hash", PreferredLanguage: enums.LanguageEnglish}
	if err := client.DB().Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedList inserts a list owned by ownerID.
func SeedList(t *testing.T, client *db.Client, ownerID uuid.UUID, name string) models.ShoppingList {
	t.Helper()
	list := models.ShoppingList{Name: name, OwnerID: ownerID}
	if err := client.DB().Create(&list).Error; err != nil {
		t.Fatalf("seed list: %v", err)
	}
	return list
}

// SeedMember grants userID the role on listID.
func SeedMember(t *testing.T, client *db.Client, listID, userID uuid.UUID, role enums.ListRole) models.ListMember {
	t.Helper()
	member := models.ListMember{ListID: listID, UserID: userID, Role: role}
	if err := client.DB().Create(&member).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return member
}

// SeedItem appends an item to listID at the given position.
func SeedItem(t *testing.T, client *db.Client, listID uuid.UUID, name string, position int) models.ListItem {
	t.Helper()
	item := models.ListItem{ListID: listID, Name: name, Position: position}
	if err := client.DB().Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}
