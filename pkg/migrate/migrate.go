// Package migrate applies the shared-lists schema with goose. The SQL files are
// embedded so every binary migrates the schema it was built with.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/sharedlists-backend/pkg/config"
	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
)

// DefaultDir is where new migration files are written during development.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

var gooseInit sync.Once

// Migrations exposes the embedded files.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, embeddedDir)
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

func setup() error {
	var err error
	gooseInit.Do(func() {
		goose.SetBaseFS(embedded)
		err = goose.SetDialect("postgres")
	})
	return err
}

// Run executes a goose command (up, up-by-one, down, redo, status) against the embedded files.
func Run(ctx context.Context, conn *sql.DB, command string, args ...string) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if err := setup(); err != nil {
		return fmt.Errorf("goose setup: %w", err)
	}
	if err := goose.RunContext(ctx, command, conn, embeddedDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateTo moves the schema up or down until it sits at version.
func MigrateTo(ctx context.Context, conn *sql.DB, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", version, err)
	}
	if err := setup(); err != nil {
		return fmt.Errorf("goose setup: %w", err)
	}

	current, err := goose.GetDBVersionContext(ctx, conn)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case current < target:
		err = goose.UpToContext(ctx, conn, embeddedDir, target)
	case current > target:
		err = goose.DownToContext(ctx, conn, embeddedDir, target)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

// MaybeRunDev applies pending migrations at boot in dev when the auto-migrate flag is on.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	conn, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "migrate.autorun.start")
	if err := Run(ctx, conn, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.autorun.complete")
	return nil
}
