package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/sharedlists-backend/pkg/config"
	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/angelmondragon/sharedlists-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

// gooseCommands run straight through goose against the list schema.
var gooseCommands = map[string]bool{
	"up":        true,
	"up-by-one": true,
	"down":      true,
	"redo":      true,
	"status":    true,
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|up-by-one|down|redo|status|to|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations source directory, used by create and validate")
	name := flag.String("name", "", "migration name, used by -cmd=create")
	target := flag.String("version", "", "target version, used by -cmd=to")
	flag.Parse()

	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// create and validate only touch the migrations directory
	switch *cmd {
	case "create":
		if *name == "" {
			fail(ctx, logg, "migrate.create.failed", fmt.Errorf("-name is required"))
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail(ctx, logg, "migrate.create.failed", err)
		}
		logg.Info(logg.WithField(ctx, "path", path), "migrate.create.complete")
		return
	case "validate":
		if err := migrate.Validate(os.DirFS(*dir)); err != nil {
			fail(ctx, logg, "migrate.validate.failed", err)
		}
		logg.Info(ctx, "migrate.validate.complete")
		return
	}

	if !gooseCommands[*cmd] && *cmd != "to" {
		fail(ctx, logg, "migrate.command.unknown", fmt.Errorf("unknown -cmd value %q", *cmd))
	}

	cfg, err := config.Load()
	if err != nil {
		fail(ctx, logg, "migrate.config.failed", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "env": cfg.App.Env})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "migrate.database.failed", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(ctx, logg, "migrate.database.failed", err)
	}

	if *cmd == "to" {
		if *target == "" {
			fail(ctx, logg, "migrate.to.failed", fmt.Errorf("-version is required"))
		}
		err = migrate.MigrateTo(ctx, sqlDB, *target)
	} else {
		err = migrate.Run(ctx, sqlDB, *cmd)
	}
	if err != nil {
		fail(ctx, logg, "migrate."+*cmd+".failed", err)
	}
	logg.Info(ctx, "migrate."+*cmd+".complete")
}

func fail(ctx context.Context, logg *logger.Logger, event string, err error) {
	logg.Error(ctx, event, err)
	os.Exit(1)
}
