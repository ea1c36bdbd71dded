package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/sharedlists-backend/api"
	"github.com/angelmondragon/sharedlists-backend/api/controllers"
	"github.com/angelmondragon/sharedlists-backend/api/routes"
	"github.com/angelmondragon/sharedlists-backend/internal/access"
	"github.com/angelmondragon/sharedlists-backend/internal/auth"
	"github.com/angelmondragon/sharedlists-backend/internal/items"
	"github.com/angelmondragon/sharedlists-backend/internal/lists"
	"github.com/angelmondragon/sharedlists-backend/internal/members"
	"github.com/angelmondragon/sharedlists-backend/internal/realtime"
	"github.com/angelmondragon/sharedlists-backend/internal/suggestions"
	"github.com/angelmondragon/sharedlists-backend/internal/users"
	"github.com/angelmondragon/sharedlists-backend/pkg/auth/session"
	"github.com/angelmondragon/sharedlists-backend/pkg/config"
	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/angelmondragon/sharedlists-backend/pkg/metrics"
	"github.com/angelmondragon/sharedlists-backend/pkg/migrate"
	"github.com/angelmondragon/sharedlists-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "config.load.failed", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api.stopped", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "db.close.failed", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "redis.close.failed", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	gormDB := dbClient.DB()
	timeout := cfg.App.StorageTimeout

	resolver, err := access.NewResolver(access.NewRepository(gormDB), timeout)
	if err != nil {
		return err
	}

	registerer := prometheus.DefaultRegisterer
	realtimeMetrics := metrics.NewRealtimeMetrics(registerer)
	httpMetrics := metrics.NewHTTPMetrics(registerer)

	registry, err := realtime.NewRegistry(resolver)
	if err != nil {
		return err
	}
	broadcaster, err := realtime.NewBroadcaster(registry, logg, realtimeMetrics)
	if err != nil {
		return err
	}
	hub, err := realtime.NewHub(realtime.HubParams{
		Registry:       registry,
		Config:         cfg.Realtime,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logg,
		Metrics:        realtimeMetrics,
	})
	if err != nil {
		return err
	}

	usersRepo := users.NewRepository(gormDB)
	itemsRepo := items.NewRepository(gormDB)
	membersRepo := members.NewRepository(gormDB)
	suggestionsRepo := suggestions.NewRepository(gormDB)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
		StorageTimeout: timeout,
	})
	if err != nil {
		return err
	}

	listsService, err := lists.NewService(lists.ServiceParams{
		Repo:           lists.NewRepository(gormDB),
		Items:          itemsRepo,
		Members:        membersRepo,
		Access:         resolver,
		Scopes:         registry,
		Emitter:        broadcaster,
		Logger:         logg,
		StorageTimeout: timeout,
	})
	if err != nil {
		return err
	}

	itemsService, err := items.NewService(items.ServiceParams{
		Repo:           itemsRepo,
		Access:         resolver,
		Emitter:        broadcaster,
		Usage:          suggestionsRepo,
		Logger:         logg,
		StorageTimeout: timeout,
	})
	if err != nil {
		return err
	}

	membersService, err := members.NewService(members.ServiceParams{
		Repo:           membersRepo,
		Users:          usersRepo,
		Access:         resolver,
		Scopes:         registry,
		Emitter:        broadcaster,
		Logger:         logg,
		StorageTimeout: timeout,
	})
	if err != nil {
		return err
	}

	suggestionsService, err := suggestions.NewService(suggestionsRepo, timeout)
	if err != nil {
		return err
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:   cfg,
		Logger:   logg,
		Redis:    redisClient,
		Sessions: sessionManager,
		Pingers: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Gatherer:    prometheus.DefaultGatherer,
		Metrics:     httpMetrics,
		Auth:        authService,
		Lists:       listsService,
		Items:       itemsService,
		Members:     membersService,
		Suggestions: suggestionsService,
		Live:        hub,
	})

	server := api.NewServer(cfg.App, router)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"port": cfg.App.Port,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(groupCtx, "api.listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(ctx, "api.shutdown.start")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are invisible to Shutdown, so the hub closes them.
		err := server.Shutdown(shutdownCtx)
		if hubErr := hub.Close(); hubErr != nil {
			logg.Error(ctx, "realtime.hub.close_failed", hubErr)
		}
		logg.Info(ctx, "api.shutdown.complete")
		return err
	})

	return group.Wait()
}
