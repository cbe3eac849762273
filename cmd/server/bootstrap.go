package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/notifystream/internal/api"
	"github.com/charlesng35/notifystream/internal/app"
	"github.com/charlesng35/notifystream/internal/app/maintenance"
	iauth "github.com/charlesng35/notifystream/internal/auth"
	"github.com/charlesng35/notifystream/internal/cache"
	"github.com/charlesng35/notifystream/internal/database"
	"github.com/charlesng35/notifystream/internal/monitoring"
	"github.com/charlesng35/notifystream/internal/monitoring/checks"
	"github.com/charlesng35/notifystream/internal/notifications"
	"github.com/charlesng35/notifystream/internal/realtime"
	"github.com/charlesng35/notifystream/internal/services"
	"github.com/charlesng35/notifystream/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Broadcaster   realtime.Broadcaster
	JWT           *iauth.JWTService
	Notifications *notifications.Service
	Resyncer      *maintenance.Resyncer
	Router        *gin.Engine
}

// bootstrapRuntime initialises the database, broadcaster, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.JWT, err = iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	if err := stack.initialiseBroadcaster(ctx, cfg, log); err != nil {
		return nil, err
	}

	store, err := notifications.NewGormStore(stack.DB, cfg.Notifications.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("initialise notification store: %w", err)
	}

	publisher := notifications.NewPublisher(store, stack.Broadcaster, cfg.Notifications.PublisherConfig())
	stack.Notifications, err = notifications.NewService(store, publisher)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	realtimeLog := logger.WithModule("realtime")
	server := realtime.NewServer(
		realtime.NewGate(stack.JWT),
		stack.Broadcaster,
		publisher,
		realtime.WithStateHook(func(session *realtime.Session, from, to realtime.State) {
			realtimeLog.Debug("session transition",
				zap.String("session_id", session.ID()),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}),
	)

	stack.Resyncer = maintenance.NewResyncer(stack.Broadcaster, publisher,
		maintenance.WithSchedule(cfg.Notifications.ResyncSchedule),
	)
	if err := stack.Resyncer.Start(); err != nil {
		return nil, fmt.Errorf("start resync job: %w", err)
	}

	health := monitoring.NewHealthManager(
		checks.Database(stack.DB, 0),
		checks.Redis(stack.Redis, cfg.Cache.Redis.Timeout),
		checks.Realtime(stack.Broadcaster),
	)

	users, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:        cfg,
		Verifier:      stack.JWT,
		Users:         users,
		Notifications: stack.Notifications,
		Realtime:      server,
		Health:        health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// initialiseBroadcaster selects the Redis relay when enabled. A configured
// relay that cannot be reached fails start-up, since falling back to the
// in-process broadcaster would split user groups across instances.
func (s *runtimeStack) initialiseBroadcaster(ctx context.Context, cfg *app.Config, log *zap.Logger) error {
	if !cfg.Cache.Redis.Enabled {
		s.Broadcaster = realtime.NewMemoryBroadcaster(cfg.Notifications.BufferSize)
		log.Info("using in-process broadcaster")
		return nil
	}

	client, err := cache.ConnectRedis(ctx, cfg.Cache.RedisClientConfig())
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	s.Redis = client

	s.Broadcaster, err = realtime.NewRedisBroadcaster(ctx, client, cfg.Notifications.RedisOptions())
	if err != nil {
		return fmt.Errorf("initialise redis broadcaster: %w", err)
	}
	log.Info("redis broadcaster connected", zap.String("addr", cfg.Cache.Redis.Address))
	return nil
}

// Shutdown stops background jobs, closes every live subscription, and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var err error

	if s.Resyncer != nil {
		select {
		case <-s.Resyncer.Stop().Done():
		case <-ctx.Done():
			log.Warn("resync round still running at shutdown")
		}
	}

	if s.Broadcaster != nil {
		err = multierr.Append(err, s.Broadcaster.Close())
	}

	if s.Redis != nil {
		err = multierr.Append(err, s.Redis.Close())
	}

	if s.DB != nil {
		err = multierr.Append(err, closeDatabase(s.DB))
	}

	return err
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = closeDatabase(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	driver := strings.TrimSpace(dbCfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}
	logger.WithModule("database").Info("database connected", zap.String("driver", driver))

	return db, nil
}

func closeDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtain sql db: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
