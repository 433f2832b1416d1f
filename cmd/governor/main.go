// Package main provides the governance server binary: it loads the
// skill collection, serves the admin HTTP API, and brokers every
// governed mutation.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bidvictrix/skillforge/internal/adminapi"
	"github.com/bidvictrix/skillforge/internal/config"
	"github.com/bidvictrix/skillforge/internal/governance"
	"github.com/bidvictrix/skillforge/internal/harness"
	"github.com/bidvictrix/skillforge/internal/observability"
	"github.com/bidvictrix/skillforge/internal/scripting"
	"github.com/bidvictrix/skillforge/internal/server"
	"github.com/bidvictrix/skillforge/internal/skill"
	"github.com/bidvictrix/skillforge/internal/storage/postgres"
	"github.com/bidvictrix/skillforge/internal/storage/redis"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting governance server",
		zap.String("http_addr", cfg.Server.Addr()),
	)

	// Skill templates.
	tmplStart := time.Now()
	templates, err := skill.LoadLibrary(cfg.Governance.TemplateDir)
	if err != nil {
		logger.Fatal("loading skill templates", zap.Error(err))
	}
	logger.Info("skill templates loaded",
		zap.Int("count", len(templates.All())),
		zap.Duration("elapsed", time.Since(tmplStart)),
	)

	// PostgreSQL for the skill collection and change-log archive.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	// Redis for usage counters and update notifications.
	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("connecting to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))

	policy := skill.Policy{
		DPSCeiling:           cfg.Governance.DPSCeiling,
		HPSCeiling:           cfg.Governance.HPSCeiling,
		BuffDurationCeiling:  cfg.Governance.BuffDurationCeiling,
		DamagePerCostCeiling: cfg.Governance.DamagePerCostCeiling,
	}

	engine := governance.NewEngine(governance.EngineConfig{
		Logger:               observability.Component(logger, "engine"),
		Store:                postgres.NewSkillStore(pool.DB()),
		Notifier:             redis.NewPublisher(redisClient, cfg.Redis.Channel),
		Usage:                redis.NewUsageStore(redisClient),
		Archive:              postgres.NewChangeLogArchive(pool.DB()),
		Templates:            templates,
		Policy:               policy,
		ChangeLogCapacity:    cfg.Governance.ChangeLogCapacity,
		DeleteUsageThreshold: cfg.Governance.DeleteUsageThreshold,
	})
	if err := engine.Start(ctx); err != nil {
		logger.Fatal("starting governance engine", zap.Error(err))
	}

	// Scripted balance checks are optional; a missing directory just
	// disables the suite.
	var checks *scripting.Runner
	if dir := cfg.Governance.CheckDir; dir != "" {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			checks = scripting.NewRunner(0, observability.Component(logger, "scripting"))
			if err := checks.LoadDir(dir); err != nil {
				logger.Fatal("loading balance checks", zap.Error(err))
			}
		} else {
			logger.Warn("check dir not found, scripted suite disabled",
				zap.String("dir", dir))
		}
	}

	testHarness := harness.New(policy, checks, 0, observability.Component(logger, "harness"))

	gin.SetMode(gin.ReleaseMode)
	api := adminapi.NewServer(engine, testHarness, observability.Component(logger, "adminapi"))
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("admin-http", &server.FuncService{
		StartFn: func() error {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	logger.Info("governance server ready", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("lifecycle error", zap.Error(err))
	}
	logger.Info("governance server stopped")
}
