// Command server runs the practice engagement engine: the session-logging
// API, the nightly maintenance scheduler, and the metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strumly/practice-engine/internal/api/dashboard"
	"github.com/strumly/practice-engine/internal/cache"
	"github.com/strumly/practice-engine/internal/config"
	"github.com/strumly/practice-engine/internal/repository"
	"github.com/strumly/practice-engine/internal/service/badges"
	"github.com/strumly/practice-engine/internal/service/engagement"
	"github.com/strumly/practice-engine/internal/service/leaderboard"
	"github.com/strumly/practice-engine/internal/service/scheduler"
	"github.com/strumly/practice-engine/internal/service/streak"
	"github.com/strumly/practice-engine/internal/webhook"
	"github.com/strumly/practice-engine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.Get()

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	sessionRepo := repository.NewSessionRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	gemsRepo := repository.NewGemsRepository(db)
	userRepo := repository.NewUserRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)

	engine := streak.NewEngine(streak.Config{
		GraceWindowHours: cfg.Engagement.GraceWindowHours,
		DefaultTimezone:  cfg.Engagement.DefaultTimezone,
	})
	evaluator := badges.NewEvaluator(cfg.Engagement.LongSessionMinutes)
	sink := webhook.NewClient(&cfg.Webhook, log)

	badgeService := badges.NewService(
		badgeRepo, sessionRepo, engagementRepo, userRepo,
		engine, sink, evaluator, cfg.Engagement.HistoryWindowLimit, log,
	)
	if cfg.Badges.CatalogFile != "" {
		if err := badgeService.SeedCatalog(cfg.Badges.CatalogFile); err != nil {
			return err
		}
	}

	engagementService := engagement.NewService(
		engagementRepo, sessionRepo, statsRepo, gemsRepo, userRepo,
		badgeService, engine,
		engagement.Config{
			ShieldGemCost: cfg.Engagement.ShieldGemCost,
			HistoryLimit:  cfg.Engagement.HistoryWindowLimit,
		},
		log,
	)

	var leaderboardCache cache.Cache
	if cfg.Database.Redis.Host != "" {
		redisCache, err := cache.NewRedisCache(&cfg.Database.Redis, log)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		leaderboardCache = redisCache
	} else {
		log.Warn().Msg("Redis not configured, leaderboard cache disabled")
	}

	leaderboardService := leaderboard.NewService(
		statsRepo, userRepo, leaderboardCache,
		time.Duration(cfg.Engagement.LeaderboardCacheTTL)*time.Second, log,
	)

	sched := scheduler.NewService(&cfg.Scheduler, userRepo, statsRepo, badgeService, leaderboardService, log)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := dashboard.NewHandler(engagementService, badgeService, leaderboardService, log)
	handler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
