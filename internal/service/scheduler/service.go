// Package scheduler runs the nightly engagement maintenance: a full badge
// sweep (temporal criteria can become true without a new session) and a
// leaderboard cache rebuild.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/strumly/practice-engine/internal/config"
	prommetrics "github.com/strumly/practice-engine/internal/metrics"
	"github.com/strumly/practice-engine/internal/models"
	"github.com/strumly/practice-engine/pkg/logger"
)

// UserStore interface for enumerating users.
type UserStore interface {
	ListIDs() ([]uint, error)
}

// StatsStore interface for stats reads.
type StatsStore interface {
	GetOrCreate(userID uint) (*models.UserStats, error)
}

// BadgeEvaluator runs a badge pass for one user.
type BadgeEvaluator interface {
	EvaluateUser(ctx context.Context, userID uint, stats *models.UserStats) ([]models.BadgeDefinition, error)
}

// LeaderboardRebuilder refreshes the cached leaderboards.
type LeaderboardRebuilder interface {
	Rebuild(ctx context.Context) error
}

// Service owns the cron schedule.
type Service struct {
	cfg         *config.SchedulerConfig
	users       UserStore
	stats       StatsStore
	badges      BadgeEvaluator
	leaderboard LeaderboardRebuilder
	log         *logger.Logger
	cron        *cron.Cron
}

// NewService creates a scheduler service.
func NewService(
	cfg *config.SchedulerConfig,
	users UserStore,
	stats StatsStore,
	badges BadgeEvaluator,
	leaderboard LeaderboardRebuilder,
	log *logger.Logger,
) *Service {
	return &Service{
		cfg:         cfg,
		users:       users,
		stats:       stats,
		badges:      badges,
		leaderboard: leaderboard,
		log:         log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.cfg.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.cfg.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	cronExpr, err := buildCronExpression(s.cfg.Time)
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	if _, err := s.cron.AddFunc(cronExpr, func() {
		s.runNightly(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register nightly job: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}
	s.log.Info().
		Str("schedule", cronExpr).
		Str("timezone", s.cfg.Timezone).
		Str("next_run", nextRun).
		Msg("Scheduler started")
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression converts "HH:MM" into a daily cron expression.
func buildCronExpression(at string) (string, error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", at)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// runNightly executes the badge sweep followed by the leaderboard rebuild.
func (s *Service) runNightly(ctx context.Context) {
	s.runBadgeSweep(ctx)
	s.runLeaderboardRebuild(ctx)
}

// RunBadgeSweep evaluates the full catalog for every user. Exported so
// operators can trigger it out of schedule.
func (s *Service) RunBadgeSweep(ctx context.Context) (int, error) {
	ids, err := s.users.ListIDs()
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	awarded := 0
	for _, userID := range ids {
		stats, err := s.stats.GetOrCreate(userID)
		if err != nil {
			s.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to load stats for badge sweep")
			continue
		}
		newBadges, err := s.badges.EvaluateUser(ctx, userID, stats)
		if err != nil {
			s.log.Error().Err(err).Uint("user_id", userID).Msg("Badge sweep evaluation failed")
			continue
		}
		awarded += len(newBadges)
	}
	return awarded, nil
}

func (s *Service) runBadgeSweep(ctx context.Context) {
	start := time.Now()
	s.log.Info().Msg("Running nightly badge sweep")

	awarded, err := s.RunBadgeSweep(ctx)
	status := "success"
	if err != nil {
		status = "error"
		s.log.Error().Err(err).Msg("Nightly badge sweep failed")
	}
	prommetrics.ObserveSchedulerJob("badge_sweep", status, time.Since(start))

	s.log.Info().
		Int("badges_awarded", awarded).
		Dur("duration", time.Since(start)).
		Msg("Nightly badge sweep complete")
}

func (s *Service) runLeaderboardRebuild(ctx context.Context) {
	if s.leaderboard == nil {
		return
	}
	start := time.Now()
	status := "success"
	if err := s.leaderboard.Rebuild(ctx); err != nil {
		status = "error"
		s.log.Error().Err(err).Msg("Leaderboard rebuild failed")
	}
	prommetrics.ObserveSchedulerJob("leaderboard_rebuild", status, time.Since(start))
}
