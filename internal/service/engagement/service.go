// Package engagement orchestrates the "log a practice session" pipeline:
// XP computation, stats update, streak crediting, and the badge pass, in
// that order.
package engagement

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/strumly/practice-engine/internal/apperr"
	prommetrics "github.com/strumly/practice-engine/internal/metrics"
	"github.com/strumly/practice-engine/internal/models"
	"github.com/strumly/practice-engine/internal/repository"
	"github.com/strumly/practice-engine/internal/service/streak"
	"github.com/strumly/practice-engine/internal/service/xp"
	"github.com/strumly/practice-engine/pkg/logger"
)

// Store is the transactional unit of work for session logging and stats
// mutation. Session insert, xp patch, and stats save commit together; the
// stats row is locked for the duration (per-user serialization).
type Store interface {
	LogSession(session *models.PracticeSession, apply func(stats *models.UserStats) error) error
	UpdateStats(userID uint, apply func(stats *models.UserStats) (*models.GemsTransaction, error)) error
}

// SessionStore interface for session history lookups.
type SessionStore interface {
	ListByUser(userID uint, limit, offset int) ([]models.PracticeSession, error)
}

// StatsStore interface for stats reads.
type StatsStore interface {
	GetOrCreate(userID uint) (*models.UserStats, error)
}

// GemsStore interface for gems ledger reads.
type GemsStore interface {
	ListByUser(userID uint) ([]models.GemsTransaction, error)
}

// TimezoneStore interface for resolving a user's timezone name.
type TimezoneStore interface {
	GetTimezone(userID uint) (string, error)
}

// BadgeEvaluator runs a badge pass for a user against a stats snapshot.
type BadgeEvaluator interface {
	EvaluateUser(ctx context.Context, userID uint, stats *models.UserStats) ([]models.BadgeDefinition, error)
}

// Config holds the orchestrator tunables.
type Config struct {
	ShieldGemCost int
	HistoryLimit  int
}

// SessionInput is the user-supplied session facts.
type SessionInput struct {
	ItemID              uint   `json:"item_id"`
	DurationMinutes     int    `json:"duration_minutes"`
	SentimentScore      int    `json:"sentiment_score"`
	ImprovementDetected bool   `json:"improvement_detected"`
	Notes               string `json:"notes"`
}

// Result is returned to the caller of LogSession.
type Result struct {
	SessionID uint                     `json:"session_id"`
	XPEarned  int                      `json:"xp_earned"`
	TotalXP   int                      `json:"total_xp"`
	Level     int                      `json:"level"`
	LevelUp   *xp.LevelUp              `json:"level_up,omitempty"`
	Streak    streak.Result            `json:"streak"`
	NewBadges []models.BadgeDefinition `json:"new_badges,omitempty"`
}

// Service runs the engagement pipeline.
type Service struct {
	store        Store
	sessionStore SessionStore
	statsStore   StatsStore
	gemsStore    GemsStore
	tzStore      TimezoneStore
	badges       BadgeEvaluator
	engine       *streak.Engine
	cfg          Config
	log          *logger.Logger
	now          func() time.Time
}

// NewService creates an engagement service from concrete repositories.
func NewService(
	engagementRepo *repository.EngagementRepository,
	sessionRepo *repository.SessionRepository,
	statsRepo *repository.StatsRepository,
	gemsRepo *repository.GemsRepository,
	userRepo *repository.UserRepository,
	badgeEvaluator BadgeEvaluator,
	engine *streak.Engine,
	cfg Config,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(engagementRepo, sessionRepo, statsRepo, gemsRepo, userRepo, badgeEvaluator, engine, cfg, log)
}

// NewServiceWithInterfaces creates an engagement service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	store Store,
	sessionStore SessionStore,
	statsStore StatsStore,
	gemsStore GemsStore,
	tzStore TimezoneStore,
	badgeEvaluator BadgeEvaluator,
	engine *streak.Engine,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 500
	}
	if cfg.ShieldGemCost <= 0 {
		cfg.ShieldGemCost = 50
	}
	return &Service{
		store:        store,
		sessionStore: sessionStore,
		statsStore:   statsStore,
		gemsStore:    gemsStore,
		tzStore:      tzStore,
		badges:       badgeEvaluator,
		engine:       engine,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// LogSession runs the full pipeline for one practice session. Validation
// failures and the session/stats write are fatal to the call; a failed badge
// pass is logged and surfaced only through the (shorter) result.
func (s *Service) LogSession(ctx context.Context, userID uint, input SessionInput) (*Result, error) {
	if err := xp.ValidateSession(input.DurationMinutes, input.SentimentScore); err != nil {
		return nil, err
	}

	points, err := xp.ComputeXP(input.DurationMinutes, input.SentimentScore, input.ImprovementDetected)
	if err != nil {
		return nil, err
	}

	// History is loaded before the insert so the streak engine sees only
	// previous sessions; the trigger session is represented by now.
	history, err := s.sessionStore.ListByUser(userID, s.cfg.HistoryLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	timestamps := make([]time.Time, len(history))
	for i := range history {
		timestamps[i] = history[i].CreatedAt
	}

	loc := s.userLocation(userID)
	now := s.now()

	session := &models.PracticeSession{
		UserID:              userID,
		ItemID:              input.ItemID,
		DurationMinutes:     input.DurationMinutes,
		SentimentScore:      input.SentimentScore,
		ImprovementDetected: input.ImprovementDetected,
		Notes:               input.Notes,
		XPEarned:            points,
		CreatedAt:           now.UTC(),
	}

	result := &Result{XPEarned: points}
	var snapshot *models.UserStats

	err = s.store.LogSession(session, func(stats *models.UserStats) error {
		oldXP := stats.TotalXP

		stats.TotalXP += points
		stats.CurrentLevel = xp.Level(stats.TotalXP)
		stats.TotalSessions++
		stats.TotalMinutes += input.DurationMinutes

		if lu, leveled := xp.DetectLevelUp(oldXP, stats.TotalXP); leveled {
			result.LevelUp = &lu
		}

		state := streak.State{
			CurrentStreak:     stats.CurrentStreak,
			LongestStreak:     stats.LongestStreak,
			StreakShieldCount: stats.StreakShieldCount,
			LastPracticeDate:  stats.LastPracticeDate,
		}
		state, result.Streak = s.engine.Advance(state, timestamps, now, loc)
		stats.CurrentStreak = state.CurrentStreak
		stats.LongestStreak = state.LongestStreak
		stats.StreakShieldCount = state.StreakShieldCount
		stats.LastPracticeDate = state.LastPracticeDate

		snapshot = stats
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to log session: %w", err)
	}

	result.SessionID = session.ID
	result.TotalXP = snapshot.TotalXP
	result.Level = snapshot.CurrentLevel

	prommetrics.RecordSessionLogged(strconv.Itoa(input.SentimentScore), input.DurationMinutes)
	prommetrics.RecordXPAwarded("session", points)
	if result.LevelUp != nil {
		prommetrics.LevelUpsTotal.Inc()
	}
	s.recordStreakMetrics(result.Streak)

	// Badge evaluation runs after the session is durable. Its failure never
	// fails the logging action.
	if s.badges != nil {
		newBadges, err := s.badges.EvaluateUser(ctx, userID, snapshot)
		if err != nil {
			s.log.Error().
				Err(err).
				Uint("user_id", userID).
				Msg("Badge evaluation failed after session log")
		} else {
			result.NewBadges = newBadges
			result.TotalXP = snapshot.TotalXP
			result.Level = snapshot.CurrentLevel
		}
	}

	s.log.Info().
		Uint("user_id", userID).
		Uint("session_id", session.ID).
		Int("xp", points).
		Int("streak", result.Streak.NewStreak).
		Int("new_badges", len(result.NewBadges)).
		Msg("Practice session logged")

	return result, nil
}

// GetStats returns the user's stats row, creating the default row if absent.
func (s *Service) GetStats(userID uint) (*models.UserStats, error) {
	return s.statsStore.GetOrCreate(userID)
}

// ListSessions returns a user's session history, newest first.
func (s *Service) ListSessions(userID uint, limit, offset int) ([]models.PracticeSession, error) {
	return s.sessionStore.ListByUser(userID, limit, offset)
}

// ListGems returns the user's gems ledger, newest first.
func (s *Service) ListGems(userID uint) ([]models.GemsTransaction, error) {
	return s.gemsStore.ListByUser(userID)
}

// PurchaseShield converts gems into one streak shield, capped at the shield
// inventory limit. The balance change and ledger entry commit together.
func (s *Service) PurchaseShield(_ context.Context, userID uint) (*models.UserStats, error) {
	var snapshot *models.UserStats
	err := s.store.UpdateStats(userID, func(stats *models.UserStats) (*models.GemsTransaction, error) {
		if stats.StreakShieldCount >= models.MaxStreakShields {
			return nil, apperr.Validation("streak_shield_count",
				fmt.Sprintf("already at maximum of %d", models.MaxStreakShields))
		}
		if stats.GemsBalance < s.cfg.ShieldGemCost {
			return nil, apperr.Validation("gems_balance",
				fmt.Sprintf("need %d gems, have %d", s.cfg.ShieldGemCost, stats.GemsBalance))
		}
		stats.GemsBalance -= s.cfg.ShieldGemCost
		stats.StreakShieldCount++
		snapshot = stats
		return &models.GemsTransaction{
			UserID:      userID,
			Type:        models.GemsTxSpent,
			Amount:      s.cfg.ShieldGemCost,
			Reference:   "shield_purchase",
			Description: "Streak shield purchase",
		}, nil
	})
	if err != nil {
		return nil, err
	}

	prommetrics.ShieldsPurchasedTotal.Inc()
	prommetrics.RecordGems(models.GemsTxSpent, s.cfg.ShieldGemCost)
	s.log.Info().
		Uint("user_id", userID).
		Int("shields", snapshot.StreakShieldCount).
		Int("gems_balance", snapshot.GemsBalance).
		Msg("Streak shield purchased")
	return snapshot, nil
}

func (s *Service) recordStreakMetrics(r streak.Result) {
	if !r.StreakUpdated {
		return
	}
	switch r.Rule {
	case "broken":
		prommetrics.StreaksBrokenTotal.Inc()
	case "shield_absorb":
		prommetrics.ShieldsConsumedTotal.Inc()
		prommetrics.StreaksExtendedTotal.Inc()
	default:
		prommetrics.StreaksExtendedTotal.Inc()
	}
}

func (s *Service) userLocation(userID uint) *time.Location {
	tz, err := s.tzStore.GetTimezone(userID)
	if err != nil {
		s.log.Debug().Err(err).Uint("user_id", userID).Msg("Timezone lookup failed, using default")
		tz = ""
	}
	return s.engine.Location(tz)
}
