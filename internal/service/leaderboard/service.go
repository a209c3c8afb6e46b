// Package leaderboard provides engagement rankings over user stats.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/strumly/practice-engine/internal/cache"
	"github.com/strumly/practice-engine/internal/models"
	"github.com/strumly/practice-engine/internal/repository"
	"github.com/strumly/practice-engine/pkg/logger"
)

// Supported ranking metrics.
const (
	MetricTotalXP       = "total_xp"
	MetricCurrentStreak = "current_streak"
	MetricBadgesEarned  = "badges_earned"
	MetricTotalMinutes  = "total_minutes"
)

// StatsStore interface for stats reads.
type StatsStore interface {
	ListAll() ([]models.UserStats, error)
}

// UserStore interface for user lookups.
type UserStore interface {
	GetByID(id uint) (*models.User, error)
}

// Entry represents a single row in a leaderboard.
type Entry struct {
	UserID        uint   `json:"user_id"`
	Username      string `json:"username"`
	TotalXP       int    `json:"total_xp"`
	CurrentLevel  int    `json:"current_level"`
	CurrentStreak int    `json:"current_streak"`
	BadgesEarned  int    `json:"badges_earned"`
	TotalMinutes  int    `json:"total_minutes"`
	Rank          int    `json:"rank"`
}

// Service builds leaderboards, caching the serialized result in Redis.
type Service struct {
	statsStore StatsStore
	userStore  UserStore
	cache      cache.Cache
	cacheTTL   time.Duration
	log        *logger.Logger
}

// NewService creates a leaderboard service from concrete repositories.
func NewService(statsRepo *repository.StatsRepository, userRepo *repository.UserRepository, c cache.Cache, cacheTTL time.Duration, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(statsRepo, userRepo, c, cacheTTL, log)
}

// NewServiceWithInterfaces creates a leaderboard service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(statsStore StatsStore, userStore UserStore, c cache.Cache, cacheTTL time.Duration, log *logger.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{
		statsStore: statsStore,
		userStore:  userStore,
		cache:      c,
		cacheTTL:   cacheTTL,
		log:        log,
	}
}

// ValidMetric reports whether the ranking metric is supported.
func ValidMetric(metric string) bool {
	switch metric {
	case MetricTotalXP, MetricCurrentStreak, MetricBadgesEarned, MetricTotalMinutes:
		return true
	}
	return false
}

// Get returns the top limit entries ranked by metric, served from cache when
// fresh. Cache failures degrade to a direct build, never to an error.
func (s *Service) Get(ctx context.Context, metric string, limit int) ([]Entry, error) {
	if !ValidMetric(metric) {
		return nil, fmt.Errorf("unsupported leaderboard metric: %s", metric)
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	key := cacheKey(metric, limit)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var entries []Entry
			if err := json.Unmarshal([]byte(cached), &entries); err == nil {
				return entries, nil
			}
		}
	}

	entries, err := s.build(metric, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(entries); err == nil {
			if err := s.cache.Set(ctx, key, string(payload), s.cacheTTL); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache leaderboard")
			}
		}
	}
	return entries, nil
}

// Rebuild recomputes and re-caches the standard leaderboards. Called by the
// nightly scheduler.
func (s *Service) Rebuild(ctx context.Context) error {
	for _, metric := range []string{MetricTotalXP, MetricCurrentStreak, MetricBadgesEarned, MetricTotalMinutes} {
		entries, err := s.build(metric, 100)
		if err != nil {
			return fmt.Errorf("failed to rebuild %s leaderboard: %w", metric, err)
		}
		if s.cache == nil {
			continue
		}
		for _, limit := range []int{10, 25, 100} {
			top := entries
			if len(top) > limit {
				top = top[:limit]
			}
			payload, err := json.Marshal(top)
			if err != nil {
				return fmt.Errorf("failed to marshal %s leaderboard: %w", metric, err)
			}
			if err := s.cache.Set(ctx, cacheKey(metric, limit), string(payload), s.cacheTTL); err != nil {
				s.log.Warn().Err(err).Str("metric", metric).Msg("Failed to cache rebuilt leaderboard")
			}
		}
	}
	return nil
}

func (s *Service) build(metric string, limit int) ([]Entry, error) {
	all, err := s.statsStore.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list stats: %w", err)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return metricValue(&all[i], metric) > metricValue(&all[j], metric)
	})

	if len(all) > limit {
		all = all[:limit]
	}

	entries := make([]Entry, 0, len(all))
	for i := range all {
		st := all[i]
		entry := Entry{
			UserID:        st.UserID,
			TotalXP:       st.TotalXP,
			CurrentLevel:  st.CurrentLevel,
			CurrentStreak: st.CurrentStreak,
			BadgesEarned:  st.BadgesEarned,
			TotalMinutes:  st.TotalMinutes,
			Rank:          i + 1,
		}
		if user, err := s.userStore.GetByID(st.UserID); err == nil && user != nil {
			entry.Username = user.Username
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func metricValue(st *models.UserStats, metric string) int {
	switch metric {
	case MetricCurrentStreak:
		return st.CurrentStreak
	case MetricBadgesEarned:
		return st.BadgesEarned
	case MetricTotalMinutes:
		return st.TotalMinutes
	default:
		return st.TotalXP
	}
}

func cacheKey(metric string, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%d", metric, limit)
}
