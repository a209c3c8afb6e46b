// Package badges provides badge evaluation and awarding.
package badges

import (
	"context"
	"fmt"
	"time"

	prommetrics "github.com/strumly/practice-engine/internal/metrics"
	"github.com/strumly/practice-engine/internal/models"
	"github.com/strumly/practice-engine/internal/repository"
	"github.com/strumly/practice-engine/internal/service/xp"
	"github.com/strumly/practice-engine/pkg/logger"
)

// BadgeStore interface for badge catalog and user badge operations.
type BadgeStore interface {
	ListActive() ([]models.BadgeDefinition, error)
	ListUserBadges(userID uint) ([]models.UserBadge, error)
	Award(userID uint, badgeKey string) (bool, error)
	Upsert(badge *models.BadgeDefinition) error
}

// SessionStore interface for session history lookups.
type SessionStore interface {
	ListByUser(userID uint, limit, offset int) ([]models.PracticeSession, error)
}

// RewardStore applies award rewards to the stats row under the same row
// lock the session pipeline takes, appending the ledger entry in the same
// transaction. Satisfied by the engagement repository.
type RewardStore interface {
	UpdateStats(userID uint, apply func(stats *models.UserStats) (*models.GemsTransaction, error)) error
}

// TimezoneStore interface for resolving a user's timezone name.
type TimezoneStore interface {
	GetTimezone(userID uint) (string, error)
}

// Locator resolves an IANA timezone name to a location, applying the site
// default fallback. Satisfied by the streak engine.
type Locator interface {
	Location(tzName string) *time.Location
}

// Notifier is the achievement event sink. Best effort: failures are logged
// by the caller and never block an award.
type Notifier interface {
	Notify(ctx context.Context, userID uint, eventKey, title string, value int) error
}

// Service evaluates the badge catalog and applies awards.
type Service struct {
	badgeStore   BadgeStore
	sessionStore SessionStore
	rewards      RewardStore
	tzStore      TimezoneStore
	locator      Locator
	notifier     Notifier
	evaluator    *Evaluator
	historyLimit int
	log          *logger.Logger
}

// NewService creates a badge service from concrete repositories.
func NewService(
	badgeRepo *repository.BadgeRepository,
	sessionRepo *repository.SessionRepository,
	engagementRepo *repository.EngagementRepository,
	userRepo *repository.UserRepository,
	locator Locator,
	notifier Notifier,
	evaluator *Evaluator,
	historyLimit int,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(badgeRepo, sessionRepo, engagementRepo, userRepo, locator, notifier, evaluator, historyLimit, log)
}

// NewServiceWithInterfaces creates a badge service with interface
// dependencies (useful for testing).
func NewServiceWithInterfaces(
	badgeStore BadgeStore,
	sessionStore SessionStore,
	rewards RewardStore,
	tzStore TimezoneStore,
	locator Locator,
	notifier Notifier,
	evaluator *Evaluator,
	historyLimit int,
	log *logger.Logger,
) *Service {
	if historyLimit <= 0 {
		historyLimit = 500
	}
	return &Service{
		badgeStore:   badgeStore,
		sessionStore: sessionStore,
		rewards:      rewards,
		tzStore:      tzStore,
		locator:      locator,
		notifier:     notifier,
		evaluator:    evaluator,
		historyLimit: historyLimit,
		log:          log,
	}
}

// EvaluateUser runs one badge pass for a user against the supplied stats
// snapshot and returns the newly awarded badges.
//
// The snapshot is mutated in place as awards land, so a badge later in
// catalog order sees the XP and gems granted by an earlier one within the
// same pass. That ordering is a contract, not an accident: a total_xp badge
// can be pushed over its threshold by the xp_reward of a badge before it.
func (s *Service) EvaluateUser(ctx context.Context, userID uint, stats *models.UserStats) ([]models.BadgeDefinition, error) {
	catalog, err := s.badgeStore.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list badge catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, nil
	}

	earned, err := s.earnedSet(userID)
	if err != nil {
		return nil, err
	}

	history, err := s.sessionStore.ListByUser(userID, s.historyLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}

	loc := s.userLocation(userID)

	var newlyEarned []models.BadgeDefinition
	for i := range catalog {
		badge := catalog[i]
		if earned[badge.BadgeKey] {
			continue
		}

		qualifies, err := s.evaluator.Meets(&badge, stats, history, loc)
		if err != nil {
			s.log.Error().
				Err(err).
				Uint("user_id", userID).
				Str("badge", badge.BadgeKey).
				Msg("Failed to evaluate badge")
			continue
		}
		if !qualifies {
			continue
		}

		awarded, err := s.award(ctx, userID, &badge, stats)
		if err != nil {
			s.log.Error().
				Err(err).
				Uint("user_id", userID).
				Str("badge", badge.BadgeKey).
				Msg("Failed to award badge")
			continue
		}
		if awarded {
			newlyEarned = append(newlyEarned, badge)
		}
	}

	return newlyEarned, nil
}

// award creates the user badge row and applies the badge's rewards. Returns
// false without error when another caller won the insert race.
//
// Rewards are folded into the stats row under the same row lock the session
// pipeline takes. The snapshot may be stale by the time the award lands, and
// writing it back directly would erase anything a concurrent request
// committed in the meantime. The refreshed row replaces the snapshot so later
// badges in the pass see both the rewards and those concurrent writes.
func (s *Service) award(ctx context.Context, userID uint, badge *models.BadgeDefinition, stats *models.UserStats) (bool, error) {
	created, err := s.badgeStore.Award(userID, badge.BadgeKey)
	if err != nil {
		return false, fmt.Errorf("failed to insert user badge: %w", err)
	}
	if !created {
		return false, nil
	}

	var fresh models.UserStats
	err = s.rewards.UpdateStats(userID, func(row *models.UserStats) (*models.GemsTransaction, error) {
		row.TotalXP += badge.XPReward
		row.CurrentLevel = xp.Level(row.TotalXP)
		row.GemsBalance += badge.GemReward
		row.BadgesEarned++
		fresh = *row
		if badge.GemReward <= 0 {
			return nil, nil
		}
		return &models.GemsTransaction{
			UserID:      userID,
			Type:        models.GemsTxEarned,
			Amount:      badge.GemReward,
			Reference:   "badge:" + badge.BadgeKey,
			Description: badge.Name,
		}, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply badge rewards: %w", err)
	}
	*stats = fresh

	prommetrics.RecordBadgeAwarded(badge.BadgeKey)
	if badge.XPReward > 0 {
		prommetrics.RecordXPAwarded("badge", badge.XPReward)
	}
	if badge.GemReward > 0 {
		prommetrics.RecordGems(models.GemsTxEarned, badge.GemReward)
	}

	s.log.Info().
		Uint("user_id", userID).
		Str("badge", badge.BadgeKey).
		Int("xp_reward", badge.XPReward).
		Int("gem_reward", badge.GemReward).
		Msg("Badge awarded")

	if badge.NotifyEnabled && s.notifier != nil {
		if err := s.notifier.Notify(ctx, userID, badge.NotifyKey, badge.NotifyTitle, badge.CriteriaValue); err != nil {
			prommetrics.NotificationFailuresTotal.Inc()
			s.log.Warn().
				Err(err).
				Uint("user_id", userID).
				Str("badge", badge.BadgeKey).
				Msg("Achievement notification failed")
		}
	}

	return true, nil
}

// ListUserBadges retrieves all badges earned by a user.
func (s *Service) ListUserBadges(userID uint) ([]models.UserBadge, error) {
	return s.badgeStore.ListUserBadges(userID)
}

// Catalog retrieves the active badge catalog in display order.
func (s *Service) Catalog() ([]models.BadgeDefinition, error) {
	return s.badgeStore.ListActive()
}

func (s *Service) earnedSet(userID uint) (map[string]bool, error) {
	userBadges, err := s.badgeStore.ListUserBadges(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	earned := make(map[string]bool, len(userBadges))
	for _, ub := range userBadges {
		earned[ub.BadgeKey] = true
	}
	return earned, nil
}

func (s *Service) userLocation(userID uint) *time.Location {
	tz, err := s.tzStore.GetTimezone(userID)
	if err != nil {
		s.log.Debug().Err(err).Uint("user_id", userID).Msg("Timezone lookup failed, using default")
		tz = ""
	}
	return s.locator.Location(tz)
}
