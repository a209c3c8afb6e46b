package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/strumly/practice-engine/internal/apperr"
	"github.com/strumly/practice-engine/internal/models"
)

// BadgeRepository handles badge catalog and user badge database operations.
type BadgeRepository struct {
	db *DB
}

// NewBadgeRepository creates a new badge repository.
func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// Upsert creates or updates a badge definition keyed by badge_key.
// Seeding the catalog at startup is idempotent through this.
func (r *BadgeRepository) Upsert(badge *models.BadgeDefinition) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "badge_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "criteria_type", "criteria_value",
			"xp_reward", "gem_reward", "notify_enabled", "notify_key",
			"notify_title", "is_active", "display_order", "updated_at",
		}),
	}).Create(badge).Error
}

// GetByKey retrieves a badge definition by its key.
func (r *BadgeRepository) GetByKey(key string) (*models.BadgeDefinition, error) {
	var badge models.BadgeDefinition
	err := r.db.Where("badge_key = ?", key).First(&badge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("badge", key)
	}
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

// ListActive retrieves the active badge catalog in display order. The
// evaluator depends on this order being stable: rewards applied by earlier
// badges are visible to later ones within a single pass.
func (r *BadgeRepository) ListActive() ([]models.BadgeDefinition, error) {
	var badges []models.BadgeDefinition
	err := r.db.
		Where("is_active = ?", true).
		Order("display_order ASC, badge_key ASC").
		Find(&badges).Error
	return badges, err
}

// ListAll retrieves every badge definition, active or not.
func (r *BadgeRepository) ListAll() ([]models.BadgeDefinition, error) {
	var badges []models.BadgeDefinition
	err := r.db.Order("display_order ASC, badge_key ASC").Find(&badges).Error
	return badges, err
}

// Award inserts the (user, badge_key) pair if absent. Returns true when this
// call created the row, false when the badge was already held. Concurrent
// award attempts collapse to exactly one success via the unique index.
func (r *BadgeRepository) Award(userID uint, badgeKey string) (bool, error) {
	userBadge := models.UserBadge{
		UserID:   userID,
		BadgeKey: badgeKey,
		EarnedAt: time.Now().UTC(),
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_key"}},
		DoNothing: true,
	}).Create(&userBadge)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListUserBadges retrieves all badges earned by a user, newest first.
func (r *BadgeRepository) ListUserBadges(userID uint) ([]models.UserBadge, error) {
	var userBadges []models.UserBadge
	err := r.db.
		Where("user_id = ?", userID).
		Preload("Badge").
		Order("earned_at DESC").
		Find(&userBadges).Error
	return userBadges, err
}

// HasEarned checks if a user already holds a badge.
func (r *BadgeRepository) HasEarned(userID uint, badgeKey string) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_key = ?", userID, badgeKey).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountForUser returns the number of badges a user has earned.
func (r *BadgeRepository) CountForUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserBadge{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
