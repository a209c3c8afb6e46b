package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/strumly/practice-engine/internal/models"
)

// StatsRepository handles user stats database operations.
type StatsRepository struct {
	db *DB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetOrCreate fetches a user's stats row, creating the default row if it
// does not exist yet.
func (r *StatsRepository) GetOrCreate(userID uint) (*models.UserStats, error) {
	return getOrCreateStats(r.db.DB, userID)
}

// Save persists the full stats row.
func (r *StatsRepository) Save(stats *models.UserStats) error {
	return r.db.Save(stats).Error
}

// ListAll returns every stats row, ordered by user for stable iteration.
// Used by the nightly badge sweep and the leaderboard.
func (r *StatsRepository) ListAll() ([]models.UserStats, error) {
	var all []models.UserStats
	err := r.db.Order("user_id ASC").Find(&all).Error
	return all, err
}

// getOrCreateStats is shared with the transactional unit of work so the
// lazily created row participates in the caller's transaction.
func getOrCreateStats(tx *gorm.DB, userID uint) (*models.UserStats, error) {
	var stats models.UserStats
	err := lockForUpdate(tx).Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.UserStats{UserID: userID, CurrentLevel: 1}
		if err := tx.Create(&stats).Error; err != nil {
			return nil, err
		}
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
