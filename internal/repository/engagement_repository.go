package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/strumly/practice-engine/internal/models"
)

// EngagementRepository implements the session-logging unit of work: session
// insert, xp patch, and stats mutation commit or roll back together, with the
// user's stats row locked for the duration so concurrent logs for the same
// user serialize.
type EngagementRepository struct {
	db *DB
}

// NewEngagementRepository creates a new engagement repository.
func NewEngagementRepository(db *DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// LogSession persists the session, invokes apply with the (locked, lazily
// created) stats row so the caller can fold in XP/streak changes, writes the
// session's xp_earned patch, and saves the stats, all in one transaction.
func (r *EngagementRepository) LogSession(session *models.PracticeSession, apply func(stats *models.UserStats) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		stats, err := getOrCreateStats(tx, session.UserID)
		if err != nil {
			return fmt.Errorf("load stats: %w", err)
		}

		if err := apply(stats); err != nil {
			return err
		}

		if err := tx.Model(&models.PracticeSession{}).
			Where("id = ?", session.ID).
			Update("xp_earned", session.XPEarned).Error; err != nil {
			return fmt.Errorf("set session xp: %w", err)
		}

		if err := tx.Save(stats).Error; err != nil {
			return fmt.Errorf("save stats: %w", err)
		}
		return nil
	})
}

// UpdateStats runs apply against the locked stats row and saves the result.
// When apply returns a ledger entry it is appended in the same transaction.
// Used for stats mutations outside the session pipeline (shield purchase).
func (r *EngagementRepository) UpdateStats(userID uint, apply func(stats *models.UserStats) (*models.GemsTransaction, error)) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		stats, err := getOrCreateStats(tx, userID)
		if err != nil {
			return fmt.Errorf("load stats: %w", err)
		}
		entry, err := apply(stats)
		if err != nil {
			return err
		}
		if entry != nil {
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("append gems ledger: %w", err)
			}
		}
		return tx.Save(stats).Error
	})
}
