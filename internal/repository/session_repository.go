package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/strumly/practice-engine/internal/apperr"
	"github.com/strumly/practice-engine/internal/models"
)

// SessionRepository handles practice session database operations.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new practice session.
func (r *SessionRepository) Create(session *models.PracticeSession) error {
	return r.db.Create(session).Error
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id uint) (*models.PracticeSession, error) {
	var session models.PracticeSession
	err := r.db.First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("session", fmt.Sprint(id))
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SetXP applies the one-time xp_earned patch to a session.
func (r *SessionRepository) SetXP(sessionID uint, xp int) error {
	result := r.db.Model(&models.PracticeSession{}).
		Where("id = ?", sessionID).
		Update("xp_earned", xp)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("session", fmt.Sprint(sessionID))
	}
	return nil
}

// ListByUser retrieves a user's sessions ordered newest-first.
func (r *SessionRepository) ListByUser(userID uint, limit, offset int) ([]models.PracticeSession, error) {
	var sessions []models.PracticeSession
	q := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&sessions).Error
	return sessions, err
}

// CountByUser returns the number of sessions a user has logged.
func (r *SessionRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.PracticeSession{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
