package models

import (
	"time"
)

// Sentiment score bounds for a practice session (1 = rough, 5 = great).
const (
	SentimentMin = 1
	SentimentMax = 5
)

// PracticeSession represents a single logged practice session.
// Immutable once created, except for the one-time XPEarned patch applied
// right after XP computation.
type PracticeSession struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"not null;index" json:"user_id"`
	User                User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ItemID              uint      `gorm:"index" json:"item_id"` // the lesson/piece practiced
	DurationMinutes     int       `gorm:"not null" json:"duration_minutes"`
	SentimentScore      int       `gorm:"not null" json:"sentiment_score"`
	ImprovementDetected bool      `gorm:"default:false" json:"improvement_detected"`
	Notes               string    `gorm:"type:text" json:"notes"`
	XPEarned            int       `gorm:"column:xp_earned;default:0" json:"xp_earned"`
	CreatedAt           time.Time `gorm:"index" json:"created_at"` // stored in the reference timezone (UTC)
}

// TableName specifies the table name for PracticeSession model.
func (PracticeSession) TableName() string {
	return "practice_sessions"
}
