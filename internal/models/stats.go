package models

import (
	"time"
)

// MaxStreakShields is the shield inventory cap.
const MaxStreakShields = 3

// UserStats holds the denormalized engagement counters for a user.
// One row per user, created lazily on the first logged session.
type UserStats struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User              User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TotalXP           int       `gorm:"column:total_xp;default:0" json:"total_xp"`
	CurrentLevel      int       `gorm:"default:1" json:"current_level"`
	CurrentStreak     int       `gorm:"default:0" json:"current_streak"`
	LongestStreak     int       `gorm:"default:0" json:"longest_streak"`
	LastPracticeDate  string    `gorm:"size:10" json:"last_practice_date"` // "YYYY-MM-DD" in the user's timezone; empty until first credit
	StreakShieldCount int       `gorm:"default:0" json:"streak_shield_count"`
	GemsBalance       int       `gorm:"default:0" json:"gems_balance"`
	BadgesEarned      int       `gorm:"default:0" json:"badges_earned"`
	TotalSessions     int       `gorm:"default:0" json:"total_sessions"`
	TotalMinutes      int       `gorm:"default:0" json:"total_minutes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name for UserStats model.
func (UserStats) TableName() string {
	return "user_stats"
}

// GemsTransaction type constants.
const (
	GemsTxEarned = "earned"
	GemsTxSpent  = "spent"
)

// GemsTransaction is one row of the append-only gems ledger.
// The running gems_balance on UserStats should reconcile to the ledger sum;
// reconciliation is not enforced at write time.
type GemsTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Type        string    `gorm:"size:16;not null" json:"type"` // 'earned' or 'spent'
	Amount      int       `gorm:"not null" json:"amount"`
	Reference   string    `gorm:"size:255" json:"reference"` // e.g. "badge:first_steps", "shield_purchase"
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for GemsTransaction model.
func (GemsTransaction) TableName() string {
	return "gems_transactions"
}
