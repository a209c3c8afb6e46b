package models

import (
	"fmt"
	"time"
)

// CriteriaType identifies how a badge's criteria_value is interpreted.
// The set is closed: the evaluator switches exhaustively over these values
// and rejects anything else at evaluation time.
type CriteriaType string

// Supported badge criteria.
const (
	CriteriaTotalXP          CriteriaType = "total_xp"           // total_xp >= value
	CriteriaLevelReached     CriteriaType = "level_reached"      // current_level >= value
	CriteriaPracticeSessions CriteriaType = "practice_sessions"  // total_sessions >= value
	CriteriaTotalTime        CriteriaType = "total_time"         // any single session duration >= value
	CriteriaLongSession      CriteriaType = "long_session"       // alias of total_time (legacy key)
	CriteriaImprovementCount CriteriaType = "improvement_count"  // sessions with improvement >= value
	CriteriaStreak           CriteriaType = "streak"             // current_streak >= value
	CriteriaLongSessionCount CriteriaType = "long_session_count" // sessions of >=30min >= value
	CriteriaComeback         CriteriaType = "comeback"           // 3+ sessions within 7 days after a >=7 day gap
	CriteriaTimeOfDay        CriteriaType = "time_of_day"        // value 1 = early bird, 2 = night owl
)

// Valid reports whether the criteria type is one of the supported variants.
func (c CriteriaType) Valid() bool {
	switch c {
	case CriteriaTotalXP, CriteriaLevelReached, CriteriaPracticeSessions,
		CriteriaTotalTime, CriteriaLongSession, CriteriaImprovementCount,
		CriteriaStreak, CriteriaLongSessionCount, CriteriaComeback,
		CriteriaTimeOfDay:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (c CriteriaType) String() string {
	return string(c)
}

// BadgeDefinition represents a badge in the catalog.
type BadgeDefinition struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	BadgeKey      string       `gorm:"uniqueIndex;not null;size:100" json:"badge_key"`
	Name          string       `gorm:"not null;size:255" json:"name"`
	Description   string       `gorm:"type:text" json:"description"`
	CriteriaType  CriteriaType `gorm:"size:50;not null" json:"criteria_type"`
	CriteriaValue int          `gorm:"not null" json:"criteria_value"`
	XPReward      int          `gorm:"column:xp_reward;default:0" json:"xp_reward"`
	GemReward     int          `gorm:"default:0" json:"gem_reward"`
	NotifyEnabled bool         `gorm:"default:false" json:"notify_enabled"`
	NotifyKey     string       `gorm:"size:100" json:"notify_key"`
	NotifyTitle   string       `gorm:"size:255" json:"notify_title"`
	IsActive      bool         `gorm:"default:true;index" json:"is_active"`
	DisplayOrder  int          `gorm:"default:0" json:"display_order"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName specifies the table name for BadgeDefinition model.
func (BadgeDefinition) TableName() string {
	return "badge_definitions"
}

// Validate checks the definition is awardable.
func (b *BadgeDefinition) Validate() error {
	if b.BadgeKey == "" {
		return fmt.Errorf("badge_key is required")
	}
	if !b.CriteriaType.Valid() {
		return fmt.Errorf("unsupported criteria type %q for badge %q", b.CriteriaType, b.BadgeKey)
	}
	if b.XPReward < 0 || b.GemReward < 0 {
		return fmt.Errorf("badge %q has negative reward", b.BadgeKey)
	}
	return nil
}

// UserBadge records a badge earned by a user. One row per (user, badge_key);
// never updated or deleted by the engine.
type UserBadge struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	UserID   uint            `gorm:"not null;uniqueIndex:idx_user_badge" json:"user_id"`
	User     User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BadgeKey string          `gorm:"size:100;not null;uniqueIndex:idx_user_badge" json:"badge_key"`
	Badge    BadgeDefinition `gorm:"foreignKey:BadgeKey;references:BadgeKey" json:"badge,omitempty"`
	EarnedAt time.Time       `gorm:"not null" json:"earned_at"`
}

// TableName specifies the table name for UserBadge model.
func (UserBadge) TableName() string {
	return "user_badges"
}
