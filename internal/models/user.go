// Package models defines domain models for the practice engagement engine.
package models

import (
	"time"
)

// User represents a member of the practice site.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null;size:255" json:"username"`
	Email     string    `gorm:"size:255" json:"email"`
	Timezone  string    `gorm:"size:64" json:"timezone"` // IANA name, e.g. "Europe/Paris"; empty means site default
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}
