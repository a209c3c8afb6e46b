package repository

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/strumly/practice-engine/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// Enable foreign key constraints (SQLite default is off)
	gormDB.Exec("PRAGMA foreign_keys = ON")

	db := &DB{gormDB}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}

	return db
}

// createTestUser creates a test user in the database.
func createTestUser(t *testing.T, db *DB, username, timezone string) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Timezone: timezone,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// createTestSession creates a practice session at a given time.
func createTestSession(t *testing.T, repo *SessionRepository, userID uint, minutes int, createdAt time.Time) *models.PracticeSession {
	t.Helper()

	session := &models.PracticeSession{
		UserID:          userID,
		DurationMinutes: minutes,
		SentimentScore:  3,
		CreatedAt:       createdAt,
	}
	if err := repo.Create(session); err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return session
}

// createTestBadge creates a badge definition in the catalog.
func createTestBadge(t *testing.T, repo *BadgeRepository, key string, order int) *models.BadgeDefinition {
	t.Helper()

	badge := &models.BadgeDefinition{
		BadgeKey:      key,
		Name:          key,
		CriteriaType:  models.CriteriaPracticeSessions,
		CriteriaValue: 1,
		IsActive:      true,
		DisplayOrder:  order,
	}
	if err := repo.Upsert(badge); err != nil {
		t.Fatalf("Failed to create test badge: %v", err)
	}
	return badge
}
