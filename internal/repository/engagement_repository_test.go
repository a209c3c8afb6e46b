package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/strumly/practice-engine/internal/models"
)

func TestEngagementRepository_LogSession_UnitOfWork(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEngagementRepository(db)
	statsRepo := NewStatsRepository(db)
	sessionRepo := NewSessionRepository(db)
	user := createTestUser(t, db, "alice", "UTC")

	session := &models.PracticeSession{
		UserID:          user.ID,
		DurationMinutes: 20,
		SentimentScore:  4,
		XPEarned:        33,
		CreatedAt:       time.Now().UTC(),
	}

	err := repo.LogSession(session, func(stats *models.UserStats) error {
		stats.TotalXP += 33
		stats.TotalSessions++
		stats.TotalMinutes += 20
		stats.CurrentStreak = 1
		stats.LastPracticeDate = "2026-03-10"
		return nil
	})
	if err != nil {
		t.Fatalf("LogSession() failed: %v", err)
	}

	persisted, err := sessionRepo.GetByID(session.ID)
	if err != nil {
		t.Fatalf("Session not persisted: %v", err)
	}
	if persisted.XPEarned != 33 {
		t.Errorf("Expected xp patch 33, got %d", persisted.XPEarned)
	}

	stats, err := statsRepo.GetOrCreate(user.ID)
	if err != nil {
		t.Fatalf("GetOrCreate() failed: %v", err)
	}
	if stats.TotalXP != 33 || stats.TotalSessions != 1 || stats.CurrentStreak != 1 {
		t.Errorf("Expected applied stats, got %+v", stats)
	}
}

func TestEngagementRepository_LogSession_RollsBackOnApplyError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEngagementRepository(db)
	sessionRepo := NewSessionRepository(db)
	user := createTestUser(t, db, "bob", "UTC")

	session := &models.PracticeSession{
		UserID:          user.ID,
		DurationMinutes: 10,
		SentimentScore:  3,
		CreatedAt:       time.Now().UTC(),
	}

	err := repo.LogSession(session, func(stats *models.UserStats) error {
		stats.TotalXP = 999
		return fmt.Errorf("streak state corrupt")
	})
	if err == nil {
		t.Fatal("Expected the apply error to surface")
	}

	count, _ := sessionRepo.CountByUser(user.ID)
	if count != 0 {
		t.Errorf("Expected the session insert rolled back, found %d rows", count)
	}

	var statsCount int64
	db.Model(&models.UserStats{}).Where("user_id = ?", user.ID).Count(&statsCount)
	if statsCount != 0 {
		t.Error("Expected the lazily created stats row rolled back too")
	}
}

func TestEngagementRepository_UpdateStats_WithLedger(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEngagementRepository(db)
	statsRepo := NewStatsRepository(db)
	gemsRepo := NewGemsRepository(db)
	user := createTestUser(t, db, "carol", "UTC")

	seed, _ := statsRepo.GetOrCreate(user.ID)
	seed.GemsBalance = 60
	if err := statsRepo.Save(seed); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	err := repo.UpdateStats(user.ID, func(stats *models.UserStats) (*models.GemsTransaction, error) {
		stats.GemsBalance -= 50
		stats.StreakShieldCount++
		return &models.GemsTransaction{
			UserID:    user.ID,
			Type:      models.GemsTxSpent,
			Amount:    50,
			Reference: "shield_purchase",
		}, nil
	})
	if err != nil {
		t.Fatalf("UpdateStats() failed: %v", err)
	}

	stats, _ := statsRepo.GetOrCreate(user.ID)
	if stats.GemsBalance != 10 || stats.StreakShieldCount != 1 {
		t.Errorf("Expected balance 10 and 1 shield, got %d/%d", stats.GemsBalance, stats.StreakShieldCount)
	}

	entries, _ := gemsRepo.ListByUser(user.ID)
	if len(entries) != 1 || entries[0].Reference != "shield_purchase" {
		t.Errorf("Expected the ledger entry committed with the stats, got %+v", entries)
	}
}

func TestEngagementRepository_UpdateStats_RollsBackTogether(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEngagementRepository(db)
	statsRepo := NewStatsRepository(db)
	gemsRepo := NewGemsRepository(db)
	user := createTestUser(t, db, "dave", "UTC")

	err := repo.UpdateStats(user.ID, func(stats *models.UserStats) (*models.GemsTransaction, error) {
		stats.GemsBalance = 500
		return nil, fmt.Errorf("rejected")
	})
	if err == nil {
		t.Fatal("Expected the apply error to surface")
	}

	stats, _ := statsRepo.GetOrCreate(user.ID)
	if stats.GemsBalance != 0 {
		t.Errorf("Expected the mutation rolled back, got balance %d", stats.GemsBalance)
	}

	entries, _ := gemsRepo.ListByUser(user.ID)
	if len(entries) != 0 {
		t.Errorf("Expected no ledger entries, got %d", len(entries))
	}
}

// The stats row balance and the ledger should tell the same story when every
// mutation goes through the unit of work.
func TestGemsLedgerReconciliation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEngagementRepository(db)
	statsRepo := NewStatsRepository(db)
	gemsRepo := NewGemsRepository(db)
	user := createTestUser(t, db, "erin", "UTC")

	grant := func(amount int, ref string) {
		err := repo.UpdateStats(user.ID, func(stats *models.UserStats) (*models.GemsTransaction, error) {
			stats.GemsBalance += amount
			return &models.GemsTransaction{UserID: user.ID, Type: models.GemsTxEarned, Amount: amount, Reference: ref}, nil
		})
		if err != nil {
			t.Fatalf("grant failed: %v", err)
		}
	}
	spend := func(amount int, ref string) {
		err := repo.UpdateStats(user.ID, func(stats *models.UserStats) (*models.GemsTransaction, error) {
			stats.GemsBalance -= amount
			return &models.GemsTransaction{UserID: user.ID, Type: models.GemsTxSpent, Amount: amount, Reference: ref}, nil
		})
		if err != nil {
			t.Fatalf("spend failed: %v", err)
		}
	}

	grant(20, "badge:a")
	grant(50, "badge:b")
	spend(50, "shield_purchase")
	grant(5, "badge:c")

	stats, _ := statsRepo.GetOrCreate(user.ID)
	ledger, err := gemsRepo.BalanceFromLedger(user.ID)
	if err != nil {
		t.Fatalf("BalanceFromLedger() failed: %v", err)
	}
	if stats.GemsBalance != ledger {
		t.Errorf("Stats balance %d does not reconcile to ledger %d", stats.GemsBalance, ledger)
	}
	if ledger != 25 {
		t.Errorf("Expected net balance 25, got %d", ledger)
	}
}
