package engagement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/strumly/practice-engine/internal/apperr"
	"github.com/strumly/practice-engine/internal/models"
	"github.com/strumly/practice-engine/internal/service/streak"
	"github.com/strumly/practice-engine/pkg/logger"
)

// mockStore is an in-memory unit of work: sessions append, the stats row
// mutates under apply, ledger entries collect.
type mockStore struct {
	stats     map[uint]*models.UserStats
	sessions  []models.PracticeSession
	ledger    []models.GemsTransaction
	nextID    uint
	logErr    error
	updateErr error
}

func newMockStore() *mockStore {
	return &mockStore{stats: make(map[uint]*models.UserStats), nextID: 1}
}

func (m *mockStore) statsFor(userID uint) *models.UserStats {
	if m.stats[userID] == nil {
		m.stats[userID] = &models.UserStats{UserID: userID, CurrentLevel: 1}
	}
	return m.stats[userID]
}

func (m *mockStore) LogSession(session *models.PracticeSession, apply func(stats *models.UserStats) error) error {
	if m.logErr != nil {
		return m.logErr
	}
	session.ID = m.nextID
	m.nextID++
	if err := apply(m.statsFor(session.UserID)); err != nil {
		return err
	}
	m.sessions = append(m.sessions, *session)
	return nil
}

func (m *mockStore) UpdateStats(userID uint, apply func(stats *models.UserStats) (*models.GemsTransaction, error)) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	entry, err := apply(m.statsFor(userID))
	if err != nil {
		return err
	}
	if entry != nil {
		m.ledger = append(m.ledger, *entry)
	}
	return nil
}

type mockSessionStore struct {
	store *mockStore
}

func (m *mockSessionStore) ListByUser(userID uint, limit, offset int) ([]models.PracticeSession, error) {
	var result []models.PracticeSession
	for i := len(m.store.sessions) - 1; i >= 0; i-- {
		if m.store.sessions[i].UserID == userID {
			result = append(result, m.store.sessions[i])
		}
	}
	return result, nil
}

type mockStatsStore struct {
	store *mockStore
}

func (m *mockStatsStore) GetOrCreate(userID uint) (*models.UserStats, error) {
	return m.store.statsFor(userID), nil
}

type mockGemsStore struct {
	store *mockStore
}

func (m *mockGemsStore) ListByUser(userID uint) ([]models.GemsTransaction, error) {
	var result []models.GemsTransaction
	for i := len(m.store.ledger) - 1; i >= 0; i-- {
		if m.store.ledger[i].UserID == userID {
			result = append(result, m.store.ledger[i])
		}
	}
	return result, nil
}

type mockTimezoneStore struct {
	timezone string
}

func (m *mockTimezoneStore) GetTimezone(userID uint) (string, error) {
	return m.timezone, nil
}

type mockBadgeEvaluator struct {
	badges []models.BadgeDefinition
	bonus  int
	err    error
	calls  int
}

func (m *mockBadgeEvaluator) EvaluateUser(ctx context.Context, userID uint, stats *models.UserStats) ([]models.BadgeDefinition, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.bonus > 0 {
		stats.TotalXP += m.bonus
	}
	return m.badges, nil
}

func setupTestService(evaluator *mockBadgeEvaluator) (*Service, *mockStore) {
	store := newMockStore()
	engine := streak.NewEngine(streak.Config{GraceWindowHours: 36, DefaultTimezone: "UTC"})
	log := logger.New("debug", "text", "stdout")

	service := NewServiceWithInterfaces(
		store,
		&mockSessionStore{store: store},
		&mockStatsStore{store: store},
		&mockGemsStore{store: store},
		&mockTimezoneStore{timezone: "UTC"},
		evaluator,
		engine,
		Config{ShieldGemCost: 50, HistoryLimit: 500},
		log,
	)
	return service, store
}

func TestLogSession_EndToEnd(t *testing.T) {
	service, store := setupTestService(&mockBadgeEvaluator{})
	ctx := context.Background()

	day1 := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return day1 })

	// New user, 20 minute session, score 4, with improvement.
	result, err := service.LogSession(ctx, 1, SessionInput{
		ItemID:              7,
		DurationMinutes:     20,
		SentimentScore:      4,
		ImprovementDetected: true,
	})
	if err != nil {
		t.Fatalf("LogSession failed: %v", err)
	}

	if result.XPEarned != 33 {
		t.Errorf("Expected 33 xp, got %d", result.XPEarned)
	}
	if result.TotalXP != 33 || result.Level != 1 {
		t.Errorf("Expected total 33 at level 1, got %d at %d", result.TotalXP, result.Level)
	}
	if result.Streak.NewStreak != 1 {
		t.Errorf("Expected streak 1, got %d", result.Streak.NewStreak)
	}
	if result.LevelUp != nil {
		t.Errorf("Expected no level up, got %+v", result.LevelUp)
	}

	// Next calendar day, 10 minute session, score 3, no improvement.
	day2 := day1.AddDate(0, 0, 1)
	service.WithClock(func() time.Time { return day2 })

	result, err = service.LogSession(ctx, 1, SessionInput{
		DurationMinutes: 10,
		SentimentScore:  3,
	})
	if err != nil {
		t.Fatalf("Second LogSession failed: %v", err)
	}

	if result.XPEarned != 10 {
		t.Errorf("Expected 10 xp, got %d", result.XPEarned)
	}
	if result.TotalXP != 43 || result.Level != 1 {
		t.Errorf("Expected total 43 at level 1, got %d at %d", result.TotalXP, result.Level)
	}
	if result.Streak.NewStreak != 2 {
		t.Errorf("Expected streak 2, got %d", result.Streak.NewStreak)
	}

	stats := store.statsFor(1)
	if stats.TotalSessions != 2 || stats.TotalMinutes != 30 {
		t.Errorf("Expected 2 sessions / 30 minutes, got %d / %d", stats.TotalSessions, stats.TotalMinutes)
	}
	if stats.LastPracticeDate != "2026-03-11" {
		t.Errorf("Expected last practice date 2026-03-11, got %q", stats.LastPracticeDate)
	}
	if len(store.sessions) != 2 || store.sessions[0].XPEarned != 33 {
		t.Errorf("Expected persisted sessions with xp, got %+v", store.sessions)
	}
}

func TestLogSession_SameDayKeepsStreak(t *testing.T) {
	service, store := setupTestService(&mockBadgeEvaluator{})
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return now })

	if _, err := service.LogSession(ctx, 1, SessionInput{DurationMinutes: 15, SentimentScore: 3}); err != nil {
		t.Fatalf("First LogSession failed: %v", err)
	}

	service.WithClock(func() time.Time { return now.Add(6 * time.Hour) })
	result, err := service.LogSession(ctx, 1, SessionInput{DurationMinutes: 15, SentimentScore: 3})
	if err != nil {
		t.Fatalf("Second LogSession failed: %v", err)
	}

	if result.Streak.StreakUpdated {
		t.Error("Expected no streak update on the same calendar day")
	}
	if result.Streak.NewStreak != 1 {
		t.Errorf("Expected streak unchanged at 1, got %d", result.Streak.NewStreak)
	}

	// XP still accrues.
	if store.statsFor(1).TotalXP != 30 {
		t.Errorf("Expected 30 total xp, got %d", store.statsFor(1).TotalXP)
	}
}

func TestLogSession_LevelUpReported(t *testing.T) {
	service, store := setupTestService(&mockBadgeEvaluator{})
	ctx := context.Background()

	store.statsFor(1).TotalXP = 90
	store.statsFor(1).CurrentLevel = 1

	service.WithClock(func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) })
	result, err := service.LogSession(ctx, 1, SessionInput{DurationMinutes: 20, SentimentScore: 3})
	if err != nil {
		t.Fatalf("LogSession failed: %v", err)
	}

	if result.LevelUp == nil {
		t.Fatal("Expected a level up crossing 100 xp")
	}
	if result.LevelUp.OldLevel != 1 || result.LevelUp.NewLevel != 2 {
		t.Errorf("Expected 1 -> 2, got %d -> %d", result.LevelUp.OldLevel, result.LevelUp.NewLevel)
	}
	if result.Level != 2 {
		t.Errorf("Expected level 2, got %d", result.Level)
	}
}

func TestLogSession_ValidationRejectsBeforePersistence(t *testing.T) {
	service, store := setupTestService(&mockBadgeEvaluator{})
	ctx := context.Background()

	tests := []SessionInput{
		{DurationMinutes: 0, SentimentScore: 3},
		{DurationMinutes: -5, SentimentScore: 3},
		{DurationMinutes: 10, SentimentScore: 0},
		{DurationMinutes: 10, SentimentScore: 6},
	}

	for _, input := range tests {
		_, err := service.LogSession(ctx, 1, input)
		if err == nil {
			t.Errorf("Expected validation error for %+v", input)
			continue
		}
		var validation *apperr.ValidationError
		if !errors.As(err, &validation) {
			t.Errorf("Expected ValidationError, got %T", err)
		}
	}

	if len(store.sessions) != 0 {
		t.Errorf("Expected no sessions persisted, got %d", len(store.sessions))
	}
}

func TestLogSession_BadgeFailureDoesNotFailCall(t *testing.T) {
	evaluator := &mockBadgeEvaluator{err: fmt.Errorf("catalog unavailable")}
	service, store := setupTestService(evaluator)

	service.WithClock(func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) })
	result, err := service.LogSession(context.Background(), 1, SessionInput{DurationMinutes: 10, SentimentScore: 3})
	if err != nil {
		t.Fatalf("Expected badge failure to be swallowed, got %v", err)
	}

	if evaluator.calls != 1 {
		t.Errorf("Expected one badge pass, got %d", evaluator.calls)
	}
	if len(result.NewBadges) != 0 {
		t.Errorf("Expected no badges on evaluator failure, got %+v", result.NewBadges)
	}
	if len(store.sessions) != 1 {
		t.Errorf("Expected the session to persist anyway, got %d", len(store.sessions))
	}
}

func TestLogSession_BadgeRewardsReflectedInResult(t *testing.T) {
	evaluator := &mockBadgeEvaluator{
		badges: []models.BadgeDefinition{{BadgeKey: "first_steps"}},
		bonus:  10,
	}
	service, _ := setupTestService(evaluator)

	service.WithClock(func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) })
	result, err := service.LogSession(context.Background(), 1, SessionInput{DurationMinutes: 10, SentimentScore: 3})
	if err != nil {
		t.Fatalf("LogSession failed: %v", err)
	}

	if len(result.NewBadges) != 1 {
		t.Fatalf("Expected one new badge, got %d", len(result.NewBadges))
	}
	if result.TotalXP != 20 {
		t.Errorf("Expected session xp plus badge reward (20), got %d", result.TotalXP)
	}
}

func TestPurchaseShield(t *testing.T) {
	service, store := setupTestService(&mockBadgeEvaluator{})
	ctx := context.Background()

	store.statsFor(1).GemsBalance = 60

	stats, err := service.PurchaseShield(ctx, 1)
	if err != nil {
		t.Fatalf("PurchaseShield failed: %v", err)
	}

	if stats.StreakShieldCount != 1 {
		t.Errorf("Expected 1 shield, got %d", stats.StreakShieldCount)
	}
	if stats.GemsBalance != 10 {
		t.Errorf("Expected balance 10 after spending 50, got %d", stats.GemsBalance)
	}
	if len(store.ledger) != 1 {
		t.Fatalf("Expected one ledger entry, got %d", len(store.ledger))
	}
	entry := store.ledger[0]
	if entry.Type != models.GemsTxSpent || entry.Amount != 50 || entry.Reference != "shield_purchase" {
		t.Errorf("Unexpected ledger entry: %+v", entry)
	}
}

func TestListGems_NewestFirst(t *testing.T) {
	service, store := setupTestService(&mockBadgeEvaluator{})

	store.statsFor(1).GemsBalance = 120
	if _, err := service.PurchaseShield(context.Background(), 1); err != nil {
		t.Fatalf("First PurchaseShield failed: %v", err)
	}
	if _, err := service.PurchaseShield(context.Background(), 1); err != nil {
		t.Fatalf("Second PurchaseShield failed: %v", err)
	}

	entries, err := service.ListGems(1)
	if err != nil {
		t.Fatalf("ListGems failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 ledger entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Type != models.GemsTxSpent || entry.Amount != 50 {
			t.Errorf("Unexpected ledger entry: %+v", entry)
		}
	}
}

func TestPurchaseShield_InsufficientGems(t *testing.T) {
	service, store := setupTestService(&mockBadgeEvaluator{})

	store.statsFor(1).GemsBalance = 49

	_, err := service.PurchaseShield(context.Background(), 1)
	if err == nil {
		t.Fatal("Expected an error with insufficient gems")
	}
	var validation *apperr.ValidationError
	if !errors.As(err, &validation) {
		t.Errorf("Expected ValidationError, got %T", err)
	}
	if store.statsFor(1).GemsBalance != 49 || store.statsFor(1).StreakShieldCount != 0 {
		t.Error("Expected stats untouched after a rejected purchase")
	}
	if len(store.ledger) != 0 {
		t.Errorf("Expected no ledger entry, got %d", len(store.ledger))
	}
}

func TestPurchaseShield_InventoryCap(t *testing.T) {
	service, store := setupTestService(&mockBadgeEvaluator{})

	store.statsFor(1).GemsBalance = 1000
	store.statsFor(1).StreakShieldCount = models.MaxStreakShields

	_, err := service.PurchaseShield(context.Background(), 1)
	if err == nil {
		t.Fatal("Expected an error at the shield cap")
	}
	var validation *apperr.ValidationError
	if !errors.As(err, &validation) {
		t.Errorf("Expected ValidationError, got %T", err)
	}
	if store.statsFor(1).StreakShieldCount != models.MaxStreakShields {
		t.Errorf("Expected shields to stay at %d", models.MaxStreakShields)
	}
}
