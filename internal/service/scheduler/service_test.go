package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/strumly/practice-engine/internal/config"
	"github.com/strumly/practice-engine/internal/models"
	"github.com/strumly/practice-engine/pkg/logger"
)

type mockUserStore struct {
	ids []uint
	err error
}

func (m *mockUserStore) ListIDs() ([]uint, error) {
	return m.ids, m.err
}

type mockStatsStore struct {
	stats map[uint]*models.UserStats
	err   map[uint]error
}

func (m *mockStatsStore) GetOrCreate(userID uint) (*models.UserStats, error) {
	if err, ok := m.err[userID]; ok {
		return nil, err
	}
	if stats, ok := m.stats[userID]; ok {
		return stats, nil
	}
	return &models.UserStats{UserID: userID, CurrentLevel: 1}, nil
}

type mockBadgeEvaluator struct {
	awards map[uint][]models.BadgeDefinition
	err    map[uint]error
	calls  []uint
}

func (m *mockBadgeEvaluator) EvaluateUser(ctx context.Context, userID uint, stats *models.UserStats) ([]models.BadgeDefinition, error) {
	m.calls = append(m.calls, userID)
	if err, ok := m.err[userID]; ok {
		return nil, err
	}
	return m.awards[userID], nil
}

type mockRebuilder struct {
	calls int
	err   error
}

func (m *mockRebuilder) Rebuild(ctx context.Context) error {
	m.calls++
	return m.err
}

func setupTestService(users *mockUserStore, badges *mockBadgeEvaluator) (*Service, *mockRebuilder) {
	rebuilder := &mockRebuilder{}
	cfg := &config.SchedulerConfig{Enabled: true, Time: "03:30", Timezone: "UTC"}
	log := logger.New("debug", "text", "stdout")

	service := NewService(cfg, users, &mockStatsStore{}, badges, rebuilder, log)
	return service, rebuilder
}

func TestBuildCronExpression(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"03:30", "30 3 * * *", false},
		{"00:00", "0 0 * * *", false},
		{"23:59", "59 23 * * *", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"noon", "", true},
		{"12", "", true},
		{"ab:cd", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := buildCronExpression(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildCronExpression(%q) failed: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("buildCronExpression(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRunBadgeSweep(t *testing.T) {
	users := &mockUserStore{ids: []uint{1, 2, 3}}
	badges := &mockBadgeEvaluator{awards: map[uint][]models.BadgeDefinition{
		1: {{BadgeKey: "first_steps"}},
		3: {{BadgeKey: "week_streak"}, {BadgeKey: "comeback_kid"}},
	}}
	service, _ := setupTestService(users, badges)

	awarded, err := service.RunBadgeSweep(context.Background())
	if err != nil {
		t.Fatalf("RunBadgeSweep() failed: %v", err)
	}
	if awarded != 3 {
		t.Errorf("Expected 3 awards across the sweep, got %d", awarded)
	}
	if len(badges.calls) != 3 {
		t.Errorf("Expected every user evaluated, got %v", badges.calls)
	}
}

func TestRunBadgeSweep_ContinuesAfterUserError(t *testing.T) {
	users := &mockUserStore{ids: []uint{1, 2, 3}}
	badges := &mockBadgeEvaluator{
		awards: map[uint][]models.BadgeDefinition{3: {{BadgeKey: "first_steps"}}},
		err:    map[uint]error{2: fmt.Errorf("catalog unavailable")},
	}
	service, _ := setupTestService(users, badges)

	awarded, err := service.RunBadgeSweep(context.Background())
	if err != nil {
		t.Fatalf("RunBadgeSweep() failed: %v", err)
	}
	if awarded != 1 {
		t.Errorf("Expected the sweep to continue past the failing user, got %d awards", awarded)
	}
	if len(badges.calls) != 3 {
		t.Errorf("Expected all users attempted, got %v", badges.calls)
	}
}

func TestRunBadgeSweep_ListError(t *testing.T) {
	users := &mockUserStore{err: fmt.Errorf("database down")}
	service, _ := setupTestService(users, &mockBadgeEvaluator{})

	if _, err := service.RunBadgeSweep(context.Background()); err == nil {
		t.Error("Expected an error when the user list cannot load")
	}
}

func TestStart_DisabledIsNoop(t *testing.T) {
	cfg := &config.SchedulerConfig{Enabled: false}
	log := logger.New("debug", "text", "stdout")
	service := NewService(cfg, &mockUserStore{}, &mockStatsStore{}, &mockBadgeEvaluator{}, &mockRebuilder{}, log)

	if err := service.Start(); err != nil {
		t.Fatalf("Start() on a disabled scheduler failed: %v", err)
	}
	service.Stop()
}

func TestStart_InvalidTimezone(t *testing.T) {
	cfg := &config.SchedulerConfig{Enabled: true, Time: "03:30", Timezone: "Not/AZone"}
	log := logger.New("debug", "text", "stdout")
	service := NewService(cfg, &mockUserStore{}, &mockStatsStore{}, &mockBadgeEvaluator{}, &mockRebuilder{}, log)

	if err := service.Start(); err == nil {
		t.Error("Expected an error for an invalid timezone")
	}
}

func TestStart_InvalidTime(t *testing.T) {
	cfg := &config.SchedulerConfig{Enabled: true, Time: "quarter past", Timezone: "UTC"}
	log := logger.New("debug", "text", "stdout")
	service := NewService(cfg, &mockUserStore{}, &mockStatsStore{}, &mockBadgeEvaluator{}, &mockRebuilder{}, log)

	if err := service.Start(); err == nil {
		t.Error("Expected an error for an invalid schedule time")
	}
}

func TestStartStop(t *testing.T) {
	users := &mockUserStore{}
	service, _ := setupTestService(users, &mockBadgeEvaluator{})

	if err := service.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	service.Stop()
}
