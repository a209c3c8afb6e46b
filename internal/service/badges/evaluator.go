package badges

import (
	"fmt"
	"sort"
	"time"

	"github.com/strumly/practice-engine/internal/models"
)

// Temporal criteria constants.
const (
	comebackGapDays    = 7  // minimum absence that starts a comeback window
	comebackWindowDays = 7  // days after the return that count toward it
	comebackMinCount   = 3  // sessions required inside the window
	timeOfDayMinCount  = 10 // matching sessions required for time_of_day badges
)

// time_of_day criteria_value variants.
const (
	timeOfDayEarlyBird = 1 // local hour in [5, 8)
	timeOfDayNightOwl  = 2 // local hour in [22, 24) or [0, 6)
)

// Evaluator decides whether a user's stats and session history satisfy a
// badge's criteria. Pure: it never touches storage.
type Evaluator struct {
	longSessionMinutes int
}

// NewEvaluator creates an evaluator. longSessionMinutes is the threshold for
// long_session_count criteria.
func NewEvaluator(longSessionMinutes int) *Evaluator {
	if longSessionMinutes <= 0 {
		longSessionMinutes = 30
	}
	return &Evaluator{longSessionMinutes: longSessionMinutes}
}

// Meets evaluates one badge against the current stats snapshot and session
// history (newest first). loc is the user's timezone, used by the temporal
// criteria. Unknown criteria types are an error, not a silent false.
func (e *Evaluator) Meets(badge *models.BadgeDefinition, stats *models.UserStats, history []models.PracticeSession, loc *time.Location) (bool, error) {
	value := badge.CriteriaValue

	switch badge.CriteriaType {
	case models.CriteriaTotalXP:
		return stats.TotalXP >= value, nil

	case models.CriteriaLevelReached:
		return stats.CurrentLevel >= value, nil

	case models.CriteriaPracticeSessions:
		return stats.TotalSessions >= value, nil

	case models.CriteriaTotalTime, models.CriteriaLongSession:
		for i := range history {
			if history[i].DurationMinutes >= value {
				return true, nil
			}
		}
		return false, nil

	case models.CriteriaImprovementCount:
		count := 0
		for i := range history {
			if history[i].ImprovementDetected {
				count++
			}
		}
		return count >= value, nil

	case models.CriteriaStreak:
		return stats.CurrentStreak >= value, nil

	case models.CriteriaLongSessionCount:
		count := 0
		for i := range history {
			if history[i].DurationMinutes >= e.longSessionMinutes {
				count++
			}
		}
		return count >= value, nil

	case models.CriteriaComeback:
		return e.meetsComeback(history), nil

	case models.CriteriaTimeOfDay:
		return e.meetsTimeOfDay(value, history, loc)

	default:
		return false, fmt.Errorf("unsupported criteria type %q for badge %q", badge.CriteriaType, badge.BadgeKey)
	}
}

// meetsComeback looks for the most recent gap of at least comebackGapDays
// between adjacent sessions and counts the sessions inside the window that
// starts when practice resumed.
func (e *Evaluator) meetsComeback(history []models.PracticeSession) bool {
	if len(history) < 2 {
		return false
	}

	sessions := make([]models.PracticeSession, len(history))
	copy(sessions, history)
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	gap := time.Duration(comebackGapDays) * 24 * time.Hour
	for i := 0; i < len(sessions)-1; i++ {
		if sessions[i].CreatedAt.Sub(sessions[i+1].CreatedAt) < gap {
			continue
		}

		// sessions[i] is the first session after the absence; the comeback
		// window runs from it.
		windowStart := sessions[i].CreatedAt
		windowEnd := windowStart.Add(time.Duration(comebackWindowDays) * 24 * time.Hour)
		count := 0
		for _, s := range sessions {
			if !s.CreatedAt.Before(windowStart) && s.CreatedAt.Before(windowEnd) {
				count++
			}
		}
		return count >= comebackMinCount
	}
	return false
}

// meetsTimeOfDay counts sessions whose local start hour falls in the
// variant's window.
func (e *Evaluator) meetsTimeOfDay(variant int, history []models.PracticeSession, loc *time.Location) (bool, error) {
	count := 0
	for i := range history {
		hour := history[i].CreatedAt.In(loc).Hour()
		switch variant {
		case timeOfDayEarlyBird:
			if hour >= 5 && hour < 8 {
				count++
			}
		case timeOfDayNightOwl:
			if hour >= 22 || hour < 6 {
				count++
			}
		default:
			return false, fmt.Errorf("unsupported time_of_day variant %d", variant)
		}
	}
	return count >= timeOfDayMinCount, nil
}
