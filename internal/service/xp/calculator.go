// Package xp provides the pure XP and level calculators.
package xp

import (
	"fmt"
	"math"

	"github.com/strumly/practice-engine/internal/apperr"
	"github.com/strumly/practice-engine/internal/models"
)

// sentimentMultipliers maps the 1–5 sentiment score to its XP multiplier.
// Scores outside the range fall back to the neutral 1.0.
var sentimentMultipliers = map[int]float64{
	5: 1.5,
	4: 1.3,
	3: 1.0,
	2: 0.8,
	1: 0.6,
}

const improvementMultiplier = 1.25

// ComputeXP converts session facts into XP points:
// round(duration * sentiment_multiplier * improvement_multiplier), never
// below 1. A non-positive duration is a validation error, not a clamp.
func ComputeXP(durationMinutes, sentimentScore int, improvement bool) (int, error) {
	if durationMinutes <= 0 {
		return 0, apperr.Validation("duration_minutes", fmt.Sprintf("must be positive, got %d", durationMinutes))
	}

	multiplier, ok := sentimentMultipliers[sentimentScore]
	if !ok {
		multiplier = 1.0
	}
	if improvement {
		multiplier *= improvementMultiplier
	}

	points := int(math.Round(float64(durationMinutes) * multiplier))
	if points < 1 {
		points = 1
	}
	return points, nil
}

// ValidateSession checks the user-supplied session facts before any XP
// computation or persistence happens.
func ValidateSession(durationMinutes, sentimentScore int) error {
	if durationMinutes <= 0 {
		return apperr.Validation("duration_minutes", fmt.Sprintf("must be positive, got %d", durationMinutes))
	}
	if sentimentScore < models.SentimentMin || sentimentScore > models.SentimentMax {
		return apperr.Validation("sentiment_score",
			fmt.Sprintf("must be between %d and %d, got %d", models.SentimentMin, models.SentimentMax, sentimentScore))
	}
	return nil
}

// Level maps cumulative XP to a level: floor(sqrt(xp/100)) + 1.
// Monotonic non-decreasing; Level(0) == 1.
func Level(totalXP int) int {
	if totalXP < 0 {
		return 1
	}
	return int(math.Sqrt(float64(totalXP)/100.0)) + 1
}

// LevelUp describes a level transition detected after an XP change. It is
// reported to the caller, never stored.
type LevelUp struct {
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
}

// DetectLevelUp compares levels before and after an XP change.
func DetectLevelUp(oldXP, newXP int) (LevelUp, bool) {
	lu := LevelUp{OldLevel: Level(oldXP), NewLevel: Level(newXP)}
	return lu, lu.NewLevel > lu.OldLevel
}
