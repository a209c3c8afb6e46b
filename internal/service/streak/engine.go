// Package streak implements the timezone-aware day-streak engine.
//
// Crediting is keyed on calendar days in the user's timezone. Each "log
// session" trigger advances the state through an ordered rule list; the
// first matching rule wins and exactly one rule applies per trigger. A
// second trigger on an already-credited day is a no-op, which makes the
// engine idempotent per calendar day.
package streak

import (
	"time"
)

const dateLayout = "2006-01-02"

// Config holds the streak tunables.
type Config struct {
	// GraceWindowHours is the allowance after which a gap of two or more
	// calendar days counts as a break instead of a late practice.
	GraceWindowHours int
	// DefaultTimezone is the IANA fallback when a user's timezone is unset
	// or invalid.
	DefaultTimezone string
}

// State is the per-user streak state, loaded from and persisted to the
// user's stats row.
type State struct {
	CurrentStreak     int
	LongestStreak     int
	StreakShieldCount int
	// LastPracticeDate is the last credited calendar day ("YYYY-MM-DD" in
	// the user's timezone), empty before the first credit.
	LastPracticeDate string
}

// Result reports what a trigger did.
type Result struct {
	StreakUpdated          bool    `json:"streak_updated"`
	NewStreak              int     `json:"new_streak"`
	ShieldUsed             bool    `json:"shield_used"`
	ShieldsRemaining       int     `json:"shields_remaining"`
	HoursSinceLastPractice float64 `json:"hours_since_last_practice"`
	Rule                   string  `json:"rule"`
}

// Engine evaluates streak transitions. It is pure: no clocks, no storage.
type Engine struct {
	cfg Config
}

// NewEngine creates a streak engine.
func NewEngine(cfg Config) *Engine {
	if cfg.GraceWindowHours <= 0 {
		cfg.GraceWindowHours = 36
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	return &Engine{cfg: cfg}
}

// Location resolves an IANA timezone name, falling back to the configured
// default and finally UTC when the name is unset or invalid.
func (e *Engine) Location(tzName string) *time.Location {
	if tzName != "" {
		if loc, err := time.LoadLocation(tzName); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(e.cfg.DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// evalContext carries everything a transition rule may inspect.
type evalContext struct {
	state               State
	today               string
	yesterday           string
	hoursSinceLast      float64
	hasSessionYesterday bool
	graceHours          float64
}

// transitionRule is one entry in the ordered rule list. match and apply are
// split so the precedence order stays visible in one place.
type transitionRule struct {
	name  string
	match func(*evalContext) bool
	apply func(*evalContext, *State, *Result)
}

// rules is the transition table, evaluated top to bottom; the first match
// wins. The first two rules overlap when the user practiced yesterday AND
// yesterday was the last credited day; both extend by exactly one, so the
// ordering is a deterministic tie-break, not a behavior change.
var rules = []transitionRule{
	{
		// Practiced yesterday (session history) and again today.
		name: "consecutive_sessions",
		match: func(c *evalContext) bool {
			return c.hasSessionYesterday
		},
		apply: func(_ *evalContext, s *State, _ *Result) {
			s.CurrentStreak++
		},
	},
	{
		// Yesterday was the last credited day; today's trigger session
		// continues the run.
		name: "consecutive_credit",
		match: func(c *evalContext) bool {
			return c.state.LastPracticeDate == c.yesterday
		},
		apply: func(_ *evalContext, s *State, _ *Result) {
			s.CurrentStreak++
		},
	},
	{
		// First-ever credit.
		name: "first_credit",
		match: func(c *evalContext) bool {
			return c.state.LastPracticeDate == ""
		},
		apply: func(_ *evalContext, s *State, _ *Result) {
			s.CurrentStreak = 1
		},
	},
	{
		// Late but within the grace window: a gap of two or more calendar
		// days that still fits inside the hour allowance continues the
		// streak without consuming a shield.
		name: "grace_window",
		match: func(c *evalContext) bool {
			return c.state.LastPracticeDate < c.yesterday && c.hoursSinceLast <= c.graceHours
		},
		apply: func(_ *evalContext, s *State, _ *Result) {
			s.CurrentStreak++
		},
	},
	{
		// Broken, but a shield absorbs the break.
		name: "shield_absorb",
		match: func(c *evalContext) bool {
			return c.state.LastPracticeDate < c.yesterday && c.state.StreakShieldCount > 0
		},
		apply: func(_ *evalContext, s *State, r *Result) {
			s.StreakShieldCount--
			s.CurrentStreak++
			r.ShieldUsed = true
		},
	},
	{
		// Broken with no shield left.
		name: "broken",
		match: func(c *evalContext) bool {
			return c.state.LastPracticeDate < c.yesterday
		},
		apply: func(_ *evalContext, s *State, _ *Result) {
			s.CurrentStreak = 0
		},
	},
}

// Advance evaluates one "log session" trigger.
//
// history holds the timestamps of the user's previous sessions (newest
// first), excluding the session being logged now; the trigger session itself
// is represented by now. The returned State carries the four fields the
// caller must persist atomically.
func (e *Engine) Advance(state State, history []time.Time, now time.Time, loc *time.Location) (State, Result) {
	local := now.In(loc)
	today := local.Format(dateLayout)
	yesterday := local.AddDate(0, 0, -1).Format(dateLayout)

	result := Result{
		NewStreak:        state.CurrentStreak,
		ShieldsRemaining: state.StreakShieldCount,
	}

	// Already credited today: idempotent no-op.
	if state.LastPracticeDate == today {
		result.Rule = "already_credited"
		return state, result
	}

	ctx := evalContext{
		state:      state,
		today:      today,
		yesterday:  yesterday,
		graceHours: float64(e.cfg.GraceWindowHours),
	}
	if len(history) > 0 {
		ctx.hoursSinceLast = now.Sub(history[0]).Hours()
	}
	for _, ts := range history {
		if ts.In(loc).Format(dateLayout) == yesterday {
			ctx.hasSessionYesterday = true
			break
		}
	}
	result.HoursSinceLastPractice = ctx.hoursSinceLast

	matched := false
	for _, rule := range rules {
		if rule.match(&ctx) {
			rule.apply(&ctx, &state, &result)
			result.Rule = rule.name
			matched = true
			break
		}
	}
	if !matched {
		// Stored date is in the future relative to now. Should not occur;
		// leave the state untouched rather than guess.
		result.Rule = "future_date_guard"
		return state, result
	}

	if state.CurrentStreak > state.LongestStreak {
		state.LongestStreak = state.CurrentStreak
	}
	state.LastPracticeDate = today

	result.StreakUpdated = true
	result.NewStreak = state.CurrentStreak
	result.ShieldsRemaining = state.StreakShieldCount
	return state, result
}
