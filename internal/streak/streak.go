// Package streak computes daily streak continuity, including freeze rescue.
// All functions are pure: they take state snapshots and return new ones.
package streak

import (
	"time"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/freeze"
	"thinkfirst/internal/models"
)

// Outcome describes which branch an evaluation took
type Outcome string

const (
	Unchanged Outcome = "unchanged"
	Started   Outcome = "started"
	Continued Outcome = "continued"
	Rescued   Outcome = "rescued"
	Reset     Outcome = "reset"
)

// Result is the next state after a qualifying action
type Result struct {
	Streak          models.StreakState
	Freeze          models.FreezeState
	FreezeUsedToday bool
	Outcome         Outcome
	// Rescue is the freeze event recorded when a missed day was covered
	Rescue *models.FreezeEvent
}

// Increment returns the streak credit for an unlock: mastery-mode unlocks that
// achieved mastery earn double credit.
func Increment(masteryMode, masteryAchieved bool) int {
	if masteryMode && masteryAchieved {
		return 2
	}
	return 1
}

// Evaluate applies one qualifying action on day today. A repeated call on the same day
// returns the inputs unchanged.
func Evaluate(current models.StreakState, fs models.FreezeState, today clock.Day, increment int, at time.Time) Result {
	if increment < 1 {
		increment = 1
	}
	unchanged := Result{Streak: current, Freeze: fs, Outcome: Unchanged}

	if !current.LastDate.IsZero() && current.LastDate == today {
		return unchanged
	}

	if current.LastDate.IsZero() {
		return Result{
			Streak:  models.StreakState{Count: increment, LastDate: today},
			Freeze:  fs,
			Outcome: Started,
		}
	}

	daysDiff, err := clock.DaysBetween(current.LastDate, today)
	if err != nil {
		// unreadable stored date: today's action starts a fresh streak
		return Result{
			Streak:  models.StreakState{Count: increment, LastDate: today},
			Freeze:  fs,
			Outcome: Started,
		}
	}

	switch {
	case daysDiff < 0:
		return unchanged
	case daysDiff == 1:
		return Result{
			Streak:  models.StreakState{Count: current.Count + increment, LastDate: today},
			Freeze:  fs,
			Outcome: Continued,
		}
	}

	if next, ok := freeze.ConsumePersonal(fs, at); ok {
		return rescued(current, next, today, increment)
	}
	if next, ok := freeze.BorrowFromFamilyPool(fs, at); ok {
		return rescued(current, next, today, increment)
	}

	return Result{
		Streak:  models.StreakState{Count: increment, LastDate: today},
		Freeze:  fs,
		Outcome: Reset,
	}
}

func rescued(current models.StreakState, next models.FreezeState, today clock.Day, increment int) Result {
	ev := next.FreezeHistory[len(next.FreezeHistory)-1]
	return Result{
		Streak:          models.StreakState{Count: current.Count + increment, LastDate: today},
		Freeze:          next,
		FreezeUsedToday: true,
		Outcome:         Rescued,
		Rescue:          &ev,
	}
}

// Project is the passive read-time view of a streak: when the last qualifying day is
// neither today nor yesterday the streak is displayed as zero. No freeze is consumed here;
// rescue only happens on a new qualifying attempt.
func Project(current models.StreakState, today clock.Day) models.StreakState {
	if current.LastDate.IsZero() {
		return models.StreakState{}
	}
	if current.LastDate == today || current.LastDate == today.AddDays(-1) {
		return current
	}
	return models.StreakState{}
}
