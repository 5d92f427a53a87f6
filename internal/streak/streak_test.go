package streak

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/models"
)

var at = time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		current     models.StreakState
		freeze      models.FreezeState
		today       clock.Day
		increment   int
		wantStreak  models.StreakState
		wantFreeze  models.FreezeState
		wantUsed    bool
		wantOutcome Outcome
	}{
		{
			name:        "first qualifying attempt starts streak",
			current:     models.StreakState{},
			today:       "2024-01-16",
			increment:   1,
			wantStreak:  models.StreakState{Count: 1, LastDate: "2024-01-16"},
			wantOutcome: Started,
		},
		{
			name:        "mastery start counts double",
			current:     models.StreakState{},
			today:       "2024-01-16",
			increment:   2,
			wantStreak:  models.StreakState{Count: 2, LastDate: "2024-01-16"},
			wantOutcome: Started,
		},
		{
			name:        "consecutive day continues",
			current:     models.StreakState{Count: 4, LastDate: "2024-01-15"},
			today:       "2024-01-16",
			increment:   1,
			wantStreak:  models.StreakState{Count: 5, LastDate: "2024-01-16"},
			wantOutcome: Continued,
		},
		{
			name:        "same day is a no-op",
			current:     models.StreakState{Count: 4, LastDate: "2024-01-16"},
			freeze:      models.FreezeState{PersonalFreezes: 1},
			today:       "2024-01-16",
			increment:   2,
			wantStreak:  models.StreakState{Count: 4, LastDate: "2024-01-16"},
			wantFreeze:  models.FreezeState{PersonalFreezes: 1},
			wantOutcome: Unchanged,
		},
		{
			name:       "missed day rescued by personal freeze",
			current:    models.StreakState{Count: 4, LastDate: "2024-01-15"},
			freeze:     models.FreezeState{PersonalFreezes: 1, FamilyPoolFreezes: 3},
			today:      "2024-01-17",
			increment:  1,
			wantStreak: models.StreakState{Count: 5, LastDate: "2024-01-17"},
			wantFreeze: models.FreezeState{
				PersonalFreezes:   0,
				FamilyPoolFreezes: 3,
				FreezeHistory:     []models.FreezeEvent{{Type: models.FreezeConsumed, Timestamp: at, Source: models.SourcePersonal}},
			},
			wantUsed:    true,
			wantOutcome: Rescued,
		},
		{
			name:       "missed day rescued by family pool when personal is empty",
			current:    models.StreakState{Count: 9, LastDate: "2024-01-15"},
			freeze:     models.FreezeState{FamilyPoolFreezes: 2},
			today:      "2024-01-17",
			increment:  1,
			wantStreak: models.StreakState{Count: 10, LastDate: "2024-01-17"},
			wantFreeze: models.FreezeState{
				FamilyPoolFreezes: 1,
				FreezeHistory:     []models.FreezeEvent{{Type: models.FreezeBorrowed, Timestamp: at, Source: models.SourceFamilyPool}},
			},
			wantUsed:    true,
			wantOutcome: Rescued,
		},
		{
			name:        "missed day without freezes resets to increment",
			current:     models.StreakState{Count: 12, LastDate: "2024-01-15"},
			today:       "2024-01-17",
			increment:   1,
			wantStreak:  models.StreakState{Count: 1, LastDate: "2024-01-17"},
			wantOutcome: Reset,
		},
		{
			name:        "mastery reset restarts at two",
			current:     models.StreakState{Count: 12, LastDate: "2024-01-10"},
			today:       "2024-01-17",
			increment:   2,
			wantStreak:  models.StreakState{Count: 2, LastDate: "2024-01-17"},
			wantOutcome: Reset,
		},
		{
			name:        "clock moved backwards leaves state alone",
			current:     models.StreakState{Count: 3, LastDate: "2024-01-18"},
			today:       "2024-01-17",
			increment:   1,
			wantStreak:  models.StreakState{Count: 3, LastDate: "2024-01-18"},
			wantOutcome: Unchanged,
		},
		{
			name:        "unreadable stored date starts fresh",
			current:     models.StreakState{Count: 3, LastDate: "not-a-date"},
			today:       "2024-01-17",
			increment:   1,
			wantStreak:  models.StreakState{Count: 1, LastDate: "2024-01-17"},
			wantOutcome: Started,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.current, tt.freeze, tt.today, tt.increment, at)

			if diff := cmp.Diff(tt.wantStreak, got.Streak); diff != "" {
				t.Errorf("streak mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantFreeze, got.Freeze); diff != "" {
				t.Errorf("freeze mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.wantUsed, got.FreezeUsedToday)
			assert.Equal(t, tt.wantOutcome, got.Outcome)
			assert.Equal(t, tt.wantUsed, got.Rescue != nil)
			assert.True(t, got.Streak.Consistent(), "count/lastDate invariant broken: %+v", got.Streak)
		})
	}
}

func TestEvaluateIsIdempotentForSameDay(t *testing.T) {
	start := models.StreakState{Count: 2, LastDate: "2024-01-15"}
	fs := models.FreezeState{PersonalFreezes: 1}

	first := Evaluate(start, fs, "2024-01-17", 1, at)
	second := Evaluate(first.Streak, first.Freeze, "2024-01-17", 1, at.Add(time.Hour))

	if diff := cmp.Diff(first.Streak, second.Streak); diff != "" {
		t.Errorf("second call changed streak (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Freeze, second.Freeze); diff != "" {
		t.Errorf("second call changed freeze (-first +second):\n%s", diff)
	}
	assert.False(t, second.FreezeUsedToday)
}

func TestMasteryEarnsDoubleCredit(t *testing.T) {
	start := models.StreakState{Count: 5, LastDate: "2024-01-15"}

	standard := Evaluate(start, models.FreezeState{}, "2024-01-16", Increment(false, false), at)
	mastery := Evaluate(start, models.FreezeState{}, "2024-01-16", Increment(true, true), at)

	assert.Equal(t, 6, standard.Streak.Count)
	assert.Equal(t, 7, mastery.Streak.Count)
	assert.Equal(t, 1, Increment(true, false))
	assert.Equal(t, 1, Increment(false, true))
}

func TestEvaluateDoesNotMutateInputs(t *testing.T) {
	fs := models.FreezeState{PersonalFreezes: 1, FreezeHistory: make([]models.FreezeEvent, 0, 4)}
	got := Evaluate(models.StreakState{Count: 1, LastDate: "2024-01-01"}, fs, "2024-01-17", 1, at)

	require.Len(t, got.Freeze.FreezeHistory, 1)
	assert.Equal(t, 1, fs.PersonalFreezes)
	assert.Empty(t, fs.FreezeHistory)
}

func TestProject(t *testing.T) {
	tests := []struct {
		name    string
		current models.StreakState
		today   clock.Day
		want    models.StreakState
	}{
		{name: "empty", current: models.StreakState{}, today: "2024-01-17", want: models.StreakState{}},
		{name: "credited today", current: models.StreakState{Count: 3, LastDate: "2024-01-17"}, today: "2024-01-17", want: models.StreakState{Count: 3, LastDate: "2024-01-17"}},
		{name: "credited yesterday still alive", current: models.StreakState{Count: 3, LastDate: "2024-01-16"}, today: "2024-01-17", want: models.StreakState{Count: 3, LastDate: "2024-01-16"}},
		{name: "missed a day displays zero", current: models.StreakState{Count: 3, LastDate: "2024-01-15"}, today: "2024-01-17", want: models.StreakState{}},
		{name: "year boundary", current: models.StreakState{Count: 8, LastDate: "2023-12-31"}, today: "2024-01-01", want: models.StreakState{Count: 8, LastDate: "2023-12-31"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(tt.current, tt.today)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Consistent())
		})
	}
}
