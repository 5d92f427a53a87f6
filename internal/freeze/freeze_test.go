package freeze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var at = time.Date(2024, 1, 17, 9, 0, 0, 0, time.UTC)

func TestConsumePersonal(t *testing.T) {
	state := models.FreezeState{PersonalFreezes: 1, FamilyPoolFreezes: 2}

	next, ok := ConsumePersonal(state, at)
	require.True(t, ok)
	assert.Equal(t, 0, next.PersonalFreezes)
	assert.Equal(t, 2, next.FamilyPoolFreezes)
	require.Len(t, next.FreezeHistory, 1)
	assert.Equal(t, models.FreezeEvent{Type: models.FreezeConsumed, Timestamp: at, Source: models.SourcePersonal}, next.FreezeHistory[0])

	// input is untouched
	assert.Equal(t, 1, state.PersonalFreezes)
	assert.Empty(t, state.FreezeHistory)

	again, ok := ConsumePersonal(next, at)
	assert.False(t, ok)
	assert.Equal(t, 0, again.PersonalFreezes)
	assert.Len(t, again.FreezeHistory, 1)
}

func TestBorrowFromFamilyPool(t *testing.T) {
	state := models.FreezeState{FamilyPoolFreezes: 1}

	next, ok := BorrowFromFamilyPool(state, at)
	require.True(t, ok)
	assert.Equal(t, 0, next.FamilyPoolFreezes)
	require.Len(t, next.FreezeHistory, 1)
	assert.Equal(t, models.FreezeBorrowed, next.FreezeHistory[0].Type)
	assert.Equal(t, models.SourceFamilyPool, next.FreezeHistory[0].Source)

	_, ok = BorrowFromFamilyPool(next, at)
	assert.False(t, ok)
}

func TestHistoryRotatesOldestEvents(t *testing.T) {
	state := models.FreezeState{PersonalFreezes: MaxHistory + 5}
	first := at
	for i := 0; i < MaxHistory+5; i++ {
		var ok bool
		state, ok = ConsumePersonal(state, first.Add(time.Duration(i)*time.Hour))
		require.True(t, ok)
	}

	require.Len(t, state.FreezeHistory, MaxHistory)
	assert.Equal(t, first.Add(5*time.Hour), state.FreezeHistory[0].Timestamp)
	assert.Equal(t, 0, state.PersonalFreezes)
}

func TestGrantPolicyBaselines(t *testing.T) {
	policy := NewGrantPolicy(clock.NewBoundary(time.UTC), 4)
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		plan         models.Plan
		start        models.FreezeState
		wantPersonal int
		wantPool     int
	}{
		{name: "free", plan: models.PlanFree, start: models.FreezeState{PersonalFreezes: 0}, wantPersonal: 1},
		{name: "solo", plan: models.PlanSolo, start: models.FreezeState{PersonalFreezes: 1}, wantPersonal: 3},
		{name: "family replaces personal and accumulates pool", plan: models.PlanFamily, start: models.FreezeState{PersonalFreezes: 5, FamilyPoolFreezes: 2}, wantPersonal: 3, wantPool: 6},
		{name: "unknown plan falls back to free", plan: models.Plan("gold"), start: models.FreezeState{}, wantPersonal: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, granted := policy.Grant(tt.start, tt.plan, now)
			require.True(t, granted)
			assert.Equal(t, tt.wantPersonal, next.PersonalFreezes)
			assert.Equal(t, tt.wantPool, next.FamilyPoolFreezes)
			require.NotNil(t, next.LastFreezeGrantDate)
			assert.Equal(t, now, *next.LastFreezeGrantDate)
		})
	}
}

func TestGrantIsIdempotentWithinMonth(t *testing.T) {
	policy := NewGrantPolicy(clock.NewBoundary(time.UTC), 0)
	first := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	granted, ok := policy.Grant(models.FreezeState{}, models.PlanSolo, first)
	require.True(t, ok)

	spent, ok := ConsumePersonal(granted, first.Add(time.Hour))
	require.True(t, ok)

	again, ok := policy.Grant(spent, models.PlanSolo, time.Date(2024, 3, 30, 23, 0, 0, 0, time.UTC))
	assert.False(t, ok)
	assert.Equal(t, 2, again.PersonalFreezes)
	assert.Equal(t, first, *again.LastFreezeGrantDate)
}

func TestGrantRunsOnCalendarMonthChange(t *testing.T) {
	policy := NewGrantPolicy(clock.NewBoundary(time.UTC), 0)
	last := time.Date(2024, 1, 31, 22, 0, 0, 0, time.UTC)
	state := models.FreezeState{PersonalFreezes: 0, LastFreezeGrantDate: &last}

	next, ok := policy.Grant(state, models.PlanFree, time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, 1, next.PersonalFreezes)

	sameMonthNextYear := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	_, ok = policy.Grant(state, models.PlanFree, sameMonthNextYear)
	assert.True(t, ok)
}
