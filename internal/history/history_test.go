package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/models"
)

func record(id string, ts time.Time, eval models.Evaluation) models.AttemptRecord {
	return models.AttemptRecord{ID: id, UserID: 1, Question: "q", Attempt: "a", Evaluation: eval, Timestamp: ts}
}

func TestAppendInsertsAtHead(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var h []models.AttemptRecord
	h = Append(h, record("a", base, models.Evaluation{}))
	h = Append(h, record("b", base.Add(time.Minute), models.Evaluation{}))

	require.Len(t, h, 2)
	assert.Equal(t, "b", h[0].ID)
	assert.Equal(t, "a", h[1].ID)
}

func TestAppendDropsOldestAtCapacity(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var h []models.AttemptRecord
	for i := 0; i < MaxAttempts; i++ {
		h = Append(h, record(fmt.Sprintf("r%02d", i), base.Add(time.Duration(i)*time.Minute), models.Evaluation{}))
	}
	require.Len(t, h, MaxAttempts)
	assert.Equal(t, "r49", h[0].ID)
	assert.Equal(t, "r00", h[MaxAttempts-1].ID)

	full := h
	h = Append(h, record("new", base.Add(time.Hour), models.Evaluation{}))

	require.Len(t, h, MaxAttempts)
	assert.Equal(t, "new", h[0].ID)
	assert.Equal(t, "r49", h[1].ID)
	assert.Equal(t, "r01", h[MaxAttempts-1].ID, "exactly the oldest record is dropped")

	// previous slice is untouched
	assert.Equal(t, "r49", full[0].ID)
	assert.Equal(t, "r00", full[MaxAttempts-1].ID)
}

func TestCompute(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := []models.AttemptRecord{
		record("1", base, models.Evaluation{EffortScore: 3, UnderstandingScore: 3, Unlock: true, MasteryAchieved: true}),
		record("2", base, models.Evaluation{EffortScore: 2, Unlock: true}),
		record("3", base, models.Evaluation{EffortScore: 1, MasteryAchieved: true}),
		record("4", base, models.Evaluation{EffortScore: 0}),
	}

	s := Compute(h)
	assert.Equal(t, 4, s.TotalAttempts)
	assert.Equal(t, 2, s.TotalUnlocks)
	assert.Equal(t, 1, s.MasteryUnlocks, "mastery without unlock does not count")
	assert.InDelta(t, 1.5, s.AverageEffortScore, 1e-9)

	assert.Equal(t, Stats{}, Compute(nil))
}

func TestWindow(t *testing.T) {
	boundary := clock.NewBoundary(time.UTC)
	now := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	h := []models.AttemptRecord{
		record("today", now.Add(-time.Hour), models.Evaluation{EffortScore: 3, UnderstandingScore: 2, Unlock: true}),
		record("today-2", now.Add(-2*time.Hour), models.Evaluation{EffortScore: 1, UnderstandingScore: 0}),
		record("3-days", now.Add(-72*time.Hour), models.Evaluation{EffortScore: 2, UnderstandingScore: 1, Unlock: true}),
		record("old", now.Add(-10*24*time.Hour), models.Evaluation{EffortScore: 0, UnderstandingScore: 0}),
	}

	ws := Window(h, now, 7, boundary)
	assert.Equal(t, 7, ws.Days)
	assert.Equal(t, 3, ws.Attempts)
	assert.Equal(t, 2, ws.Unlocks)
	assert.InDelta(t, 2.0, ws.AverageEffortScore, 1e-9)
	assert.InDelta(t, 1.0, ws.AverageUnderstandingScore, 1e-9)
	assert.Equal(t, 2, ws.ActiveDays)

	empty := Window(nil, now, 0, boundary)
	assert.Equal(t, DefaultWindowDays, empty.Days)
	assert.Zero(t, empty.Attempts)
}
