package badges

import (
	"errors"
	"time"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/freeze"
	"thinkfirst/internal/history"
	"thinkfirst/internal/models"
)

const (
	lateNightHour    = 23
	earlyMorningHour = 8
	lateNightEffort  = 2
	perfectScore     = 3
)

var (
	ErrUnknownBadge   = errors.New("unknown badge")
	ErrAlreadyEarned  = errors.New("badge already earned")
	ErrNotManual      = errors.New("badge is awarded automatically")
	ErrCriteriaNotMet = errors.New("badge criteria not met")
)

// Snapshot is the learner state badges are evaluated against
type Snapshot struct {
	History []models.AttemptRecord
	Streak  models.StreakState
	Freeze  models.FreezeState
}

// Evaluator checks a catalogue against learner snapshots
type Evaluator struct {
	catalog  *Catalog
	boundary clock.Boundary
}

// NewEvaluator creates an evaluator. Local hours for time-of-day badges use boundary.
func NewEvaluator(catalog *Catalog, boundary clock.Boundary) *Evaluator {
	if catalog == nil {
		catalog = Default()
	}
	return &Evaluator{catalog: catalog, boundary: boundary}
}

// Catalog returns the evaluator's catalogue
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// CheckAndAward returns every badge not in earned whose criteria the snapshot now meets,
// in catalogue order, stamped with now. Freeze-driven and manual badges are not
// considered here; see CheckFreezeBadges and AwardManual.
func (e *Evaluator) CheckAndAward(snap Snapshot, earned models.EarnedSet, now time.Time) []models.AwardedBadge {
	stats := history.Compute(snap.History)

	var awarded []models.AwardedBadge
	for _, b := range e.catalog.badges {
		if earned.Has(b.ID) || !autoEvaluated(b.Criteria.Type) {
			continue
		}
		if e.satisfied(b.Criteria, snap, stats) {
			awarded = append(awarded, models.AwardedBadge{Badge: b, AwardedAt: now})
		}
	}
	return awarded
}

// CheckFreezeBadges is the award path for streak_saved, run after a freeze rescued a streak
func (e *Evaluator) CheckFreezeBadges(fs models.FreezeState, earned models.EarnedSet, now time.Time) []models.AwardedBadge {
	var awarded []models.AwardedBadge
	for _, b := range e.catalog.badges {
		if b.Criteria.Type != models.CriteriaStreakSaved || earned.Has(b.ID) {
			continue
		}
		if freeze.UsedCount(fs) > 0 {
			awarded = append(awarded, models.AwardedBadge{Badge: b, AwardedAt: now})
		}
	}
	return awarded
}

// AwardManual is the out-of-band trigger for manual and saved_count badges.
// Manual badges are granted unconditionally; saved_count requires enough freeze history.
func (e *Evaluator) AwardManual(id string, fs models.FreezeState, earned models.EarnedSet, now time.Time) (models.AwardedBadge, error) {
	b, ok := e.catalog.Lookup(id)
	if !ok {
		return models.AwardedBadge{}, ErrUnknownBadge
	}
	if earned.Has(b.ID) {
		return models.AwardedBadge{}, ErrAlreadyEarned
	}

	switch b.Criteria.Type {
	case models.CriteriaManual:
	case models.CriteriaSavedCount:
		if float64(freeze.UsedCount(fs)) < b.Criteria.Value {
			return models.AwardedBadge{}, ErrCriteriaNotMet
		}
	default:
		return models.AwardedBadge{}, ErrNotManual
	}
	return models.AwardedBadge{Badge: b, AwardedAt: now}, nil
}

func autoEvaluated(t models.CriteriaType) bool {
	switch t {
	case models.CriteriaStreakSaved, models.CriteriaSavedCount, models.CriteriaManual:
		return false
	}
	return true
}

// satisfied evaluates one criteria. Unrecognized types are never satisfied.
func (e *Evaluator) satisfied(c models.BadgeCriteria, snap Snapshot, stats history.Stats) bool {
	switch c.Type {
	case models.CriteriaStreak:
		return float64(snap.Streak.Count) >= c.Value
	case models.CriteriaTotalUnlocks:
		return float64(stats.TotalUnlocks) >= c.Value
	case models.CriteriaMasteryUnlocks:
		return float64(stats.MasteryUnlocks) >= c.Value
	case models.CriteriaEffortAvg:
		return stats.TotalAttempts > 0 && stats.AverageEffortScore >= c.Value
	case models.CriteriaMasteryMode:
		return stats.MasteryUnlocks > 0
	case models.CriteriaPerfectScore:
		return anyAttempt(snap.History, func(r models.AttemptRecord) bool {
			return r.Evaluation.EffortScore == perfectScore && r.Evaluation.UnderstandingScore == perfectScore
		})
	case models.CriteriaLateNight:
		return anyAttempt(snap.History, func(r models.AttemptRecord) bool {
			return r.Evaluation.EffortScore >= lateNightEffort && e.boundary.Hour(r.Timestamp) >= lateNightHour
		})
	case models.CriteriaEarlyMorning:
		return anyAttempt(snap.History, func(r models.AttemptRecord) bool {
			return e.boundary.Hour(r.Timestamp) < earlyMorningHour
		})
	}
	return false
}

func anyAttempt(h []models.AttemptRecord, pred func(models.AttemptRecord) bool) bool {
	for _, r := range h {
		if pred(r) {
			return true
		}
	}
	return false
}
