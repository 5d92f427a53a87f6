// Package history maintains the capped, most-recent-first log of evaluated attempts
// and derives the aggregate stats badges and progress views are computed from.
package history

import (
	"time"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/models"
)

// MaxAttempts is the number of attempts retained per user
const MaxAttempts = 50

// DefaultWindowDays is the rolling window used for weekly progress
const DefaultWindowDays = 7

// Append inserts rec at the head and drops the oldest records beyond MaxAttempts.
// The input slice is never modified.
func Append(h []models.AttemptRecord, rec models.AttemptRecord) []models.AttemptRecord {
	n := len(h) + 1
	if n > MaxAttempts {
		n = MaxAttempts
	}
	out := make([]models.AttemptRecord, 0, n)
	out = append(out, rec)
	out = append(out, h[:n-1]...)
	return out
}

// Stats are aggregate counts over the whole retained history
type Stats struct {
	TotalAttempts      int     `json:"totalAttempts"`
	TotalUnlocks       int     `json:"totalUnlocks"`
	MasteryUnlocks     int     `json:"masteryUnlocks"`
	AverageEffortScore float64 `json:"averageEffortScore"`
}

// Compute derives Stats from h
func Compute(h []models.AttemptRecord) Stats {
	var s Stats
	effort := 0
	for _, rec := range h {
		s.TotalAttempts++
		effort += rec.Evaluation.EffortScore
		if rec.Evaluation.Unlock {
			s.TotalUnlocks++
		}
		if rec.IsMasteryUnlock() {
			s.MasteryUnlocks++
		}
	}
	if s.TotalAttempts > 0 {
		s.AverageEffortScore = float64(effort) / float64(s.TotalAttempts)
	}
	return s
}

// WindowStats summarizes attempts inside a rolling window ending at now
type WindowStats struct {
	Days                      int     `json:"days"`
	Attempts                  int     `json:"attempts"`
	Unlocks                   int     `json:"unlocks"`
	AverageEffortScore        float64 `json:"averageEffortScore"`
	AverageUnderstandingScore float64 `json:"averageUnderstandingScore"`
	ActiveDays                int     `json:"activeDays"`
}

// Window computes stats for attempts within the last days days (now inclusive)
func Window(h []models.AttemptRecord, now time.Time, days int, boundary clock.Boundary) WindowStats {
	if days <= 0 {
		days = DefaultWindowDays
	}
	ws := WindowStats{Days: days}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	effort, understanding := 0, 0
	active := make(map[clock.Day]bool)
	for _, rec := range h {
		if rec.Timestamp.Before(cutoff) || rec.Timestamp.After(now) {
			continue
		}
		ws.Attempts++
		effort += rec.Evaluation.EffortScore
		understanding += rec.Evaluation.UnderstandingScore
		if rec.Evaluation.Unlock {
			ws.Unlocks++
		}
		active[boundary.Day(rec.Timestamp)] = true
	}
	if ws.Attempts > 0 {
		ws.AverageEffortScore = float64(effort) / float64(ws.Attempts)
		ws.AverageUnderstandingScore = float64(understanding) / float64(ws.Attempts)
	}
	ws.ActiveDays = len(active)
	return ws
}
