package models

import "time"

// CriteriaType identifies the rule a badge is unlocked by
type CriteriaType string

const (
	CriteriaStreak         CriteriaType = "streak"
	CriteriaTotalUnlocks   CriteriaType = "total_unlocks"
	CriteriaMasteryUnlocks CriteriaType = "mastery_unlocks"
	CriteriaEffortAvg      CriteriaType = "effort_score_avg"
	CriteriaMasteryMode    CriteriaType = "mastery_mode"
	CriteriaPerfectScore   CriteriaType = "perfect_score"
	CriteriaLateNight      CriteriaType = "late_night"
	CriteriaEarlyMorning   CriteriaType = "early_morning"
	CriteriaStreakSaved    CriteriaType = "streak_saved"
	CriteriaSavedCount     CriteriaType = "saved_count"
	CriteriaManual         CriteriaType = "manual"
)

// BadgeCriteria is the declarative unlock rule of a badge
type BadgeCriteria struct {
	Type  CriteriaType `json:"type" yaml:"type"`
	Value float64      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Badge is a one-time achievement definition
type Badge struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Icon        string        `json:"icon,omitempty" yaml:"icon,omitempty"`
	Criteria    BadgeCriteria `json:"criteria" yaml:"criteria"`
}

// EarnedBadge records that a user holds a badge. Immutable once created.
type EarnedBadge struct {
	BadgeID   string    `json:"badgeId"`
	AwardedAt time.Time `json:"awardedAt"`
}

// AwardedBadge is a badge newly crossed in one evaluation pass
type AwardedBadge struct {
	Badge
	AwardedAt time.Time `json:"awardedAt"`
}

// EarnedSet is the set of badge ids a user already holds
type EarnedSet map[string]bool

// NewEarnedSet builds a set from stored earned badges
func NewEarnedSet(earned []EarnedBadge) EarnedSet {
	set := make(EarnedSet, len(earned))
	for _, e := range earned {
		set[e.BadgeID] = true
	}
	return set
}

// Has reports whether id is already earned
func (s EarnedSet) Has(id string) bool {
	return s[id]
}
