package models

import (
	"time"

	"thinkfirst/internal/clock"
)

// StreakState is a learner's count of consecutive qualifying days.
// count == 0 if and only if LastDate is zero.
type StreakState struct {
	Count    int       `json:"count"`
	LastDate clock.Day `json:"lastDate"`
}

// Consistent reports whether the reset invariant holds
func (s StreakState) Consistent() bool {
	if s.Count < 0 {
		return false
	}
	return (s.Count == 0) == s.LastDate.IsZero()
}

// FreezeEventType distinguishes personal consumption from family pool borrowing
type FreezeEventType string

const (
	FreezeConsumed FreezeEventType = "consumed"
	FreezeBorrowed FreezeEventType = "borrowed"
)

// FreezeSource names where a freeze came from
type FreezeSource string

const (
	SourcePersonal   FreezeSource = "personal"
	SourceFamilyPool FreezeSource = "family_pool"
)

// FreezeEvent is one entry of the freeze audit trail
type FreezeEvent struct {
	Type      FreezeEventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    FreezeSource    `json:"source"`
}

// FreezeState holds a learner's freeze balances and history
type FreezeState struct {
	PersonalFreezes     int           `json:"personalFreezes"`
	FamilyPoolFreezes   int           `json:"familyPoolFreezes"`
	LastFreezeGrantDate *time.Time    `json:"lastFreezeGrantDate"`
	FreezeHistory       []FreezeEvent `json:"freezeHistory"`
}

// Clone returns a deep copy so pure functions never alias caller state
func (f FreezeState) Clone() FreezeState {
	out := f
	if f.LastFreezeGrantDate != nil {
		t := *f.LastFreezeGrantDate
		out.LastFreezeGrantDate = &t
	}
	if f.FreezeHistory != nil {
		out.FreezeHistory = make([]FreezeEvent, len(f.FreezeHistory))
		copy(out.FreezeHistory, f.FreezeHistory)
	}
	return out
}
