// Package freeze implements streak-freeze consumption and the monthly grant policy.
package freeze

import (
	"time"

	"thinkfirst/internal/models"
)

// MaxHistory is the number of freeze events retained per user; older events rotate out
const MaxHistory = 100

// ConsumePersonal spends one personal freeze. It returns the state unchanged and false
// when no personal freeze is available.
func ConsumePersonal(state models.FreezeState, at time.Time) (models.FreezeState, bool) {
	if state.PersonalFreezes <= 0 {
		return state, false
	}
	next := state.Clone()
	next.PersonalFreezes--
	next.FreezeHistory = appendEvent(next.FreezeHistory, models.FreezeEvent{
		Type:      models.FreezeConsumed,
		Timestamp: at,
		Source:    models.SourcePersonal,
	})
	return next, true
}

// BorrowFromFamilyPool spends one freeze from the shared family pool snapshot.
// The storage layer must still claim the freeze atomically; see Pool.
func BorrowFromFamilyPool(state models.FreezeState, at time.Time) (models.FreezeState, bool) {
	if state.FamilyPoolFreezes <= 0 {
		return state, false
	}
	next := state.Clone()
	next.FamilyPoolFreezes--
	next.FreezeHistory = appendEvent(next.FreezeHistory, models.FreezeEvent{
		Type:      models.FreezeBorrowed,
		Timestamp: at,
		Source:    models.SourceFamilyPool,
	})
	return next, true
}

// appendEvent appends to the audit trail and rotates out the oldest entries past MaxHistory
func appendEvent(history []models.FreezeEvent, ev models.FreezeEvent) []models.FreezeEvent {
	history = append(history, ev)
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	return history
}

// UsedCount returns how many freezes have ever been recorded in the retained history
func UsedCount(state models.FreezeState) int {
	return len(state.FreezeHistory)
}
