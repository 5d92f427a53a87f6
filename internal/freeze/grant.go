package freeze

import (
	"time"

	"thinkfirst/internal/clock"
	"thinkfirst/internal/models"
)

// Personal freeze baselines per plan. Grants replace the personal count with these values.
const (
	FreeBaseline   = 1
	SoloBaseline   = 3
	FamilyBaseline = 3

	// DefaultFamilyPoolGrant is added to the family pool each month
	DefaultFamilyPoolGrant = 5
)

// GrantPolicy replenishes freezes once per calendar month
type GrantPolicy struct {
	Boundary        clock.Boundary
	FamilyPoolGrant int
}

// NewGrantPolicy creates a policy; a non-positive pool grant uses the default
func NewGrantPolicy(boundary clock.Boundary, familyPoolGrant int) GrantPolicy {
	if familyPoolGrant <= 0 {
		familyPoolGrant = DefaultFamilyPoolGrant
	}
	return GrantPolicy{Boundary: boundary, FamilyPoolGrant: familyPoolGrant}
}

// Baseline returns the personal freeze count a plan is reset to. Unknown plans get the free baseline.
func Baseline(plan models.Plan) int {
	switch plan {
	case models.PlanSolo:
		return SoloBaseline
	case models.PlanFamily:
		return FamilyBaseline
	default:
		return FreeBaseline
	}
}

// Due reports whether a grant should run at now given the last grant time
func (p GrantPolicy) Due(last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	return !p.Boundary.SameMonth(*last, now)
}

// Grant applies the monthly grant. Personal freezes are set to the plan baseline;
// family plans additionally top up the pool. Returns false when already granted this month.
func (p GrantPolicy) Grant(state models.FreezeState, plan models.Plan, now time.Time) (models.FreezeState, bool) {
	if !p.Due(state.LastFreezeGrantDate, now) {
		return state, false
	}

	next := state.Clone()
	next.PersonalFreezes = Baseline(plan)
	if plan == models.PlanFamily {
		next.FamilyPoolFreezes += p.FamilyPoolGrant
	}
	granted := now
	next.LastFreezeGrantDate = &granted
	return next, true
}
