package models

import "time"

// Plan is a subscription tier
type Plan string

const (
	PlanFree   Plan = "free"
	PlanSolo   Plan = "solo"
	PlanFamily Plan = "family"
)

// Valid reports whether p is a known plan
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanSolo, PlanFamily:
		return true
	}
	return false
}

// User represents a learner account
type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Plan       Plan      `json:"plan"`
	FamilyID   *int64    `json:"familyId,omitempty"`
	GradeLevel string    `json:"gradeLevel,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// InFamily reports whether the user shares a family freeze pool
func (u *User) InFamily() bool {
	return u.FamilyID != nil && *u.FamilyID > 0
}

// NotificationConfig holds a user's parent notification preferences
type NotificationConfig struct {
	BadgeEmails bool `json:"badgeEmails"`
	PoolEmails  bool `json:"poolEmails"`
}

// DefaultNotificationConfig returns the preferences used when none are stored
func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{BadgeEmails: true, PoolEmails: true}
}
