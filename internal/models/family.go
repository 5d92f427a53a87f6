package models

import "time"

// Family groups learners under one parent and owns the shared freeze pool
type Family struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	ParentEmail     string     `json:"parentEmail,omitempty"`
	PoolFreezes     int        `json:"poolFreezes"`
	LastPoolGrantAt *time.Time `json:"lastPoolGrantAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
