package models

import "time"

// Evaluation is the fixed-shape result returned by the external evaluator
type Evaluation struct {
	EffortScore        int    `json:"effort_score"`
	UnderstandingScore int    `json:"understanding_score"`
	Copied             bool   `json:"copied"`
	WhatIsRight        string `json:"what_is_right"`
	WhatIsMissing      string `json:"what_is_missing"`
	CoachHint          string `json:"coach_hint,omitempty"`
	LevelUpTip         string `json:"level_up_tip,omitempty"`
	Unlock             bool   `json:"unlock"`
	FullExplanation    string `json:"full_explanation"`
	MasteryAchieved    bool   `json:"masteryAchieved,omitempty"`
	Fallback           bool   `json:"fallback,omitempty"`
}

// AttemptRecord is one evaluated think-first attempt
type AttemptRecord struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"userId"`
	Question    string     `json:"question"`
	Attempt     string     `json:"attempt"`
	MasteryMode bool       `json:"masteryMode"`
	Evaluation  Evaluation `json:"evaluation"`
	Timestamp   time.Time  `json:"timestamp"`
}

// IsMasteryUnlock reports whether the attempt unlocked the answer with mastery achieved
func (a AttemptRecord) IsMasteryUnlock() bool {
	return a.Evaluation.Unlock && a.Evaluation.MasteryAchieved
}
