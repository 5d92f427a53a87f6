package evaluator

import (
	"fmt"
	"strings"
)

const responseShape = `Respond with a single JSON object with exactly these fields:
{
  "effort_score": 0-3,
  "understanding_score": 0-3,
  "copied": boolean,
  "what_is_right": string,
  "what_is_missing": string,
  "coach_hint": string,
  "level_up_tip": string,
  "unlock": boolean,
  "full_explanation": string,
  "masteryAchieved": boolean
}`

func systemPrompt(masteryMode bool) string {
	var b strings.Builder
	b.WriteString("You are a patient tutor. A learner must try to answer a question before seeing the answer. ")
	b.WriteString("Score the genuine effort and understanding shown in their attempt. ")
	b.WriteString("Set unlock to true when the attempt shows real effort (effort_score of 2 or more) and was not copied. ")
	b.WriteString("Only include full_explanation when unlock is true. ")
	if masteryMode {
		b.WriteString("Mastery mode is on: set masteryAchieved to true only if the attempt fully explains the answer in the learner's own words. ")
	} else {
		b.WriteString("Mastery mode is off: masteryAchieved must be false. ")
	}
	b.WriteString("\n\n")
	b.WriteString(responseShape)
	return b.String()
}

func userPrompt(req Request) string {
	grade := req.GradeLevel
	if grade == "" {
		grade = "unspecified"
	}
	return fmt.Sprintf("Grade level: %s\n\nQuestion:\n%s\n\nLearner's attempt:\n%s", grade, req.Question, req.Attempt)
}
