package models

import "strings"

// Difficulty levels, totally ordered by increasing complexity.
const (
	DifficultyBeginner     = "BEGINNER"
	DifficultyIntermediate = "INTERMEDIATE"
	DifficultyAdvanced     = "ADVANCED"
)

// Question type tags.
const (
	QuestionTechnical      = "TECHNICAL"
	QuestionBehavioral     = "BEHAVIORAL"
	QuestionSystemDesign   = "SYSTEM_DESIGN"
	QuestionProblemSolving = "PROBLEM_SOLVING"
)

// Focus areas an interview can declare.
const (
	FocusTechnical      = "TECHNICAL"
	FocusBehavioral     = "BEHAVIORAL"
	FocusSystemDesign   = "SYSTEM_DESIGN"
	FocusCommunication  = "COMMUNICATION"
	FocusProblemSolving = "PROBLEM_SOLVING"
)

// Session lifecycle statuses. COMPLETED and ABANDONED are terminal.
const (
	SessionPlanned    = "PLANNED"
	SessionInProgress = "IN_PROGRESS"
	SessionPaused     = "PAUSED"
	SessionCompleted  = "COMPLETED"
	SessionAbandoned  = "ABANDONED"
)

// contains all valid difficulty levels
var ValidDifficulties = map[string]bool{
	DifficultyBeginner:     true,
	DifficultyIntermediate: true,
	DifficultyAdvanced:     true,
}

// contains all valid question types
var ValidQuestionTypes = map[string]bool{
	QuestionTechnical:      true,
	QuestionBehavioral:     true,
	QuestionSystemDesign:   true,
	QuestionProblemSolving: true,
}

// contains all valid focus areas
var ValidFocusAreas = map[string]bool{
	FocusTechnical:      true,
	FocusBehavioral:     true,
	FocusSystemDesign:   true,
	FocusCommunication:  true,
	FocusProblemSolving: true,
}

func ValidDifficultiesList() []string {
	return []string{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}
}

func ValidFocusAreasList() []string {
	return []string{FocusTechnical, FocusBehavioral, FocusSystemDesign, FocusCommunication, FocusProblemSolving}
}

// NormalizeEnum upper-cases and trims a user-supplied enum value so
// "beginner" and " Beginner " both match DifficultyBeginner.
func NormalizeEnum(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// JoinList and SplitList convert between a string slice and the
// comma-separated form stored on the row.
func JoinList(values []string) string {
	return strings.Join(values, ",")
}

func SplitList(stored string) []string {
	if stored == "" {
		return nil
	}
	return strings.Split(stored, ",")
}
