package models

import (
	"gorm.io/gorm"
)

// Feedback is the structured post-session evaluation, one-to-one with a
// completed session. Dimension scores are nullable: the model may decline
// to score a dimension and that must round-trip as absent, not zero.
type Feedback struct {
	gorm.Model
	SessionID uint `gorm:"uniqueIndex;not null" json:"sessionId"`

	Technical      *float64 `json:"technical,omitempty"`
	Communication  *float64 `json:"communication,omitempty"`
	ProblemSolving *float64 `json:"problemSolving,omitempty"`
	Clarity        *float64 `json:"clarity,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	FillerWords    *float64 `json:"fillerWords,omitempty"`
	Pacing         *float64 `json:"pacing,omitempty"`

	Summary         string `gorm:"type:text" json:"summary"`
	ImprovementPlan string `gorm:"type:text" json:"improvementPlan"`
	// QuestionAnalysis is the model's per-question breakdown, stored as
	// the JSON it arrived in.
	QuestionAnalysis string `gorm:"type:text" json:"-"`

	TechnologyScores []TechnologyScore `gorm:"constraint:OnDelete:CASCADE" json:"technologyScores,omitempty"`
}

// TechnologyScore is a per-technology sub-score with free-text
// strengths and weaknesses.
type TechnologyScore struct {
	gorm.Model
	FeedbackID uint    `gorm:"not null;index" json:"feedbackId"`
	Technology string  `gorm:"not null" json:"technology"`
	Score      float64 `gorm:"not null" json:"score"`
	Strengths  string  `gorm:"type:text" json:"strengths"`
	Weaknesses string  `gorm:"type:text" json:"weaknesses"`
}

// OverallScore aggregates the non-nil scores among technical,
// problem-solving and communication. Zero scored dimensions yield 0 by
// policy rather than an error.
func (f *Feedback) OverallScore() float64 {
	var sum float64
	var n int
	for _, score := range []*float64{f.Technical, f.ProblemSolving, f.Communication} {
		if score != nil {
			sum += *score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
