package models

import (
	"time"

	"gorm.io/gorm"
)

// Session represents one user's timed attempt at an interview version.
//
// Duration, difficulty, focus areas and technologies are denormalized at
// creation so session queries never need the parent interview.
type Session struct {
	gorm.Model
	UserID    string `gorm:"not null;index" json:"userId"`
	VersionID uint   `gorm:"not null;index" json:"versionId"`
	Status    string `gorm:"not null;default:PLANNED" json:"status"`

	Duration     int    `gorm:"not null" json:"duration"`
	Difficulty   string `gorm:"not null" json:"difficulty"`
	FocusAreas   string `json:"-"`
	Technologies string `json:"-"`

	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	// ElapsedSeconds accumulates time spent across pause/resume cycles,
	// excluding the currently running segment.
	ElapsedSeconds int `gorm:"not null;default:0" json:"elapsedSeconds"`

	// Transcript is the append-only turn-delimited text log.
	Transcript string `gorm:"type:text" json:"transcript,omitempty"`

	// OverallScore stays nil until feedback exists.
	OverallScore *float64 `json:"overallScore,omitempty"`
	// ActualDuration is the rounded total minutes, set at termination.
	ActualDuration int `json:"actualDuration"`

	Version  InterviewVersion `json:"-"`
	Feedback *Feedback        `json:"feedback,omitempty"`
}

func (s *Session) FocusAreaList() []string {
	return SplitList(s.FocusAreas)
}

func (s *Session) TechnologyList() []string {
	return SplitList(s.Technologies)
}

// Terminal reports whether the session can never transition again.
func (s *Session) Terminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionAbandoned
}

// ElapsedAt returns the total elapsed duration as of now, counting the
// accumulated seconds plus the running segment if one is active.
func (s *Session) ElapsedAt(now time.Time) time.Duration {
	elapsed := time.Duration(s.ElapsedSeconds) * time.Second
	if s.Status == SessionInProgress && s.StartedAt != nil {
		elapsed += now.Sub(*s.StartedAt)
	}
	return elapsed
}
