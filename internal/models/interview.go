package models

import (
	"gorm.io/gorm"
)

// Interview is a reusable question-set definition. Versions and their
// questions are owned exclusively by the interview.
type Interview struct {
	gorm.Model
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	// Duration is the allotted session length in minutes.
	Duration   int    `gorm:"not null" json:"duration"`
	FocusAreas string `gorm:"not null" json:"-"`
	IsPublic   bool   `gorm:"not null;default:false" json:"isPublic"`
	CreatorID  string `gorm:"not null;index" json:"creatorId"`

	Technologies []Technology       `gorm:"many2many:interview_technologies" json:"technologies,omitempty"`
	Versions     []InterviewVersion `gorm:"constraint:OnDelete:CASCADE" json:"versions,omitempty"`
}

// FocusAreaList returns the declared focus areas as a slice.
func (i *Interview) FocusAreaList() []string {
	return SplitList(i.FocusAreas)
}

// InterviewVersion is one difficulty-specific instantiation of an
// interview's question set. Questions are generated once and immutable.
type InterviewVersion struct {
	gorm.Model
	InterviewID uint   `gorm:"not null;index:idx_interview_difficulty,unique" json:"interviewId"`
	Difficulty  string `gorm:"not null;index:idx_interview_difficulty,unique" json:"difficulty"`

	Questions []Question `gorm:"foreignKey:VersionID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Sessions  []Session  `gorm:"foreignKey:VersionID;constraint:OnDelete:CASCADE" json:"sessions,omitempty"`
}

// Question belongs to one interview version.
type Question struct {
	gorm.Model
	VersionID    uint   `gorm:"not null;index" json:"versionId"`
	Text         string `gorm:"type:text;not null" json:"text"`
	Type         string `gorm:"not null" json:"type"`
	TechnologyID *uint  `json:"technologyId,omitempty"`
	// Criteria holds optional evaluation criteria, comma-separated.
	Criteria string `json:"-"`

	Technology *Technology `json:"technology,omitempty"`
}

func (q *Question) CriteriaList() []string {
	return SplitList(q.Criteria)
}

// Technology is a name-keyed entity created via upsert when first
// referenced by any interview or question.
type Technology struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}
