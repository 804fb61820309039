package models

import (
	"strings"
)

// CreateInterviewRequest is the full-form interview creation payload.
type CreateInterviewRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Duration     int      `json:"duration"`
	FocusAreas   []string `json:"focus_areas"`
	Technologies []string `json:"technologies"`
	IsPublic     bool     `json:"is_public"`
	// Difficulties selects which versions to generate up front.
	// Defaults to BEGINNER when empty.
	Difficulties []string `json:"difficulties"`
	RequestID    string   `json:"request_id"`
}

// implements the Validator interface
func (r *CreateInterviewRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return &ErrorResponse{
			Code:    "missing_title",
			Message: "Title field is required",
		}
	}

	if r.Duration <= 0 {
		return &ErrorResponse{
			Code:    "missing_duration",
			Message: "Duration must be a positive number of minutes",
		}
	}

	if len(r.FocusAreas) == 0 {
		return &ErrorResponse{
			Code:    "missing_focus_areas",
			Message: "At least one focus area is required",
		}
	}
	for i, area := range r.FocusAreas {
		normalized := NormalizeEnum(area)
		if !ValidFocusAreas[normalized] {
			return &ErrorResponse{
				Code:    "invalid_focus_area",
				Message: "Focus area must be one of: TECHNICAL, BEHAVIORAL, SYSTEM_DESIGN, COMMUNICATION, PROBLEM_SOLVING",
			}
		}
		r.FocusAreas[i] = normalized
	}

	if len(r.Technologies) == 0 {
		return &ErrorResponse{
			Code:    "missing_technologies",
			Message: "At least one technology name is required",
		}
	}
	for _, name := range r.Technologies {
		if strings.TrimSpace(name) == "" {
			return &ErrorResponse{
				Code:    "invalid_technology",
				Message: "Technology names must not be empty",
			}
		}
	}

	if len(r.Difficulties) == 0 {
		r.Difficulties = []string{DifficultyBeginner}
	}
	for i, level := range r.Difficulties {
		normalized := NormalizeEnum(level)
		if !ValidDifficulties[normalized] {
			return &ErrorResponse{
				Code:    "invalid_difficulty",
				Message: "Difficulty must be one of: BEGINNER, INTERMEDIATE, ADVANCED",
			}
		}
		r.Difficulties[i] = normalized
	}

	return nil
}

// GenerateInterviewRequest is the agent-generation payload. The shape is
// discriminated on Type so unknown payload kinds are rejected before any
// business logic runs.
type GenerateInterviewRequest struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	Level     string `json:"level"`
	Techstack string `json:"techstack"`
	UserID    string `json:"userid"`
}

func (r *GenerateInterviewRequest) Validate() error {
	if r.Type != "generate" {
		return &ErrorResponse{Code: "invalid_type", Message: "Type must be \"generate\""}
	}
	if strings.TrimSpace(r.Role) == "" {
		return &ErrorResponse{Code: "missing_role", Message: "Role field is required"}
	}
	if strings.TrimSpace(r.Level) == "" {
		return &ErrorResponse{Code: "missing_level", Message: "Level field is required"}
	}
	if !ValidDifficulties[NormalizeEnum(r.Level)] {
		return &ErrorResponse{Code: "invalid_level", Message: "Level must be one of: BEGINNER, INTERMEDIATE, ADVANCED"}
	}
	if strings.TrimSpace(r.Techstack) == "" {
		return &ErrorResponse{Code: "missing_techstack", Message: "Techstack field is required"}
	}
	if strings.TrimSpace(r.UserID) == "" {
		return &ErrorResponse{Code: "missing_userid", Message: "Userid field is required"}
	}
	r.Level = NormalizeEnum(r.Level)
	return nil
}

// CreateSessionRequest instantiates a PLANNED session against a version.
type CreateSessionRequest struct {
	VersionID uint `json:"version_id"`
}

func (r *CreateSessionRequest) Validate() error {
	if r.VersionID == 0 {
		return &ErrorResponse{Code: "missing_version_id", Message: "Version id is required"}
	}
	return nil
}

// PauseSessionRequest carries the client-reconstructed transcript, which
// must be persisted before the status flips to PAUSED.
type PauseSessionRequest struct {
	Transcript string `json:"transcript"`
}

func (r *PauseSessionRequest) Validate() error {
	if strings.TrimSpace(r.Transcript) == "" {
		return &ErrorResponse{Code: "missing_transcript", Message: "Transcript is required when pausing"}
	}
	return nil
}

// IncompleteSessionRequest reports an unexpected termination. The
// transcript may be partial or absent depending on how the call died.
type IncompleteSessionRequest struct {
	Transcript string `json:"transcript"`
}

func (r *IncompleteSessionRequest) Validate() error {
	return nil
}

// MinutesRequest covers both purchase and deduction amounts.
type MinutesRequest struct {
	Minutes int `json:"minutes"`
}

func (r *MinutesRequest) Validate() error {
	if r.Minutes <= 0 {
		return &ErrorResponse{Code: "invalid_minutes", Message: "Minutes must be a positive number"}
	}
	return nil
}
