package models

// uniform error responses
type ErrorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Details []ValidationErrorDetail `json:"details,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Code + ": " + e.Message
}

// single field validation error
type ValidationErrorDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// InterviewResult is the normalized builder response: either a created
// interview or an error string, never a raw panic across the boundary.
type InterviewResult struct {
	Success   bool       `json:"success"`
	Interview *Interview `json:"interview,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// SessionResult wraps session lifecycle responses.
type SessionResult struct {
	Success bool     `json:"success"`
	Session *Session `json:"session,omitempty"`
	Error   string   `json:"error,omitempty"`
}
