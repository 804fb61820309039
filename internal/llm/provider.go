package llm

import (
	"context"
)

// Request is the uniform generation request shape shared by every
// AI-calling component: a prompt plus an optional system persona.
type Request struct {
	Prompt string
	System string
}

// Response carries the raw model text plus call metadata.
type Response struct {
	Text             string
	Model            string
	ProcessingMillis int64
}

// defines the interface for LLM providers
type Provider interface {
	GenerateContent(ctx context.Context, req Request) (*Response, error)
	GetProviderName() string
}

// represents an error from an LLM provider
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes
// For current and future use across different providers
const (
	ErrCodeAPIKey       = "invalid_api_key"
	ErrCodeRateLimit    = "rate_limit_exceeded"
	ErrCodeServiceDown  = "service_unavailable"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeTimeout      = "timeout"
)
