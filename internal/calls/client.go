// Package calls wraps the external real-time voice SDK. The SDK itself
// is an opaque collaborator: this package only defines the control
// surface the session lifecycle needs (start with a persona and template
// variables, stop, and an event stream) plus a recorded fake for tests.
package calls

import (
	"context"
)

// AssistantConfig selects the live interviewer persona.
type AssistantConfig struct {
	Name         string
	Model        string
	SystemPrompt string
}

// Variables are the template values injected into the assistant prompt:
// "questions" always, "previousTranscript" on resume.
type Variables map[string]string

type EventKind string

const (
	EventCallStart   EventKind = "call-start"
	EventCallEnd     EventKind = "call-end"
	EventMessage     EventKind = "message"
	EventSpeechStart EventKind = "speech-start"
	EventSpeechEnd   EventKind = "speech-end"
	EventError       EventKind = "error"
)

// Event is one asynchronous callback from the live call.
type Event struct {
	Kind    EventKind `json:"kind"`
	Role    string    `json:"role,omitempty"`
	Content string    `json:"content,omitempty"`
	Err     string    `json:"error,omitempty"`
}

// Client is one live call connection.
type Client interface {
	Start(ctx context.Context, config AssistantConfig, vars Variables) error
	Stop(ctx context.Context) error
	// Events delivers call events in order. The channel closes when the
	// call ends.
	Events() <-chan Event
}

// Dialer creates a connection per session.
type Dialer interface {
	Dial(ctx context.Context, sessionID uint) (Client, error)
}
