// Package transcript encodes the persisted conversation log format:
// turns separated by a blank line, each turn "<ROLE>: <content>" with the
// role upper-cased. Content may itself contain colons, so parsing splits
// only on the first colon of a turn.
package transcript

import (
	"strings"
)

const turnSeparator = "\n\n"

// Turn is one utterance in the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Serialize renders turns into the wire format.
func Serialize(turns []Turn) string {
	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		parts = append(parts, strings.ToUpper(turn.Role)+": "+turn.Content)
	}
	return strings.Join(parts, turnSeparator)
}

// Parse reads the wire format back into turns. Blocks without a colon
// are treated as content continuations of an unknown speaker and kept
// with an empty role rather than dropped.
func Parse(text string) []Turn {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	blocks := strings.Split(text, turnSeparator)
	turns := make([]Turn, 0, len(blocks))
	for _, block := range blocks {
		role, content, found := strings.Cut(block, ":")
		if !found {
			turns = append(turns, Turn{Content: block})
			continue
		}
		turns = append(turns, Turn{
			Role:    strings.ToUpper(strings.TrimSpace(role)),
			Content: strings.TrimPrefix(content, " "),
		})
	}
	return turns
}

// Append adds a turn to an already-serialized transcript.
func Append(existing string, turn Turn) string {
	rendered := strings.ToUpper(turn.Role) + ": " + turn.Content
	if existing == "" {
		return rendered
	}
	return existing + turnSeparator + rendered
}
