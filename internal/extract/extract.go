// Package extract pulls structured JSON out of free-form model text.
// Models routinely wrap their payload in prose or markdown fencing, so
// the extractor scans for the first opening delimiter and the last
// matching closing delimiter. That span scan is lenient: prose that
// itself contains brace characters can widen the span and break the
// parse. Fenced ```json blocks are tried first, which narrows the common
// case; the legacy scan remains the fallback for unfenced output.
package extract

import (
	"encoding/json"
	"strings"
)

// ModelResponseError signals that a model response carried no parseable
// JSON value. The raw text travels with it for diagnostics; callers must
// convert it into a fallback path or a user-visible failure, never crash.
type ModelResponseError struct {
	Raw    string
	Reason string
}

func (e *ModelResponseError) Error() string {
	return "model response invalid: " + e.Reason
}

// JSON locates the single JSON value embedded in text and unmarshals it
// into out (a pointer to map, slice or struct).
func JSON(text string, out interface{}) error {
	raw, err := Raw(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ModelResponseError{Raw: text, Reason: "malformed JSON: " + err.Error()}
	}
	return nil
}

// Raw returns the extracted JSON span without parsing it into a shape.
func Raw(text string) (json.RawMessage, error) {
	if fenced, ok := fencedBlock(text); ok {
		if json.Valid([]byte(fenced)) {
			return json.RawMessage(fenced), nil
		}
	}

	span, ok := delimitedSpan(text)
	if !ok {
		return nil, &ModelResponseError{Raw: text, Reason: "no JSON object or array found"}
	}
	if !json.Valid([]byte(span)) {
		return nil, &ModelResponseError{Raw: text, Reason: "extracted span is not valid JSON"}
	}
	return json.RawMessage(span), nil
}

// fencedBlock returns the body of the first ```json (or bare ```) fence.
func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// drop the language tag line
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// delimitedSpan finds the first '{' or '[' and the last matching closer.
// First-open to last-close is the documented, intentionally lenient rule.
func delimitedSpan(text string) (string, bool) {
	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')

	start, closer := objStart, byte('}')
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start, closer = arrStart, ']'
	}
	if start < 0 {
		return "", false
	}

	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}
