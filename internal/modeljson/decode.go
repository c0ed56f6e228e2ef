// Package modeljson recovers JSON objects from free-form model output.
package modeljson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoObject is returned when the text contains no brace-delimited span.
var ErrNoObject = errors.New("no JSON object found in model output")

// Extract returns the span from the first '{' to the last '}' of text.
func Extract(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w (len=%d)", ErrNoObject, len(text))
	}
	return text[start : end+1], nil
}

// Decode unmarshals the JSON object embedded in text into v. It tries the whole
// text, then the extracted span, then a repaired version of the span.
func Decode(text string, v any) error {
	s := strings.TrimSpace(text)

	// Fast path: valid JSON as-is.
	if strings.HasPrefix(s, "{") {
		if err := json.Unmarshal([]byte(s), v); err == nil {
			return nil
		}
	}

	sub, err := Extract(s)
	if err != nil {
		return err
	}
	strictErr := json.Unmarshal([]byte(sub), v)
	if strictErr == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(sub)
	if err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", len(sub), strictErr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("failed to unmarshal repaired JSON (len=%d): %w", len(repaired), err)
	}
	return nil
}
