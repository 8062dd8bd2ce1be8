// Package response locates and parses the JSON object embedded in free-form
// model output.
//
// Models routinely wrap their answer in prose ("Sure! Here is...") or in
// markdown fences. Extract ignores everything outside the outermost brace
// span and parses what is inside; it never repairs the JSON itself.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when the model output contains no parseable JSON
// object.
var ErrMalformed = errors.New("response: malformed model output")

// Extract returns the JSON object spanning from the first '{' to the last '}'
// of raw. It fails with [ErrMalformed] when no such span exists, when the span
// is not valid JSON, or when it decodes to something other than an object.
func Extract(raw string) (map[string]any, error) {
	span, ok := objectSpan(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformed)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: JSON value is not an object", ErrMalformed)
	}
	return obj, nil
}

// objectSpan returns raw[first '{' : last '}'] inclusive.
func objectSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(raw, "}")
	if end < start {
		return "", false
	}
	return raw[start : end+1], true
}
