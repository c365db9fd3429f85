// ABOUTME: Write-time filter for scan analysis payloads
// ABOUTME: Keeps only parsed/emissions/error and drops images, prompts and logs

package store

import (
	"encoding/json"
	"fmt"
)

// allowedResultKeys are the only top-level keys that may reach result_json
var allowedResultKeys = map[string]struct{}{
	"parsed":    {},
	"emissions": {},
	"error":     {},
}

// blockedResultKeys are never persisted, whatever the allow-list says
var blockedResultKeys = map[string]struct{}{
	"image":    {},
	"dataUrl":  {},
	"base64":   {},
	"raw_ocr":  {},
	"prompt":   {},
	"response": {},
	"logs":     {},
}

// SanitizeResult filters an analysis payload down to the persisted shape.
//
// Anything that is not a string-keyed map yields nil. Only top-level keys are
// filtered; values under an allowed key are encoded as-is. A filtered object
// with no keys also yields nil. An error is returned only when an allowed
// value cannot be encoded as JSON.
func SanitizeResult(input any) (*string, error) {
	source, ok := input.(map[string]any)
	if !ok || source == nil {
		return nil, nil
	}

	out := make(map[string]any, len(allowedResultKeys))
	for key, value := range source {
		if _, ok := allowedResultKeys[key]; !ok {
			continue
		}
		if _, blocked := blockedResultKeys[key]; blocked {
			continue
		}
		out[key] = value
	}

	if len(out) == 0 {
		return nil, nil
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding scan result: %w", err)
	}
	s := string(b)
	return &s, nil
}
