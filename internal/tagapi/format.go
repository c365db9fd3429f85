// ABOUTME: Display helpers for scan results
// ABOUTME: Breakdown row ordering, CO2 formatting and name fallbacks

package tagapi

import (
	"encoding/json"
	"fmt"
	"math"
)

// BreakdownLabels maps breakdown keys to row labels
var BreakdownLabels = map[string]string{
	"materials":     "Material",
	"manufacturing": "Production",
	"washing":       "Washing",
	"drying":        "Drying",
	"ironing":       "Ironing",
	"dry_cleaning":  "Dry Cleaning",
}

// BreakdownOrder is the display order for breakdown rows
var BreakdownOrder = []string{
	"materials",
	"manufacturing",
	"washing",
	"drying",
	"ironing",
	"dry_cleaning",
}

// BreakdownRow is one labelled line of the emissions breakdown
type BreakdownRow struct {
	Key   string
	Label string
	Value float64 // kg CO2e
}

// BreakdownRows returns the known breakdown entries with a positive value,
// in display order. Unknown keys are not shown.
func BreakdownRows(e Emissions) []BreakdownRow {
	var rows []BreakdownRow
	for _, key := range BreakdownOrder {
		v, ok := e.Breakdown[key]
		if !ok || v <= 0 {
			continue
		}
		label, ok := BreakdownLabels[key]
		if !ok {
			label = key
		}
		rows = append(rows, BreakdownRow{Key: key, Label: label, Value: v})
	}
	return rows
}

// FormatCO2 renders a kg CO2e figure: whole kilograms from 1 kg up, grams below.
func FormatCO2(kg float64) string {
	if kg >= 1 {
		return fmt.Sprintf("%.0f kg", math.Round(kg))
	}
	return fmt.Sprintf("%.0f g", kg*1000)
}

// DisplayName returns the scan's label or the generic fallback
func DisplayName(name *string) string {
	if name == nil || *name == "" {
		return "Tag scan"
	}
	return *name
}

// DisplayCategory returns the scan's category or the generic fallback
func DisplayCategory(category *string) string {
	if category == nil || *category == "" {
		return "Garment"
	}
	return *category
}

// DecodeResult parses a stored result_json. A nil input decodes to nil.
func DecodeResult(resultJSON *string) (*StoredResult, error) {
	if resultJSON == nil {
		return nil, nil
	}
	var out StoredResult
	if err := json.Unmarshal([]byte(*resultJSON), &out); err != nil {
		return nil, fmt.Errorf("decoding scan result: %w", err)
	}
	return &out, nil
}

// ParseResponse decodes a raw analysis response body
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding analysis response: %w", err)
	}
	return &resp, nil
}
