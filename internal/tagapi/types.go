// ABOUTME: Payload types returned by the remote tag-analysis service
// ABOUTME: Mirrors the parsed/emissions shape stored in result_json

package tagapi

import "encoding/json"

// MaterialComponent is one fiber and its share of the garment
type MaterialComponent struct {
	Fiber string  `json:"fiber"`
	Pct   float64 `json:"pct"`
}

// Care holds the care-label instructions; nil means the tag didn't say
type Care struct {
	Washing     *string `json:"washing"`
	Drying      *string `json:"drying"`
	Ironing     *string `json:"ironing"`
	DryCleaning *string `json:"dry_cleaning"`
}

// ParsedTag is what the service read off the garment tag
type ParsedTag struct {
	Country   *string             `json:"country"`
	Materials []MaterialComponent `json:"materials"`
	Care      Care                `json:"care"`
}

// Emissions is the lifecycle CO2e estimate for a garment
type Emissions struct {
	TotalKgCO2e float64            `json:"total_kgco2e"`
	Breakdown   map[string]float64 `json:"breakdown"`
	Assumptions map[string]any     `json:"assumptions"` // string or number values
}

// Response is a successful analysis
type Response struct {
	Parsed    ParsedTag `json:"parsed"`
	Emissions Emissions `json:"emissions"`
}

// TotalGrams converts the emissions total to grams, the unit stored per scan
func (e Emissions) TotalGrams() float64 {
	return e.TotalKgCO2e * 1000
}

// StoredResult is the decoded form of a scan's result_json
type StoredResult struct {
	Parsed    *ParsedTag      `json:"parsed,omitempty"`
	Emissions *Emissions      `json:"emissions,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"` // opaque; usually an APIError
}
