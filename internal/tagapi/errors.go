// ABOUTME: Error codes reported by the tag-analysis service
// ABOUTME: Maps codes to the messages shown to the user

package tagapi

import "fmt"

// Error codes returned by the analysis service
const (
	CodeMissingImage  = "MISSING_IMAGE"
	CodeUpstreamError = "UPSTREAM_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

const defaultFailureMessage = "Unable to analyze this image right now. Please retry."

// APIError is a failed analysis as reported by the service
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tag analysis failed: %s", e.Code)
	}
	return fmt.Sprintf("tag analysis failed: %s: %s", e.Code, e.Message)
}

// FriendlyMessage returns the user-facing text for an error code,
// falling back to fallback and then to a generic retry message.
func FriendlyMessage(code, fallback string) string {
	switch code {
	case CodeMissingImage:
		return "Please capture or choose an image before submitting."
	case CodeUpstreamError:
		return "The analysis service is temporarily unavailable. Please try again."
	case CodeInternalError:
		return "Something went wrong on our side. Please try again."
	}
	if fallback != "" {
		return fallback
	}
	return defaultFailureMessage
}
