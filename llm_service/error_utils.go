package llm_service

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// OpenRouterError represents the error structure returned by the OpenRouter API
type OpenRouterError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type OpenRouterHttpError struct {
	StatusCode int
	Message    string
	RawBody    string
}

func (e *OpenRouterHttpError) Error() string {
	return fmt.Sprintf("OpenRouter API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// newOpenRouterHttpError extracts error details from a non-200 API response,
// falling back to the generic status text when the body is not the documented
// error shape.
func newOpenRouterHttpError(statusCode int, body []byte) *OpenRouterHttpError {
	httpErr := &OpenRouterHttpError{
		StatusCode: statusCode,
		Message:    http.StatusText(statusCode),
		RawBody:    string(body),
	}

	var apiErr OpenRouterError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		httpErr.Message = apiErr.Error.Message
	}

	return httpErr
}
