package jupiter

import (
	"encoding/json"
	"fmt"
	"strings"

	"solana-swap-assistant/internal/domain"
)

// Error codes the API uses when no route can serve the pair and amount.
var noRouteCodes = map[string]bool{
	"COULD_NOT_FIND_ANY_ROUTE": true,
	"NO_ROUTES_FOUND":          true,
	"TOKEN_NOT_TRADABLE":       true,
}

// APIError is a non-200 response from the aggregator.
// It unwraps to domain.ErrNoRouteFound or domain.ErrUpstream.
type APIError struct {
	Endpoint   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("jupiter %s: status %d: %s (%s)", e.Endpoint, e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("jupiter %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// NoRoute reports whether the error means no route exists.
func (e *APIError) NoRoute() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && noRouteCodes[e.Code]
}

func (e *APIError) Unwrap() error {
	if e.NoRoute() {
		return domain.ErrNoRouteFound
	}
	return domain.ErrUpstream
}

// parseAPIError builds an APIError from a response body.
func parseAPIError(endpoint string, status int, body []byte) *APIError {
	apiErr := &APIError{Endpoint: endpoint, StatusCode: status}

	var payload struct {
		Error        string          `json:"error"`
		ErrorMessage string          `json:"errorMessage"`
		ErrorCode    json.RawMessage `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	apiErr.Message = payload.Error
	if apiErr.Message == "" {
		apiErr.Message = payload.ErrorMessage
	}
	if len(payload.ErrorCode) > 0 {
		var code string
		if err := json.Unmarshal(payload.ErrorCode, &code); err == nil {
			apiErr.Code = code
		} else {
			apiErr.Code = string(payload.ErrorCode)
		}
	}
	if apiErr.Code == "" && strings.Contains(strings.ToLower(apiErr.Message), "could not find any route") {
		apiErr.Code = "COULD_NOT_FIND_ANY_ROUTE"
	}
	return apiErr
}
