package hue

import "fmt"

// apiResult is one entry of a v1 write response.
type apiResult struct {
	Success map[string]any `json:"success,omitempty"`
	Error   *APIError      `json:"error,omitempty"`
}

// APIError is an error object returned by the v1 API.
type APIError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hue error %d at %s: %s", e.Type, e.Address, e.Description)
}

const errorUnauthorized = 1

// Unauthorized reports whether the bridge rejected the token.
func (e *APIError) Unauthorized() bool {
	return e.Type == errorUnauthorized
}
