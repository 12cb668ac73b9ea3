package facility

import "fmt"

// ValidationError identifies a malformed input field. It is the only error
// the engine surfaces for bad input; out-of-range numbers are clamped instead.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
