package fiscal

import "fmt"

// AuthError means an access token could not be obtained, or stayed invalid
// after the single refresh the retry policy allows. Terminal for the call.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fiscal: access token unavailable: %v", e.Err)
	}
	return "fiscal: access token unavailable"
}

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError is a locally-detectable payload defect found before any
// network call.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// Validation error codes.
const (
	ErrCodeMissingContact = "missing_contact"
	ErrCodeMissingTax     = "missing_tax"
)
