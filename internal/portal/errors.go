package portal

import "fmt"

// MissingFieldError reports a required entity field absent from the wire.
type MissingFieldError struct {
	Entity string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("portal: entity %s is missing required field %q", e.Entity, e.Field)
}

// ArgumentError reports a violated caller precondition, detected before
// any network traffic.
type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string {
	return "portal: " + e.Message
}
