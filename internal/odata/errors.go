package odata

import "fmt"

// FormatError reports a wire value that does not match its expected pattern.
type FormatError struct {
	Value   string
	Pattern string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("odata: value %q does not match pattern %s", e.Value, e.Pattern)
}

// MissingKeyError reports a structurally required key absent from a payload.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("odata: expected key %q", e.Key)
}
