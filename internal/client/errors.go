package client

import "fmt"

// TransportError reports a non-success HTTP status from the portal,
// keeping the body for diagnosing provider-side schema or session
// problems. This layer never retries; that is the caller's call.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("samaraenergo: %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}
