package ted

import "fmt"

// APIError is returned for any failed interaction with the TED API. The
// status code is the upstream HTTP status, or 503 when retries were
// exhausted on transient failures.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ted api: %s (status %d)", e.Message, e.StatusCode)
	}
	return "ted api: " + e.Message
}
