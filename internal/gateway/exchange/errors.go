package exchange

import (
	"errors"
	"fmt"
)

// ErrConnectivity marks failures to reach the venue at all (network errors,
// failed ping). Wrapped errors carry the underlying cause.
var ErrConnectivity = errors.New("exchange unreachable")

// APIError is a request the venue received and rejected. Code and Message
// carry the venue's structured error payload.
type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange api error: code=%d msg=%s", e.Code, e.Message)
}

// IsAPIError reports whether err (or anything it wraps) is a venue rejection.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
