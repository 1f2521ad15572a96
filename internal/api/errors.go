package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrDecode is wrapped by errors for success responses whose body is not valid JSON
var ErrDecode = errors.New("invalid response body")

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code      int
	Message   string // "error" field of the body, else "message"
	Malformed bool   // body was not a JSON object
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("haven API error: status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("haven API error: status %d", e.Code)
}

// IsUnauthorized reports whether err is an authentication failure
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}

// IsDecode reports whether err came from an undecodable response body
func IsDecode(err error) bool {
	if errors.Is(err, ErrDecode) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Malformed
}

// AsStatus returns the StatusError wrapped in err, if any
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
