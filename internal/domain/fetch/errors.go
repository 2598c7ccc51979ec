package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// TransportError reports that the request could not be sent or the response could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch: transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx response. Body is only filled for mutations,
// whose error payload is shown to the user; plain fetches never read it.
type HTTPError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch: http status %d", e.StatusCode)
}

// ParseError reports a response body that is not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fetch: parse: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Kind classifies err into a low-cardinality label.
func Kind(err error) string {
	var (
		te *TransportError
		he *HTTPError
		pe *ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &he):
		return "http"
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &te):
		return "transport"
	default:
		return "internal"
	}
}

// Describe turns err into the short cause shown next to a failure indicator.
func Describe(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return strconv.Itoa(he.StatusCode)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
