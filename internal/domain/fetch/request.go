package fetch

import (
	"encoding/json"
	"net/http"
)

// RequestConfig is the optional part of a request; the zero value is a GET with no body.
type RequestConfig struct {
	Method string
	Header http.Header
	Body   []byte
}

// JSON builds a config that sends v as a JSON body with the given method.
func JSON(method string, v any) (RequestConfig, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return RequestConfig{}, err
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return RequestConfig{Method: method, Header: h, Body: body}, nil
}

// Normalized returns a copy with the method defaulted to GET.
func (c RequestConfig) Normalized() RequestConfig {
	out := RequestConfig{Method: c.Method, Header: c.Header.Clone()}
	if out.Method == "" {
		out.Method = http.MethodGet
	}
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	if c.Body != nil {
		out.Body = append([]byte(nil), c.Body...)
	}
	return out
}

// Request is one invocation: where, how, and the low-cardinality endpoint
// name used for metrics and spans (e.g. "products", "ratings").
type Request struct {
	Endpoint string
	Locator  Locator
	Config   RequestConfig
}
