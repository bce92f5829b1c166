package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrEmptyResponse is returned when a 2xx response carries no body.
	ErrEmptyResponse = errors.New("empty response body")

	// ErrMalformedResponse is returned when a 2xx body does not match the
	// expected envelope.
	ErrMalformedResponse = errors.New("malformed response body")
)

// NetworkError reports that no HTTP response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError is a non-2xx response. Body holds the raw payload; Detail and
// Fields are filled when the body is a JSON object of the usual shapes
// ({"detail": "..."} or {"phone_number": ["..."]}).
type BackendError struct {
	Status int
	Body   []byte
	Detail string
	Fields map[string][]string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message())
}

// Message condenses the body into one human-readable line.
func (e *BackendError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		k := keys[0]
		return k + ": " + strings.Join(e.Fields[k], " ")
	}
	if text := http.StatusText(e.Status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", e.Status)
}

// IsClientError reports a 4xx status.
func (e *BackendError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

func newBackendError(status int, body []byte) *BackendError {
	be := &BackendError{Status: status, Body: body}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return be
	}
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			switch key {
			case "detail", "error", "message":
				if be.Detail == "" || key == "detail" {
					be.Detail = s
				}
				continue
			}
			be.addField(key, s)
			continue
		}
		var list []string
		if err := json.Unmarshal(value, &list); err == nil && len(list) > 0 {
			be.addField(key, list...)
		}
	}
	return be
}

func (e *BackendError) addField(key string, msgs ...string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[key] = append(e.Fields[key], msgs...)
}
