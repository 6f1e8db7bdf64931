package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when a success response does not hold a
// list of task records.
var ErrMalformedResponse = errors.New("malformed scoring response")

// StatusError is a non-2xx response from the scoring service.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
	// Detail is the "detail" member of a JSON error body, if present.
	Detail string
}

func (e *StatusError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: %d %s", e.Endpoint, e.StatusCode, msg)
}

// Message returns the text to show a user: the server's detail when it sent
// one, then any other JSON error body, otherwise the HTTP status.
func (e *StatusError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if body := bytes.TrimSpace(e.Body); len(body) > 0 && json.Valid(body) {
		return string(body)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
