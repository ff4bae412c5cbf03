package crmapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MalformedResponseErr marks a response that came back 2xx but omitted a
// field the client cannot proceed without. It is a local validation failure,
// not a transport one.
var MalformedResponseErr = errors.New("malformed response from CRM API")

// StatusError reports a non-2xx response, carrying the status code and the
// server's message when one was readable.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("crm api: %s (status %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("crm api: status %d", e.Code)
}

func newStatusError(resp *http.Response) *StatusError {
	se := &StatusError{Code: resp.StatusCode}

	// Best effort - the server usually sends {"message": "..."}.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return se
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		se.Message = payload.Message
	}
	return se
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}
