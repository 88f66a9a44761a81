package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pokemon-trade-client/internal/models"
)

// ErrNotFound is matched (errors.Is) by protocol errors carrying a 404
var ErrNotFound = errors.New("not found")

// TransportError means the request could not be completed at all
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Category is used as a low-cardinality metric attribute
func (e *TransportError) Category() string {
	return "transport"
}

// ProtocolError means the service answered, but not with a usable 2xx response
type ProtocolError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s: status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Category is used as a low-cardinality metric attribute
func (e *ProtocolError) Category() string {
	return "protocol"
}

// newProtocolError extracts the optional {error} / {message} field from a non-2xx body
func newProtocolError(op string, statusCode int, body []byte) *ProtocolError {
	perr := &ProtocolError{Op: op, StatusCode: statusCode}

	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Error != "":
			perr.Message = errResp.Error
		case errResp.Message != "":
			perr.Message = errResp.Message
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		perr.Message = text
	}

	return perr
}

// Message returns the most human-readable description available for err
func Message(err error) string {
	var perr *ProtocolError
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	return err.Error()
}
