package llm

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned when neither the call nor the config carries a credential
var ErrMissingAPIKey = errors.New("API key is required")

// Failure kinds as reported in batch diagnostics
const (
	KindTransport  = "transport"
	KindProtocol   = "protocol"
	KindValidation = "validation"
)

// TransportError means no usable reply was obtained: network failure,
// non-success status, timeout, or an empty reply.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError means the reply content was not parseable JSON
type ProtocolError struct {
	Provider string
	Content  string
	Err      error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s protocol: %v (content: %q)", e.Provider, e.Err, truncate(e.Content, 80))
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ValidationError means the reply parsed but violated the score contract
type ValidationError struct {
	Expected int
	Got      int
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: expected %d scores, got %d", e.Expected, e.Got)
}

// IsTransport reports whether err is a *TransportError
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsProtocol reports whether err is a *ProtocolError
func IsProtocol(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a *ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// Kind classifies a scoring error for diagnostics
func Kind(err error) string {
	switch {
	case IsValidation(err):
		return KindValidation
	case IsProtocol(err):
		return KindProtocol
	case IsTransport(err):
		return KindTransport
	default:
		return ""
	}
}

// truncate keeps at most n runes of s
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
