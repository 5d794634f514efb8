package tencentcloud

import (
	"errors"
	"fmt"
)

var errInvalidUTF8 = errors.New("invalid UTF-8")

// TransportError means the request never produced a usable answer from the
// provider: connection failures, TLS failures, timeouts and non-2xx statuses.
// Callers may retry it.
type TransportError struct {
	Action string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tencentcloud: %s: transport: %s", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError is an error reported inside an otherwise successful response
// envelope. The provider processed the request and rejected it.
type ProviderError struct {
	Action    string
	Code      string
	Message   string
	RequestID string
}

func (e *ProviderError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("tencentcloud: %s: %s: %s", e.Action, e.Code, e.Message)
	}
	return fmt.Sprintf("tencentcloud: %s: %s: %s (request %s)", e.Action, e.Code, e.Message, e.RequestID)
}

// EncodingError is returned for input that cannot be serialized or signed,
// and for response bodies that cannot be decoded.
type EncodingError struct {
	Field string
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("tencentcloud: encoding %s: %s", e.Field, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }
