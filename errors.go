package ddns

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can branch on them without matching messages.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport: an external service could not be reached. Retryable.
	KindTransport
	// KindProvider: the DNS provider processed the request and rejected it.
	KindProvider
	// KindDiscovery: the public address could not be determined. Retryable.
	KindDiscovery
	// KindRecordNotFound: no record matches the configured subdomain.
	KindRecordNotFound
	// KindEncoding: a request could not be serialized or signed.
	KindEncoding
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProvider:
		return "provider"
	case KindDiscovery:
		return "discovery"
	case KindRecordNotFound:
		return "record not found"
	case KindEncoding:
		return "encoding"
	}
	return "unknown"
}

// Retryable reports whether a failure of this kind may succeed on a later attempt.
// Unknown failures are treated as transient.
func (k Kind) Retryable() bool {
	switch k {
	case KindProvider, KindRecordNotFound, KindEncoding:
		return false
	}
	return true
}

// Error is the error type returned by Providers, Resolvers and the Reconciler.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "ModifyRecord"

	// Code and Message are set for KindProvider.
	Code    string
	Message string

	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindProvider && e.Code != "":
		return fmt.Sprintf("%s: provider rejected request: %s: %s", e.Op, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRecordNotFound) match any record-not-found Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// ErrRecordNotFound matches, via errors.Is, the failure to find the configured subdomain.
var ErrRecordNotFound = &Error{Kind: KindRecordNotFound}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func discoveryError(op string, err error) error {
	return &Error{Kind: KindDiscovery, Op: op, Err: err}
}

func transportError(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}
