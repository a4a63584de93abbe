package cloud

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an error for the UI and for retry decisions.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth is an invalid or expired credential. Fatal to provider calls until re-authenticated.
	KindAuth
	// KindNetwork is transient and eligible for retry.
	KindNetwork
	// KindPermission is a remote authorization denial, reported verbatim.
	KindPermission
	KindInvalidRegion
	// KindInvalidStateTransition is a local precondition failure and never reaches the network.
	KindInvalidStateTransition
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindNetwork:
		return "NetworkError"
	case KindPermission:
		return "PermissionError"
	case KindInvalidRegion:
		return "InvalidRegionError"
	case KindInvalidStateTransition:
		return "InvalidStateTransition"
	case KindInvalidRequest:
		return "InvalidRequestError"
	default:
		return "Error"
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrAuth                   = &Error{Kind: KindAuth}
	ErrNetwork                = &Error{Kind: KindNetwork}
	ErrPermission             = &Error{Kind: KindPermission}
	ErrInvalidRegion          = &Error{Kind: KindInvalidRegion}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrInvalidRequest         = &Error{Kind: KindInvalidRequest}
)

// Error is a classified failure of a remote or local operation.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Err        error
}

// NewError builds a classified error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNetwork) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the classification of err. Unclassified timeouts and
// network failures are reported as KindNetwork.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindNetwork
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Classify wraps an unclassified error as kind, keeping existing classifications.
func Classify(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if k := KindOf(err); k != KindUnknown {
		kind = k
	}
	return NewError(kind, op, err)
}
