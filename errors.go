// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds produced by the client. Servers may declare any other kind
// through the errinfo field of a response.
const (
	KindNetwork          = "NETWORK_ERROR"
	KindResUnresolvable  = "RES_CANNOT_BE_RESOLVED"
	KindRequestPrevented = "REQ_PREVENT"

	// Server-side conventions, forwarded verbatim.
	KindPtlNotFound     = "PTL_NOT_FOUND"
	KindUnhandledAPIErr = "UNHANDLED_API_ERROR"
)

// ErrCanceled is matched by the error of every cancelled call. The error
// also wraps the cause: context.Canceled for Call.Cancel, or the caller's
// context error, such as context.DeadlineExceeded.
var ErrCanceled = errors.New("ptlrpc: call canceled")

func canceledError(cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

// Error is the single tagged error every failed call settles with.
type Error struct {
	Message string
	Kind    string
	// Info holds the raw errinfo value sent by the server, if any.
	Info interface{}

	cause error
}

// NewError creates an Error of the given kind.
func NewError(message, kind string) *Error {
	return &Error{Message: message, Kind: kind, Info: kind}
}

func (e *Error) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

func networkError(cause error) *Error {
	return &Error{Message: "Network error", Kind: KindNetwork, Info: KindNetwork, cause: cause}
}

func unresolvableError(cause error) *Error {
	return &Error{Message: "Response cannot be resolved", Kind: KindResUnresolvable, Info: KindResUnresolvable, cause: cause}
}

func preventedError() *Error {
	return NewError("Request prevented", KindRequestPrevented)
}
