// Package giterr classifies failures of the smart HTTP transport so that a
// host can render them as diagnostics.
//
// Every error produced by the transport and stream packages is an *Error
// carrying one of three kinds. Callers match on the kind with errors.Is:
//
//	if errors.Is(err, giterr.ErrProtocol) {
//	    var gerr *giterr.Error
//	    errors.As(err, &gerr)
//	    fmt.Println("server answered", gerr.Status)
//	}
package giterr

import (
	"errors"
	"fmt"
)

// Kind is the error classification handed to the host.
type Kind int

const (
	// KindURL covers malformed URLs, missing host or port and disallowed schemes.
	KindURL Kind = iota + 1
	// KindProtocol covers unexpected status codes and broken redirects.
	KindProtocol
	// KindNetwork covers connect, read and write failures on the socket.
	KindNetwork
)

// ClassNet is the host error class every transport failure is reported under.
const ClassNet = 12

func (k Kind) String() string {
	switch k {
	case KindURL:
		return "url"
	case KindProtocol:
		return "protocol"
	case KindNetwork:
		return "network"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Class returns the host error class for k.
func (k Kind) Class() int {
	return ClassNet
}

// Kind markers usable with errors.Is.
var (
	ErrURL      = &Error{Kind: KindURL}
	ErrProtocol = &Error{Kind: KindProtocol}
	ErrNetwork  = &Error{Kind: KindNetwork}
)

// Sentinel causes wrapped into an *Error.
var (
	ErrNoURL            = errors.New("no url has been set")
	ErrNotConnected     = errors.New("not connected")
	ErrMissingLocation  = errors.New("redirect without a location")
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrRequestSent      = errors.New("request already sent")
)

// Error is a classified transport failure.
type Error struct {
	Kind   Kind
	Op     string
	Status int // HTTP status for protocol errors, 0 otherwise
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind marker matching e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Status == 0 && t.Err == nil && t.Kind == e.Kind
}

// URL returns a URL error for op.
func URL(op string, err error) error {
	return &Error{Kind: KindURL, Op: op, Err: err}
}

// Protocol returns a protocol error for op.
func Protocol(op string, err error) error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

// Status returns a protocol error carrying an unexpected HTTP status code.
func Status(op string, code int) error {
	return &Error{Kind: KindProtocol, Op: op, Status: code, Err: fmt.Errorf("unexpected status code: %d", code)}
}

// Network returns a network error for op.
func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
