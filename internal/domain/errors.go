package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidValue = errors.New("invalid value")
	ErrUnavailable  = errors.New("graph store unavailable")
)

// Error carries a kind, a caller-facing message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func InvalidValuef(format string, args ...any) error {
	return &Error{Kind: ErrInvalidValue, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps an infrastructure failure. A nil err yields nil.
func Unavailable(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrUnavailable, Msg: msg, Err: err}
}

// IsDomain reports whether err already carries one of the kinds above.
func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidValue) || errors.Is(err, ErrUnavailable)
}

// Message returns the caller-facing part of err, without the wrapped cause.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Msg
	}
	return err.Error()
}
