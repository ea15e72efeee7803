package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// Kind classifies domain failures.  Handlers map each kind to one HTTP
// status.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindInvalidTransition
	KindTerminalState
	KindInvalidOperation
	KindAlreadyExists
	KindAlreadyProcessed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindForbidden:
		return "Forbidden"
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindTerminalState:
		return "TerminalStateViolation"
	case KindInvalidOperation:
		return "InvalidOperation"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindAlreadyProcessed:
		return "AlreadyProcessed"
	}
	return "Unknown"
}

// Error is a domain error.  Message is safe to show to end users; Err, if
// set, carries the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrTerminalState     = &Error{Kind: KindTerminalState, Message: "terminal state"}
	ErrInvalidOperation  = &Error{Kind: KindInvalidOperation, Message: "invalid operation"}
	ErrAlreadyExists     = &Error{Kind: KindAlreadyExists, Message: "already exists"}
	ErrAlreadyProcessed  = &Error{Kind: KindAlreadyProcessed, Message: "already processed"}
)

func newErr(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func notFound(what string) *Error { return newErr(KindNotFound, "%s not found", what) }

func forbidden(format string, args ...any) *Error {
	return newErr(KindForbidden, format, args...)
}

func invalidOp(format string, args ...any) *Error {
	return newErr(KindInvalidOperation, format, args...)
}

// KindOf returns the kind of err, or 0 when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// fromRepo translates repository sentinels.  what names the entity for
// the message.  Other errors are returned unchanged.
func fromRepo(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(what)
	case errors.Is(err, repository.ErrDuplicate):
		return &Error{Kind: KindAlreadyExists, Message: what + " already exists", Err: err}
	}
	return err
}

// fromTransition translates state machine failures.
func fromTransition(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrTerminalStatus):
		return &Error{Kind: KindTerminalState, Message: "booking can no longer change status", Err: err}
	case errors.Is(err, model.ErrInvalidTransition):
		return &Error{Kind: KindInvalidTransition, Message: "booking status transition not allowed", Err: err}
	}
	return err
}
