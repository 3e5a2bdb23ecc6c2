package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a booking core failure.
type Kind uint8

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindInvalidState
	KindInvalidRange
	KindInvalidOperation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidRange:
		return "invalid_range"
	case KindInvalidOperation:
		return "invalid_operation"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrInvalidRange     = &Error{Kind: KindInvalidRange}
	ErrInvalidOperation = &Error{Kind: KindInvalidOperation}
)

// Error is returned by services for every rejected precondition.
type Error struct {
	Kind    Kind
	Entity  string
	ID      int64
	ActorID int64
	Op      string
	Reason  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		if e.Entity == "" {
			return "not found"
		}
		return fmt.Sprintf("%s with id %d not found", e.Entity, e.ID)
	case KindForbidden:
		if e.Op == "" {
			return "forbidden"
		}
		return fmt.Sprintf("user %d is not allowed to %s", e.ActorID, e.Op)
	default:
		if e.Reason == "" {
			return e.Kind.String()
		}
		return e.Reason
	}
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NotFound(entity string, id int64) error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

func Forbidden(actorID int64, op string) error {
	return &Error{Kind: KindForbidden, ActorID: actorID, Op: op}
}

func InvalidState(reason string) error {
	return &Error{Kind: KindInvalidState, Reason: reason}
}

func InvalidRange(reason string) error {
	return &Error{Kind: KindInvalidRange, Reason: reason}
}

func InvalidOperation(reason string) error {
	return &Error{Kind: KindInvalidOperation, Reason: reason}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
