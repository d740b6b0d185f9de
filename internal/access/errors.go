package access

import (
	"errors"
	"fmt"
)

// Kind classifies a coordinator failure so callers can branch on it.
type Kind string

const (
	KindResourceNotFound    Kind = "resource_not_found"
	KindResourceUnavailable Kind = "resource_unavailable"
	KindResourceIdle        Kind = "resource_idle"
	KindAlreadyActive       Kind = "already_active"
	KindAlreadyQueued       Kind = "already_queued"
	KindSessionNotFound     Kind = "session_not_found"
	KindNotOwner            Kind = "not_owner"
	KindStoreUnavailable    Kind = "store_unavailable"
	KindInvalidArgument     Kind = "invalid_argument"
	KindQueueEntryNotFound  Kind = "queue_entry_not_found"
	KindInvalidTransition   Kind = "invalid_transition"
)

// Hints tell the caller what to do instead.
const (
	HintJoinQueue     = "join_queue"
	HintClaimDirectly = "claim_directly"
)

// Error is returned by every Coordinator operation.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrResourceNotFound    = &Error{Kind: KindResourceNotFound}
	ErrResourceUnavailable = &Error{Kind: KindResourceUnavailable}
	ErrResourceIdle        = &Error{Kind: KindResourceIdle}
	ErrAlreadyActive       = &Error{Kind: KindAlreadyActive}
	ErrAlreadyQueued       = &Error{Kind: KindAlreadyQueued}
	ErrSessionNotFound     = &Error{Kind: KindSessionNotFound}
	ErrNotOwner            = &Error{Kind: KindNotOwner}
	ErrStoreUnavailable    = &Error{Kind: KindStoreUnavailable}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
	ErrQueueEntryNotFound  = &Error{Kind: KindQueueEntryNotFound}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition}
)

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, hint, format string, args ...any) *Error {
	return &Error{Kind: kind, Hint: hint, Message: fmt.Sprintf(format, args...)}
}

func resourceNotFound(id string) *Error {
	return newError(KindResourceNotFound, "", "equipment %s does not exist", id)
}

func resourceUnavailable(format string, args ...any) *Error {
	return newError(KindResourceUnavailable, HintJoinQueue, format, args...)
}

func invalidArgument(format string, args ...any) *Error {
	return newError(KindInvalidArgument, "", format, args...)
}
