package tf

import (
	"errors"
	"fmt"
)

var (
	// ErrLookupInPast matches lookups earlier than every retained sample.
	ErrLookupInPast = errors.New("attempted lookup in the past")
	// ErrLookupInFuture matches lookups later than every retained sample.
	ErrLookupInFuture = errors.New("attempted lookup in the future")
)

// LookupInPastError carries the requested stamp and the oldest retained
// sample. The caller may retry once more history accumulates.
type LookupInPastError struct {
	Requested Stamp
	Oldest    Stamped
}

func (e *LookupInPastError) Error() string {
	return fmt.Sprintf("%v: requested %s, oldest %s -> %s sample at %s",
		ErrLookupInPast, e.Requested, e.Oldest.ParentFrameID, e.Oldest.ChildFrameID, e.Oldest.Stamp)
}

func (e *LookupInPastError) Unwrap() error { return ErrLookupInPast }

// LookupInFutureError carries the newest retained sample and the requested
// stamp. The caller may retry after the next insertion.
type LookupInFutureError struct {
	Newest    Stamped
	Requested Stamp
}

func (e *LookupInFutureError) Error() string {
	return fmt.Sprintf("%v: requested %s, newest %s -> %s sample at %s",
		ErrLookupInFuture, e.Requested, e.Newest.ParentFrameID, e.Newest.ChildFrameID, e.Newest.Stamp)
}

func (e *LookupInFutureError) Unwrap() error { return ErrLookupInFuture }
