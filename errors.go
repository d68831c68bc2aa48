package eventwire

import (
	"errors"
	"fmt"
)

// Notification errors
var (
	// Configuration errors, fatal to the firing that raised them
	ErrUnboundTypeVariable           = errors.New("event type may not contain an unbound type variable")
	ErrContainerEventFired           = errors.New("firing container lifecycle events is forbidden")
	ErrAsyncObserverTransactionPhase = errors.New("async observers can only use the in-progress transaction phase")
	ErrDuplicateQualifier            = errors.New("duplicate non-repeatable qualifier with conflicting members")
	ErrInvalidObservedType           = errors.New("observer requires a valid observed type")
	ErrNilHandler                    = errors.New("observer handler cannot be nil")
	ErrNilObserver                   = errors.New("observer cannot be nil")

	// Lifecycle delivery escalation
	ErrDeploymentFailed   = errors.New("error while sending container event to an extension after deployment validation")
	ErrContainerLifecycle = errors.New("error while sending container event to an extension")

	// Worker pool errors
	ErrPoolShutdown        = errors.New("notification worker pool is shut down")
	ErrPoolShutdownTimeout = errors.New("notification worker pool shutdown timed out")
)

// NotificationError wraps an error returned by an observer handler during a
// synchronous firing. The original error is retained as the cause.
type NotificationError struct {
	ObserverID string
	EventType  string
	Err        error
}

// Error implements the error interface.
func (e *NotificationError) Error() string {
	return fmt.Sprintf("observer %s failed notifying for event type %s: %v", e.ObserverID, e.EventType, e.Err)
}

// Unwrap returns the underlying observer error.
func (e *NotificationError) Unwrap() error {
	return e.Err
}
