package eventwire

import (
	"context"
	"time"

	"github.com/eventwire/eventwire/typeref"
)

// EventMetadata is the transient per-firing context handed to matched
// observers: the statically declared event type (distinct from the payload's
// dynamic class, used for generic resolution), the fired qualifier set, and
// whether this is a container lifecycle firing. It lives only for the duration
// of one fire call.
type EventMetadata struct {
	// FiringID uniquely identifies one fire call.
	FiringID string

	// Declared is the statically declared type the event was fired as.
	Declared typeref.Ref

	// Qualifiers is the qualifier set attached to the firing.
	Qualifiers []Qualifier

	// Lifecycle marks container lifecycle firings, which follow inverted
	// matching rules and skip the qualifier-diagnostics path.
	Lifecycle bool

	// FiredAt is when the firing started.
	FiredAt time.Time
}

func newEventMetadata(declared typeref.Ref, qualifiers []Qualifier, lifecycle bool) EventMetadata {
	return EventMetadata{
		FiringID:   generateID(),
		Declared:   declared,
		Qualifiers: qualifiers,
		Lifecycle:  lifecycle,
		FiredAt:    time.Now(),
	}
}

// Classified is implemented by payloads that advertise their dynamic class.
// When a payload does not implement it, the raw class of the declared type is
// used as the dynamic class.
type Classified interface {
	EventClass() *typeref.Class
}

// dynamicClass resolves the runtime class of a fired payload.
func dynamicClass(event any, declared typeref.Ref) *typeref.Class {
	if c, ok := event.(Classified); ok {
		if cls := c.EventClass(); cls != nil {
			return cls
		}
	}
	return declared.RawClass()
}

// TransactionSynchronizer is the external transaction-synchronization
// collaborator. Synchronous observers declaring a phase other than
// PhaseInProgress are handed off to it instead of being invoked directly; when
// no synchronizer is configured such observers are invoked immediately as if
// the phase were in progress.
type TransactionSynchronizer interface {
	RegisterSynchronization(ctx context.Context, phase TransactionPhase, observer *Observer, event any) error
}
