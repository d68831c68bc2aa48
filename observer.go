// Package eventwire implements an in-process typed event notification core:
// a registry of observers keyed by observed type and qualifier set, a
// resolution algorithm over a structural type algebra with covariant generic
// matching, and a dispatch engine with synchronous (priority-ordered,
// fail-fast) and asynchronous (fan-out, error-aggregating) firing modes.
//
// Observers are registered once during bootstrap and are immutable afterwards.
// Events are fired with their payload, a statically declared type reference,
// and a qualifier set; container lifecycle events follow inverted matching
// rules and are delivered only to extension components.
package eventwire

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/eventwire/eventwire/typeref"
)

// ObserverKind distinguishes observer variants. Behaviour differs only in
// matching-time filters, never in invocation, so kinds are a tag rather than
// an interface hierarchy.
type ObserverKind int

const (
	// ObserverPlain observes ordinary application events.
	ObserverPlain ObserverKind = iota

	// ObserverContainer observes container lifecycle events and may carry a
	// with-annotations filter.
	ObserverContainer
)

// ComponentKind identifies the kind of component owning an observer.
// Container lifecycle events are delivered only to extension components.
type ComponentKind int

const (
	// ComponentApplication marks an ordinary application component.
	ComponentApplication ComponentKind = iota

	// ComponentExtension marks a container extension component.
	ComponentExtension
)

// TransactionPhase selects when a synchronous observer is notified relative to
// a surrounding transaction. Observers default to PhaseInProgress; any other
// phase is handed off to the TransactionSynchronizer collaborator.
type TransactionPhase string

const (
	PhaseInProgress       TransactionPhase = "IN_PROGRESS"
	PhaseBeforeCompletion TransactionPhase = "BEFORE_COMPLETION"
	PhaseAfterCompletion  TransactionPhase = "AFTER_COMPLETION"
	PhaseAfterSuccess     TransactionPhase = "AFTER_SUCCESS"
	PhaseAfterFailure     TransactionPhase = "AFTER_FAILURE"
)

// NotifyFunc is the single-method notification capability every observer
// variant implements. The payload is opaque to the core; metadata carries the
// firing context.
type NotifyFunc func(ctx context.Context, event any, metadata EventMetadata) error

// ObserverConfig describes an observer to be registered. The zero value of
// optional fields selects the defaults documented per field.
type ObserverConfig struct {
	// ID uniquely identifies the observer. Generated when empty.
	ID string

	// ObservedType is the (possibly parameterized) type the observer receives.
	ObservedType typeref.Ref

	// Qualifiers the event must carry for this observer to match. Empty means
	// the observer matches any qualifier set.
	Qualifiers []Qualifier

	// Priority orders synchronous invocation; lower runs earlier. For async
	// firings priority orders only submission, not completion.
	Priority int

	// Async selects the firing mode the observer participates in. An observer
	// accepts only synchronous or only asynchronous firings, never both.
	Async bool

	// TransactionPhase defaults to PhaseInProgress. A non-default phase on an
	// async observer is a configuration error detected at fire time, since the
	// phase is only interpreted on the dispatch path.
	TransactionPhase TransactionPhase

	// Component is the kind of component owning the observer.
	Component ComponentKind

	// WithAnnotations restricts process-annotated-source matching to sources
	// carrying at least one of the given annotation classes. Only meaningful
	// for container observers.
	WithAnnotations []*typeref.Class

	// Handler receives matched events.
	Handler NotifyFunc
}

// Observer is one registered notification target. Observers are created during
// bootstrap, immutable thereafter, and held for the lifetime of the bus; they
// are never removed individually.
type Observer struct {
	id              string
	kind            ObserverKind
	observedType    typeref.Ref
	qualifiers      []Qualifier
	priority        int
	async           bool
	phase           TransactionPhase
	component       ComponentKind
	withAnnotations []*typeref.Class
	handler         NotifyFunc
	registeredAt    time.Time
}

// NewObserver validates the configuration and creates an immutable observer.
// The async/transaction-phase conflict is deliberately not rejected here; it
// surfaces at fire time.
func NewObserver(cfg ObserverConfig) (*Observer, error) {
	if cfg.Handler == nil {
		return nil, ErrNilHandler
	}
	if !cfg.ObservedType.IsValid() {
		return nil, ErrInvalidObservedType
	}
	if err := validateQualifierSet(cfg.Qualifiers); err != nil {
		return nil, err
	}

	id := cfg.ID
	if id == "" {
		id = generateID()
	}
	phase := cfg.TransactionPhase
	if phase == "" {
		phase = PhaseInProgress
	}
	kind := ObserverPlain
	if len(cfg.WithAnnotations) > 0 || observesContainerEvents(cfg.ObservedType.RawClass()) {
		kind = ObserverContainer
	}

	qualifiers := make([]Qualifier, len(cfg.Qualifiers))
	copy(qualifiers, cfg.Qualifiers)
	withAnnotations := make([]*typeref.Class, len(cfg.WithAnnotations))
	copy(withAnnotations, cfg.WithAnnotations)

	return &Observer{
		id:              id,
		kind:            kind,
		observedType:    cfg.ObservedType,
		qualifiers:      qualifiers,
		priority:        cfg.Priority,
		async:           cfg.Async,
		phase:           phase,
		component:       cfg.Component,
		withAnnotations: withAnnotations,
		handler:         cfg.Handler,
		registeredAt:    time.Now(),
	}, nil
}

// ObserverID returns the unique identifier of the observer.
func (o *Observer) ObserverID() string { return o.id }

// Kind returns the observer variant tag.
func (o *Observer) Kind() ObserverKind { return o.kind }

// ObservedType returns the declared observed type reference.
func (o *Observer) ObservedType() typeref.Ref { return o.observedType }

// ObservedQualifiers returns the declared qualifier set.
func (o *Observer) ObservedQualifiers() []Qualifier { return o.qualifiers }

// Priority returns the invocation priority; lower runs earlier.
func (o *Observer) Priority() int { return o.priority }

// IsAsync reports whether the observer accepts asynchronous firings only.
func (o *Observer) IsAsync() bool { return o.async }

// TransactionPhase returns the declared transaction phase.
func (o *Observer) TransactionPhase() TransactionPhase { return o.phase }

// Component returns the kind of component owning the observer.
func (o *Observer) Component() ComponentKind { return o.component }

// WithAnnotations returns the with-annotations filter classes, empty for
// unrestricted observers.
func (o *Observer) WithAnnotations() []*typeref.Class { return o.withAnnotations }

// RegisteredAt returns when the observer was created. Registration-relative
// order is a best-effort tie-break for equal priorities, not a guarantee.
func (o *Observer) RegisteredAt() time.Time { return o.registeredAt }

// Notify delivers an event to the observer.
func (o *Observer) Notify(ctx context.Context, event any, metadata EventMetadata) error {
	return o.handler(ctx, event, metadata)
}

// generateID returns a unique identifier using UUIDv7 for time-ordered
// uniqueness, falling back to v4.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
