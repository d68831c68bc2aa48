package eventwire

import (
	"fmt"
	"log/slog"

	"github.com/eventwire/eventwire/typeref"
)

// Resolver composes type matching, qualifier matching and the container-event
// special cases into the final candidate set for one firing. It is stateless
// apart from the registry's derived caches.
type Resolver struct {
	registry    *Registry
	diagnostics QualifierDiagnostics
	logger      *slog.Logger
}

// NewResolver creates a resolver over the given registry. diagnostics may be
// nil, in which case the zero-observer diagnostic path is skipped.
func NewResolver(registry *Registry, diagnostics QualifierDiagnostics, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{registry: registry, diagnostics: diagnostics, logger: logger}
}

// ResolveObservers computes the matching observer set for a firing: type
// filtering (ordinary or container path), qualifier filtering, the
// with-annotations filter for annotated-source events, and the qualifier
// diagnostics hook when a non-lifecycle firing matched nothing.
func (r *Resolver) ResolveObservers(event any, metadata EventMetadata) ([]*Observer, error) {
	matching, err := r.filterByType(event, metadata)
	if err != nil {
		return nil, err
	}

	matching = filterByQualifiers(matching, metadata.Qualifiers)

	if metadata.Lifecycle {
		if sourceEvent, ok := event.(AnnotatedSourceEvent); ok {
			matching = filterByWithAnnotations(matching, sourceEvent.AnnotatedSource())
		}
	} else if len(matching) == 0 && r.diagnostics != nil {
		// Purely diagnostic: validates the fired qualifiers are well formed.
		// Has no effect on the (empty) result unless validation fails.
		if err := r.diagnostics.ValidateQualifiers(metadata.Qualifiers); err != nil {
			return nil, err
		}
	}

	return matching, nil
}

func (r *Resolver) filterByType(event any, metadata EventMetadata) ([]*Observer, error) {
	if metadata.Lifecycle {
		return r.filterByContainerEventType(event, metadata.Declared), nil
	}

	eventClass := dynamicClass(event, metadata.Declared)

	// A raw (non-generic) declared type lets us cache the full matched set
	// under the event's dynamic class.
	isRawEvent := metadata.Declared.Kind() == typeref.KindClass
	if isRawEvent && eventClass != nil {
		if cached, ok := r.registry.cachedRawMatch(eventClass); ok {
			return cached, nil
		}
	}

	eventTypes := typeref.Closure(metadata.Declared, eventClass)
	if typeref.ContainsTypeVariable(eventTypes) {
		return nil, fmt.Errorf("%w: %v", ErrUnboundTypeVariable, eventTypes)
	}

	var matching []*Observer
	seen := make(map[*Observer]struct{})
	r.registry.forEachEntry(func(observedType typeref.Ref, observers []*Observer) {
		for _, eventType := range eventTypes {
			// A raw observed class also matches the raw form of a
			// parameterized closure member.
			parameterizedToRaw := eventType.IsParameterized() &&
				observedType.Kind() == typeref.KindClass &&
				typeref.AssignableFrom(observedType, typeref.ClassRef(eventType.RawClass()))

			if parameterizedToRaw || typeref.AssignableFrom(observedType, eventType) {
				for _, observer := range observers {
					if _, dup := seen[observer]; !dup {
						seen[observer] = struct{}{}
						matching = append(matching, observer)
					}
				}
				// First matching closure member wins for this key.
				break
			}
		}
	})

	if isRawEvent && eventClass != nil {
		r.registry.storeRawMatch(eventClass, matching)
	}
	return matching, nil
}

// filterByContainerEventType matches observers for container lifecycle
// firings. Direction is inverted relative to the ordinary path: the event
// class is a final concrete container type and observers declare supertypes or
// parameterized specializations of it.
func (r *Resolver) filterByContainerEventType(event any, declared typeref.Ref) []*Observer {
	eventClass := declared.RawClass()
	if c := dynamicClass(event, declared); c != nil {
		eventClass = c
	}

	var matching []*Observer
	r.registry.forEachEntry(func(observedType typeref.Ref, observers []*Observer) {
		observedRaw := observedType.RawClass()
		if observedRaw == nil || !observedRaw.AssignableFrom(eventClass) {
			return
		}

		switch {
		case isComponentShapedClass(eventClass):
			componentEvent, ok := event.(ComponentEvent)
			if !ok || !isComponentShapedClass(observedRaw) {
				return
			}
			componentClass := componentEvent.ComponentClassFor(observedRaw)
			if !observedType.IsParameterized() {
				matching = append(matching, observers...)
				return
			}
			var secondary typeref.Ref
			if twoParam, ok := event.(TwoParamComponentEvent); ok {
				secondary = twoParam.SecondaryType()
			}
			if componentArgsMatch(observedType, componentClass, secondary) {
				matching = append(matching, observers...)
			}

		case isProducerShapedClass(eventClass):
			producerEvent, ok := event.(ProducerEvent)
			if !ok {
				return
			}
			if !observedType.IsParameterized() {
				matching = append(matching, observers...)
				return
			}
			if isProducerShapedClass(observedRaw) {
				if producerArgsMatch(observedRaw == ClassProcessProducer, observedType,
					producerEvent.ComponentClass(), producerEvent.ProducedType()) {
					matching = append(matching, observers...)
				}
			} else if componentArgsMatch(observedType, producerEvent.ComponentClass(), typeref.Ref{}) {
				matching = append(matching, observers...)
			}

		default:
			// Plain container events match on raw assignability alone.
			matching = append(matching, observers...)
		}
	})
	return matching
}

// componentArgsMatch checks a parameterized component-shaped key. Single
// parameter events carry the component class as their only argument;
// two-parameter events (injection points) order their arguments
// secondary-then-component.
func componentArgsMatch(observedType typeref.Ref, componentClass *typeref.Class, secondary typeref.Ref) bool {
	args := observedType.Args()
	if len(args) == 0 {
		return observedType.RawClass().AssignableFrom(componentClass)
	}
	componentArg := args[0]
	if secondary.IsValid() && len(args) > 1 {
		componentArg = args[1]
		if !secondaryArgMatches(args[0], secondary) {
			return false
		}
	}
	return typeref.ArgMatchesClass(componentArg, componentClass)
}

// secondaryArgMatches compares the secondary type argument of an injection
// point key. A parameterized argument must match the full injected reference,
// not just its raw class.
func secondaryArgMatches(arg, secondary typeref.Ref) bool {
	if arg.IsParameterized() {
		return typeref.AssignableFrom(arg, secondary)
	}
	if raw := secondary.RawClass(); raw != nil {
		return typeref.ArgMatchesClass(arg, raw)
	}
	return typeref.AssignableFrom(arg, secondary)
}

// producerArgsMatch checks a parameterized producer-shaped key. Argument order
// is produced-then-component for the producer-method family and
// component-then-produced for the ProcessProducer marker type.
func producerArgsMatch(isProcessProducer bool, observedType typeref.Ref, componentClass, producedClass *typeref.Class) bool {
	args := observedType.Args()
	if len(args) == 0 {
		return observedType.RawClass().AssignableFrom(componentClass)
	}
	if len(args) < 2 {
		return false
	}
	producedArg, componentArg := args[0], args[1]
	if isProcessProducer {
		componentArg, producedArg = args[0], args[1]
	}
	return typeref.ArgMatchesClass(componentArg, componentClass) &&
		typeref.ArgMatchesClass(producedArg, producedClass)
}

// filterByQualifiers keeps observers whose every declared qualifier has a
// qualifier-equal counterpart in the event's set. An observer declaring more
// qualifiers than the event carries can never match and is rejected without
// comparison.
func filterByQualifiers(candidates []*Observer, eventQualifiers []Qualifier) []*Observer {
	matching := make([]*Observer, 0, len(candidates))
search:
	for _, observer := range candidates {
		declared := observer.ObservedQualifiers()
		if len(declared) > len(eventQualifiers) {
			continue
		}
		for _, qualifier := range declared {
			if !containsQualifier(eventQualifiers, qualifier) {
				continue search
			}
		}
		matching = append(matching, observer)
	}
	return matching
}
