package eventwire

import (
	"github.com/eventwire/eventwire/typeref"
)

// Container lifecycle event classes. This is a closed set: these types are
// fired by the container during bootstrap and shutdown, never by application
// code, and follow inverted type-matching rules (the observer declares a
// supertype or parameterized specialization of the concrete event class).
var (
	// Plain container events, matched by raw assignability alone.
	ClassBeforeDiscovery    = typeref.NewClass("BeforeDiscovery")
	ClassAfterTypeDiscovery = typeref.NewClass("AfterTypeDiscovery")
	ClassAfterDiscovery     = typeref.NewClass("AfterDiscovery")
	ClassAfterValidation    = typeref.NewClass("AfterValidation")
	ClassBeforeShutdown     = typeref.NewClass("BeforeShutdown")

	// Component-shaped events: expose the component class under observation.
	ClassProcessAnnotatedSource = typeref.NewGenericClass("ProcessAnnotatedSource", []string{"X"})
	ClassProcessSyntheticSource = typeref.NewGenericClass("ProcessSyntheticSource", []string{"X"},
		typeref.Parameterized(ClassProcessAnnotatedSource, typeref.Variable("X")))
	ClassProcessComponent        = typeref.NewGenericClass("ProcessComponent", []string{"X"})
	ClassProcessManagedComponent = typeref.NewGenericClass("ProcessManagedComponent", []string{"X"},
		typeref.Parameterized(ClassProcessComponent, typeref.Variable("X")))
	ClassProcessSyntheticComponent = typeref.NewGenericClass("ProcessSyntheticComponent", []string{"X"},
		typeref.Parameterized(ClassProcessComponent, typeref.Variable("X")))
	ClassProcessComponentAttributes = typeref.NewGenericClass("ProcessComponentAttributes", []string{"X"})
	ClassProcessInjectionTarget     = typeref.NewGenericClass("ProcessInjectionTarget", []string{"X"})
	ClassProcessInjectionPoint      = typeref.NewGenericClass("ProcessInjectionPoint", []string{"T", "X"})

	// Producer-shaped events: expose both the owning component class and the
	// produced (or observed) type.
	ClassProcessProducer             = typeref.NewGenericClass("ProcessProducer", []string{"T", "X"})
	ClassProcessProducerMethod       = typeref.NewGenericClass("ProcessProducerMethod", []string{"T", "X"})
	ClassProcessProducerField        = typeref.NewGenericClass("ProcessProducerField", []string{"T", "X"})
	ClassProcessObserverRegistration = typeref.NewGenericClass("ProcessObserverRegistration", []string{"T", "X"})
)

// containerEventClasses is the closed set of reserved container event types.
// Firing any of them through the ordinary (non-lifecycle) path is forbidden.
var containerEventClasses = map[*typeref.Class]struct{}{
	ClassBeforeDiscovery:             {},
	ClassAfterTypeDiscovery:          {},
	ClassAfterDiscovery:              {},
	ClassAfterValidation:             {},
	ClassBeforeShutdown:              {},
	ClassProcessAnnotatedSource:      {},
	ClassProcessSyntheticSource:      {},
	ClassProcessComponent:            {},
	ClassProcessManagedComponent:     {},
	ClassProcessSyntheticComponent:   {},
	ClassProcessComponentAttributes:  {},
	ClassProcessInjectionTarget:      {},
	ClassProcessInjectionPoint:       {},
	ClassProcessProducer:             {},
	ClassProcessProducerMethod:       {},
	ClassProcessProducerField:        {},
	ClassProcessObserverRegistration: {},
}

// componentShapedClasses is the process-component family: events exposing a
// "component class for this observer" accessor, with actual-type-argument
// compatibility checked against it.
var componentShapedClasses = map[*typeref.Class]struct{}{
	ClassProcessAnnotatedSource:     {},
	ClassProcessSyntheticSource:     {},
	ClassProcessComponent:           {},
	ClassProcessManagedComponent:    {},
	ClassProcessSyntheticComponent:  {},
	ClassProcessComponentAttributes: {},
	ClassProcessInjectionTarget:     {},
	ClassProcessInjectionPoint:      {},
}

// producerShapedClasses is the producer/observer family: events exposing both
// a component class and a produced (or observed) type.
var producerShapedClasses = map[*typeref.Class]struct{}{
	ClassProcessProducer:             {},
	ClassProcessProducerMethod:       {},
	ClassProcessProducerField:        {},
	ClassProcessObserverRegistration: {},
}

// IsContainerEventClass reports whether c belongs to the closed set of
// reserved container event types.
func IsContainerEventClass(c *typeref.Class) bool {
	if c == nil {
		return false
	}
	_, ok := containerEventClasses[c]
	return ok
}

func isComponentShapedClass(c *typeref.Class) bool {
	_, ok := componentShapedClasses[c]
	return ok
}

func isProducerShapedClass(c *typeref.Class) bool {
	_, ok := producerShapedClasses[c]
	return ok
}

// observesContainerEvents reports whether an observed raw class can receive
// container events: it is a container event class itself or a declared
// supertype of one.
func observesContainerEvents(raw *typeref.Class) bool {
	if raw == nil {
		return false
	}
	if IsContainerEventClass(raw) {
		return true
	}
	for c := range containerEventClasses {
		if raw.AssignableFrom(c) && raw != c {
			return true
		}
	}
	return false
}

// ComponentEvent is implemented by component-shaped container events. The
// component class may depend on which raw class the observer declared, so the
// observer's raw class is passed in.
type ComponentEvent interface {
	Classified
	ComponentClassFor(observedRaw *typeref.Class) *typeref.Class
}

// TwoParamComponentEvent is implemented by component-shaped events carrying a
// secondary type parameter, such as injection-point events.
type TwoParamComponentEvent interface {
	ComponentEvent
	SecondaryType() typeref.Ref
}

// ProducerEvent is implemented by producer-shaped container events.
type ProducerEvent interface {
	Classified
	ComponentClass() *typeref.Class
	ProducedType() *typeref.Class
}

// AnnotatedSourceEvent is implemented by process-annotated-source events; only
// those firings are subject to the with-annotations filter.
type AnnotatedSourceEvent interface {
	AnnotatedSource() *AnnotatedSource
}

// Concrete container event payloads. The container fires these through the
// lifecycle path during bootstrap; application code never fires them.

// BeforeDiscovery signals the start of component discovery.
type BeforeDiscovery struct{}

// EventClass returns the container event class of the payload.
func (BeforeDiscovery) EventClass() *typeref.Class { return ClassBeforeDiscovery }

// AfterTypeDiscovery signals that type discovery finished.
type AfterTypeDiscovery struct{}

func (AfterTypeDiscovery) EventClass() *typeref.Class { return ClassAfterTypeDiscovery }

// AfterDiscovery signals that component discovery finished.
type AfterDiscovery struct{}

func (AfterDiscovery) EventClass() *typeref.Class { return ClassAfterDiscovery }

// AfterValidation is the terminal bootstrap event. Observer errors during its
// delivery escalate to ErrDeploymentFailed.
type AfterValidation struct{}

func (AfterValidation) EventClass() *typeref.Class { return ClassAfterValidation }

// BeforeShutdown signals imminent container shutdown.
type BeforeShutdown struct{}

func (BeforeShutdown) EventClass() *typeref.Class { return ClassBeforeShutdown }

// ProcessComponent is fired for every discovered component.
type ProcessComponent struct {
	Component *typeref.Class
}

func (ProcessComponent) EventClass() *typeref.Class { return ClassProcessComponent }

// ComponentClassFor returns the component class under observation.
func (e ProcessComponent) ComponentClassFor(*typeref.Class) *typeref.Class { return e.Component }

// ProcessManagedComponent is fired for managed components specifically.
type ProcessManagedComponent struct {
	Component *typeref.Class
}

func (ProcessManagedComponent) EventClass() *typeref.Class { return ClassProcessManagedComponent }

func (e ProcessManagedComponent) ComponentClassFor(*typeref.Class) *typeref.Class {
	return e.Component
}

// ProcessSyntheticComponent is fired for components registered by extensions.
type ProcessSyntheticComponent struct {
	Component *typeref.Class
}

func (ProcessSyntheticComponent) EventClass() *typeref.Class { return ClassProcessSyntheticComponent }

func (e ProcessSyntheticComponent) ComponentClassFor(*typeref.Class) *typeref.Class {
	return e.Component
}

// ProcessComponentAttributes is fired before a component's attributes are
// committed.
type ProcessComponentAttributes struct {
	Component *typeref.Class
}

func (ProcessComponentAttributes) EventClass() *typeref.Class { return ClassProcessComponentAttributes }

func (e ProcessComponentAttributes) ComponentClassFor(*typeref.Class) *typeref.Class {
	return e.Component
}

// ProcessAnnotatedSource is fired for every discovered annotated source
// declaration; the with-annotations filter applies to it.
type ProcessAnnotatedSource struct {
	Component *typeref.Class
	Source    *AnnotatedSource
}

func (ProcessAnnotatedSource) EventClass() *typeref.Class { return ClassProcessAnnotatedSource }

func (e ProcessAnnotatedSource) ComponentClassFor(*typeref.Class) *typeref.Class { return e.Component }

// AnnotatedSource returns the annotated declaration under processing.
func (e ProcessAnnotatedSource) AnnotatedSource() *AnnotatedSource { return e.Source }

// ProcessSyntheticSource is the extension-registered variant of
// ProcessAnnotatedSource.
type ProcessSyntheticSource struct {
	Component *typeref.Class
	Source    *AnnotatedSource
}

func (ProcessSyntheticSource) EventClass() *typeref.Class { return ClassProcessSyntheticSource }

func (e ProcessSyntheticSource) ComponentClassFor(*typeref.Class) *typeref.Class { return e.Component }

func (e ProcessSyntheticSource) AnnotatedSource() *AnnotatedSource { return e.Source }

// ProcessInjectionTarget is fired for every component that receives injection.
type ProcessInjectionTarget struct {
	Component *typeref.Class
}

func (ProcessInjectionTarget) EventClass() *typeref.Class { return ClassProcessInjectionTarget }

func (e ProcessInjectionTarget) ComponentClassFor(*typeref.Class) *typeref.Class { return e.Component }

// ProcessInjectionPoint is fired for every injection point; it carries the
// injected type as a secondary type parameter.
type ProcessInjectionPoint struct {
	Component *typeref.Class
	Injected  typeref.Ref
}

func (ProcessInjectionPoint) EventClass() *typeref.Class { return ClassProcessInjectionPoint }

func (e ProcessInjectionPoint) ComponentClassFor(*typeref.Class) *typeref.Class { return e.Component }

// SecondaryType returns the injected type.
func (e ProcessInjectionPoint) SecondaryType() typeref.Ref { return e.Injected }

// ProcessProducer is fired for every producer declaration. Its type arguments
// are ordered component-then-produced, unlike the rest of the producer family.
type ProcessProducer struct {
	Component *typeref.Class
	Produced  *typeref.Class
}

func (ProcessProducer) EventClass() *typeref.Class { return ClassProcessProducer }

// ComponentClass returns the class owning the producer.
func (e ProcessProducer) ComponentClass() *typeref.Class { return e.Component }

// ProducedType returns the type the producer yields.
func (e ProcessProducer) ProducedType() *typeref.Class { return e.Produced }

// ProcessProducerMethod is fired for producer methods; type arguments are
// ordered produced-then-component.
type ProcessProducerMethod struct {
	Component *typeref.Class
	Produced  *typeref.Class
}

func (ProcessProducerMethod) EventClass() *typeref.Class { return ClassProcessProducerMethod }

func (e ProcessProducerMethod) ComponentClass() *typeref.Class { return e.Component }

func (e ProcessProducerMethod) ProducedType() *typeref.Class { return e.Produced }

// ProcessProducerField is fired for producer fields; type arguments are
// ordered produced-then-component.
type ProcessProducerField struct {
	Component *typeref.Class
	Produced  *typeref.Class
}

func (ProcessProducerField) EventClass() *typeref.Class { return ClassProcessProducerField }

func (e ProcessProducerField) ComponentClass() *typeref.Class { return e.Component }

func (e ProcessProducerField) ProducedType() *typeref.Class { return e.Produced }

// ProcessObserverRegistration is fired for every discovered observer
// declaration; the produced type is the observed event type.
type ProcessObserverRegistration struct {
	Component *typeref.Class
	Observed  *typeref.Class
}

func (ProcessObserverRegistration) EventClass() *typeref.Class {
	return ClassProcessObserverRegistration
}

func (e ProcessObserverRegistration) ComponentClass() *typeref.Class { return e.Component }

func (e ProcessObserverRegistration) ProducedType() *typeref.Class { return e.Observed }
