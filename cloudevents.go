package eventwire

import (
	"context"
	"fmt"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/eventwire/eventwire/typeref"
)

// ClassCloudEvent is the common supertype of all CloudEvent payload classes.
// Observers of this class receive every CloudEvent fired through the bus.
var ClassCloudEvent = typeref.NewClass("CloudEvent")

// cloudEventClasses caches one class per CloudEvent type attribute.
var cloudEventClasses sync.Map // event type string -> *typeref.Class

// CloudEventClass returns the payload class for a CloudEvent type attribute.
// Each distinct type gets its own class declaring ClassCloudEvent as its
// supertype, so observers can subscribe per type or to all CloudEvents.
func CloudEventClass(eventType string) *typeref.Class {
	if eventType == "" {
		return ClassCloudEvent
	}
	if cached, ok := cloudEventClasses.Load(eventType); ok {
		return cached.(*typeref.Class)
	}
	class := typeref.NewClass("CloudEvent:"+eventType, typeref.ClassRef(ClassCloudEvent))
	actual, _ := cloudEventClasses.LoadOrStore(eventType, class)
	return actual.(*typeref.Class)
}

// CloudEventPayload carries a CloudEvent through the typed bus.
type CloudEventPayload struct {
	Event cloudevents.Event
}

// EventClass returns the per-type payload class.
func (p CloudEventPayload) EventClass() *typeref.Class {
	return CloudEventClass(p.Event.Type())
}

// NewCloudEvent creates a CloudEvent with the required attributes set:
// a UUIDv7 identifier, source, type, timestamp and spec version, plus optional
// JSON data and extension attributes.
func NewCloudEvent(eventType, source string, data interface{}, extensions map[string]interface{}) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	for key, value := range extensions {
		event.SetExtension(key, value)
	}
	return event
}

// cloudEventQualifiers derives the firing qualifier set from a CloudEvent:
// one qualifier for the source attribute and one per extension attribute.
func cloudEventQualifiers(event cloudevents.Event) []Qualifier {
	qualifiers := []Qualifier{NewQualifier("source", map[string]any{"value": event.Source()})}
	for name, value := range event.Extensions() {
		qualifiers = append(qualifiers, NewQualifier(name, map[string]any{"value": value}))
	}
	return qualifiers
}

// FireCloudEvent validates a CloudEvent and delivers it synchronously to
// matching observers. The event's source and extensions become qualifiers.
func (b *Bus) FireCloudEvent(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid CloudEvent: %w", err)
	}
	payload := CloudEventPayload{Event: event}
	return b.Fire(ctx, payload, typeref.ClassRef(payload.EventClass()), cloudEventQualifiers(event)...)
}

// FireCloudEventAsync is the asynchronous counterpart of FireCloudEvent.
func (b *Bus) FireCloudEventAsync(ctx context.Context, event cloudevents.Event) (*Completion, error) {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CloudEvent: %w", err)
	}
	payload := CloudEventPayload{Event: event}
	return b.FireAsync(ctx, payload, typeref.ClassRef(payload.EventClass()), cloudEventQualifiers(event), nil)
}

// CloudEventObserverConfig builds an observer configuration for CloudEvents.
// An empty eventType observes every CloudEvent fired through the bus.
func CloudEventObserverConfig(id, eventType string, async bool, handler func(ctx context.Context, event cloudevents.Event) error) ObserverConfig {
	return ObserverConfig{
		ID:           id,
		ObservedType: typeref.ClassRef(CloudEventClass(eventType)),
		Async:        async,
		Handler: func(ctx context.Context, event any, _ EventMetadata) error {
			payload, ok := event.(CloudEventPayload)
			if !ok {
				return nil
			}
			return handler(ctx, payload.Event)
		},
	}
}
