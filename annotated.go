package eventwire

import (
	"github.com/eventwire/eventwire/typeref"
)

// AnnotatedSource models the annotation surface of a component declaration:
// the declaration itself, its fields, methods and their parameters, and
// constructors and their parameters. It is a supplied value — annotation
// extraction from real source declarations is outside the core.
type AnnotatedSource struct {
	// Declaration holds the annotation classes present directly on the
	// declaration.
	Declaration []*typeref.Class

	// Fields holds per-field annotation sets.
	Fields []AnnotatedElement

	// Methods holds per-method annotation sets including parameters.
	Methods []AnnotatedCallable

	// Constructors holds per-constructor annotation sets including parameters.
	Constructors []AnnotatedCallable
}

// AnnotatedElement is a single annotatable element such as a field or a
// parameter.
type AnnotatedElement struct {
	Annotations []*typeref.Class
}

// AnnotatedCallable is a method or constructor with its own annotations and
// per-parameter annotation sets.
type AnnotatedCallable struct {
	Annotations []*typeref.Class
	Parameters  []AnnotatedElement
}

// HasAnyAnnotation reports whether at least one of the required annotation
// classes appears somewhere on the source: directly on the declaration, a
// field, a method, a method parameter, a constructor or a constructor
// parameter — or indirectly as a meta-annotation on a present annotation.
func (s *AnnotatedSource) HasAnyAnnotation(required []*typeref.Class) bool {
	if s == nil {
		return false
	}
	if hasAnnotation(s.Declaration, required) {
		return true
	}
	for _, field := range s.Fields {
		if hasAnnotation(field.Annotations, required) {
			return true
		}
	}
	for _, callable := range append(append([]AnnotatedCallable{}, s.Methods...), s.Constructors...) {
		if hasAnnotation(callable.Annotations, required) {
			return true
		}
		for _, param := range callable.Parameters {
			if hasAnnotation(param.Annotations, required) {
				return true
			}
		}
	}
	return false
}

// hasAnnotation reports whether any present annotation class, or a
// meta-annotation on one, satisfies any required class.
func hasAnnotation(present []*typeref.Class, required []*typeref.Class) bool {
	for _, want := range required {
		for _, have := range present {
			if want.AssignableFrom(have) {
				return true
			}
			for _, meta := range have.Annotations() {
				if want.AssignableFrom(meta) {
					return true
				}
			}
		}
	}
	return false
}

// filterByWithAnnotations keeps observers whose with-annotations restriction
// is satisfied by the source. Observers declaring no restriction always pass.
func filterByWithAnnotations(candidates []*Observer, source *AnnotatedSource) []*Observer {
	matching := make([]*Observer, 0, len(candidates))
	for _, observer := range candidates {
		required := observer.WithAnnotations()
		if len(required) == 0 {
			matching = append(matching, observer)
			continue
		}
		if source.HasAnyAnnotation(required) {
			matching = append(matching, observer)
		}
	}
	return matching
}
