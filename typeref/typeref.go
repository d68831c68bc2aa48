// Package typeref provides a structural type algebra for describing observed
// and fired event types: nominal class declarations, parameterized references,
// type variables and wildcards, covariant assignability, and the type-closure
// operation used during event resolution.
//
// The package deliberately avoids runtime reflection. Event and observer types
// are described by explicit descriptors so that generic matching rules stay
// testable and independent of how payloads are represented in Go.
package typeref

import (
	"sort"
	"strings"
)

// Kind identifies the variant of a Ref.
type Kind int

const (
	// KindClass is a plain (raw) class reference.
	KindClass Kind = iota

	// KindParameterized is a class reference with actual type arguments.
	KindParameterized

	// KindVariable is an unbound type variable, optionally with upper bounds.
	KindVariable

	// KindWildcard is a wildcard, optionally with upper or lower bounds.
	KindWildcard
)

// Class is a nominal type declaration: a name, the names of its declared type
// parameters, its direct supertypes (whose arguments may reference the type
// parameters as variables), and the annotation classes present on the
// declaration itself. Classes are compared by identity; two declarations with
// the same name are distinct types.
type Class struct {
	name        string
	typeParams  []string
	supers      []Ref
	annotations []*Class
}

// NewClass creates a non-generic class declaration with the given direct
// supertypes.
func NewClass(name string, supers ...Ref) *Class {
	return &Class{name: name, supers: supers}
}

// NewGenericClass creates a class declaration with named type parameters.
// Supertype arguments may reference the parameters via Variable.
func NewGenericClass(name string, typeParams []string, supers ...Ref) *Class {
	return &Class{name: name, typeParams: typeParams, supers: supers}
}

// Name returns the declared name of the class.
func (c *Class) Name() string { return c.name }

// TypeParams returns the names of the declared type parameters.
func (c *Class) TypeParams() []string { return c.typeParams }

// Supers returns the direct supertype references of the class.
func (c *Class) Supers() []Ref { return c.supers }

// Annotations returns the annotation classes present on the declaration.
func (c *Class) Annotations() []*Class { return c.annotations }

// Annotate attaches annotation classes to the declaration and returns the
// class for chaining. Used to model meta-annotations: an annotation class may
// itself be annotated.
func (c *Class) Annotate(annotations ...*Class) *Class {
	c.annotations = append(c.annotations, annotations...)
	return c
}

// AssignableFrom reports whether a value of class other can be treated as c,
// i.e. other is c or transitively declares c among its supertypes.
func (c *Class) AssignableFrom(other *Class) bool {
	if other == nil {
		return false
	}
	if other == c {
		return true
	}
	for _, sup := range other.supers {
		if raw := sup.RawClass(); raw != nil && c.AssignableFrom(raw) {
			return true
		}
	}
	return false
}

func (c *Class) String() string { return c.name }

// Ref is a value-type reference to a type: a raw class, a parameterized class,
// a type variable, or a wildcard. The zero Ref is invalid; construct refs with
// ClassRef, Parameterized, Variable, Wildcard, WildcardExtends or WildcardSuper.
type Ref struct {
	kind  Kind
	class *Class
	args  []Ref
	name  string // variable name
	upper []Ref  // variable or wildcard upper bounds
	lower []Ref  // wildcard lower bounds
}

// ClassRef creates a raw class reference.
func ClassRef(c *Class) Ref {
	return Ref{kind: KindClass, class: c}
}

// Parameterized creates a reference to c with the given actual type arguments.
func Parameterized(c *Class, args ...Ref) Ref {
	return Ref{kind: KindParameterized, class: c, args: args}
}

// Variable creates a type variable reference with optional upper bounds.
func Variable(name string, bounds ...Ref) Ref {
	return Ref{kind: KindVariable, name: name, upper: bounds}
}

// Wildcard creates an unbounded wildcard reference.
func Wildcard() Ref {
	return Ref{kind: KindWildcard}
}

// WildcardExtends creates an upper-bounded wildcard reference.
func WildcardExtends(upper ...Ref) Ref {
	return Ref{kind: KindWildcard, upper: upper}
}

// WildcardSuper creates a lower-bounded wildcard reference.
func WildcardSuper(lower ...Ref) Ref {
	return Ref{kind: KindWildcard, lower: lower}
}

// Kind returns the variant of the reference.
func (r Ref) Kind() Kind { return r.kind }

// IsValid reports whether the reference was constructed (the zero Ref is not).
func (r Ref) IsValid() bool {
	return r.kind != KindClass || r.class != nil
}

// RawClass returns the underlying class for class and parameterized references,
// and nil for variables and wildcards.
func (r Ref) RawClass() *Class {
	if r.kind == KindClass || r.kind == KindParameterized {
		return r.class
	}
	return nil
}

// Args returns the actual type arguments of a parameterized reference.
func (r Ref) Args() []Ref { return r.args }

// IsParameterized reports whether the reference carries actual type arguments.
func (r Ref) IsParameterized() bool { return r.kind == KindParameterized }

// VarName returns the name of a type-variable reference.
func (r Ref) VarName() string { return r.name }

// UpperBounds returns the upper bounds of a variable or wildcard reference.
func (r Ref) UpperBounds() []Ref { return r.upper }

// LowerBounds returns the lower bounds of a wildcard reference.
func (r Ref) LowerBounds() []Ref { return r.lower }

// ContainsVariable reports whether the reference contains an unbound type
// variable anywhere in its structure.
func (r Ref) ContainsVariable() bool {
	switch r.kind {
	case KindVariable:
		return true
	case KindParameterized:
		for _, a := range r.args {
			if a.ContainsVariable() {
				return true
			}
		}
	case KindWildcard:
		for _, b := range r.upper {
			if b.ContainsVariable() {
				return true
			}
		}
		for _, b := range r.lower {
			if b.ContainsVariable() {
				return true
			}
		}
	}
	return false
}

// Key returns a canonical string for the reference, suitable for map keys.
// Structurally equal references produce identical keys.
func (r Ref) Key() string {
	var b strings.Builder
	r.writeKey(&b)
	return b.String()
}

func (r Ref) writeKey(b *strings.Builder) {
	switch r.kind {
	case KindClass:
		if r.class != nil {
			b.WriteString(r.class.name)
		}
	case KindParameterized:
		b.WriteString(r.class.name)
		b.WriteByte('[')
		for i, a := range r.args {
			if i > 0 {
				b.WriteByte(',')
			}
			a.writeKey(b)
		}
		b.WriteByte(']')
	case KindVariable:
		b.WriteByte('~')
		b.WriteString(r.name)
		writeBounds(b, " extends ", r.upper)
	case KindWildcard:
		b.WriteByte('?')
		writeBounds(b, " extends ", r.upper)
		writeBounds(b, " super ", r.lower)
	}
}

func writeBounds(b *strings.Builder, prefix string, bounds []Ref) {
	if len(bounds) == 0 {
		return
	}
	keys := make([]string, 0, len(bounds))
	for _, bound := range bounds {
		keys = append(keys, bound.Key())
	}
	sort.Strings(keys)
	b.WriteString(prefix)
	b.WriteString(strings.Join(keys, "&"))
}

// Equal reports structural equality of two references.
func (r Ref) Equal(other Ref) bool {
	return r.Key() == other.Key()
}

func (r Ref) String() string { return r.Key() }

// substitute replaces type variables with their bindings from subst. Variables
// without a binding are returned unchanged.
func substitute(r Ref, subst map[string]Ref) Ref {
	if len(subst) == 0 {
		return r
	}
	switch r.kind {
	case KindVariable:
		if bound, ok := subst[r.name]; ok {
			return bound
		}
		return r
	case KindParameterized:
		args := make([]Ref, len(r.args))
		for i, a := range r.args {
			args[i] = substitute(a, subst)
		}
		return Ref{kind: KindParameterized, class: r.class, args: args}
	case KindWildcard:
		upper := make([]Ref, len(r.upper))
		for i, u := range r.upper {
			upper[i] = substitute(u, subst)
		}
		lower := make([]Ref, len(r.lower))
		for i, l := range r.lower {
			lower[i] = substitute(l, subst)
		}
		return Ref{kind: KindWildcard, upper: upper, lower: lower}
	default:
		return r
	}
}
