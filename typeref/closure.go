package typeref

// Closure computes the set of types a fired event can be observed as: the
// declared reference plus every supertype of its raw class with type-variable
// substitution applied, merged with the dynamic class hierarchy when the
// event's runtime class is a strict subtype of the declared one.
//
// Raw references to generic classes degrade to raw supertypes (erasure) rather
// than leaking unbound variables; variables appear in the result only when the
// declared reference itself carried them. Callers reject such closures via
// ContainsTypeVariable.
func Closure(declared Ref, dynamic *Class) []Ref {
	seen := make(map[string]struct{})
	var out []Ref

	var walk func(r Ref)
	walk = func(r Ref) {
		if !r.IsValid() {
			return
		}
		key := r.Key()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, r)

		c := r.RawClass()
		if c == nil {
			return
		}
		subst := bindParams(c, r)
		for _, sup := range c.supers {
			walk(eraseOrSubstitute(sup, subst))
		}
	}

	if dynamic != nil && dynamic != declared.RawClass() {
		walk(ClassRef(dynamic))
	}
	walk(declared)
	return out
}

// bindParams maps the type parameters of c to the actual arguments of r.
// A raw reference to a generic class yields no bindings.
func bindParams(c *Class, r Ref) map[string]Ref {
	if !r.IsParameterized() || len(c.typeParams) == 0 {
		return nil
	}
	subst := make(map[string]Ref, len(c.typeParams))
	for i, p := range c.typeParams {
		if i < len(r.args) {
			subst[p] = r.args[i]
		}
	}
	return subst
}

// eraseOrSubstitute applies subst to sup; when no bindings exist and the
// supertype still references variables, it falls back to the raw class.
func eraseOrSubstitute(sup Ref, subst map[string]Ref) Ref {
	resolved := substitute(sup, subst)
	if len(subst) == 0 && resolved.ContainsVariable() {
		if raw := resolved.RawClass(); raw != nil {
			return ClassRef(raw)
		}
	}
	return resolved
}

// ContainsTypeVariable reports whether any reference in the set contains an
// unbound type variable.
func ContainsTypeVariable(refs []Ref) bool {
	for _, r := range refs {
		if r.ContainsVariable() {
			return true
		}
	}
	return false
}

// AsSuper views ref as the given target class, walking the supertype chain
// with substitution. Returns the (possibly parameterized) reference at the
// target level and whether the target was reached.
func AsSuper(ref Ref, target *Class) (Ref, bool) {
	c := ref.RawClass()
	if c == nil {
		return Ref{}, false
	}
	if c == target {
		return ref, true
	}
	subst := bindParams(c, ref)
	for _, sup := range c.supers {
		if got, ok := AsSuper(eraseOrSubstitute(sup, subst), target); ok {
			return got, true
		}
	}
	return Ref{}, false
}
