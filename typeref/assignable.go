package typeref

// AssignableFrom reports whether a value of type from can be observed as to,
// using covariant matching for parameterized references.
//
// Matching rules:
//   - a raw class matches any reference whose raw class is assignable to it,
//     including raw views of parameterized references;
//   - a parameterized reference requires raw assignability plus pairwise
//     argument compatibility at the level of its own class (from is first
//     viewed as that class via AsSuper); a raw from reference matches a
//     parameterized to reference (raw-type usage);
//   - type variables match when every upper bound accepts from;
//   - wildcards match when from satisfies the upper and lower bounds.
func AssignableFrom(to, from Ref) bool {
	switch to.kind {
	case KindClass:
		return to.class.AssignableFrom(effectiveClass(from))

	case KindParameterized:
		if !to.class.AssignableFrom(effectiveClass(from)) {
			return false
		}
		viewed, ok := AsSuper(from, to.class)
		if !ok || !viewed.IsParameterized() {
			// Raw usage of a generic type matches any parameterization.
			return true
		}
		if len(viewed.args) != len(to.args) {
			return false
		}
		for i, arg := range to.args {
			if !argAssignable(arg, viewed.args[i]) {
				return false
			}
		}
		return true

	case KindVariable:
		for _, bound := range to.upper {
			if !AssignableFrom(bound, from) {
				return false
			}
		}
		return true

	case KindWildcard:
		return wildcardAccepts(to, from)
	}
	return false
}

// argAssignable compares a single actual type argument position covariantly.
func argAssignable(toArg, fromArg Ref) bool {
	if toArg.Equal(fromArg) {
		return true
	}
	switch toArg.kind {
	case KindWildcard:
		return wildcardAccepts(toArg, fromArg)
	case KindVariable:
		for _, bound := range toArg.upper {
			if !AssignableFrom(bound, fromArg) {
				return false
			}
		}
		return true
	default:
		return AssignableFrom(toArg, fromArg)
	}
}

// wildcardAccepts reports whether from satisfies the wildcard's bounds: it
// must be assignable to every upper bound and assignable from every lower
// bound. An unbounded wildcard accepts anything.
func wildcardAccepts(wc, from Ref) bool {
	for _, upper := range wc.upper {
		if !AssignableFrom(upper, from) {
			return false
		}
	}
	for _, lower := range wc.lower {
		if !AssignableFrom(from, lower) {
			return false
		}
	}
	return true
}

// effectiveClass returns the class a reference presents for raw assignability:
// the raw class itself, or the first upper bound's class for variables and
// wildcards.
func effectiveClass(r Ref) *Class {
	if raw := r.RawClass(); raw != nil {
		return raw
	}
	if len(r.upper) > 0 {
		return effectiveClass(r.upper[0])
	}
	return nil
}

// ArgMatchesClass implements the container-event type-argument compatibility
// rule: a candidate type argument matches a concrete class c when it is a type
// variable whose first bound is assignable from c, a wildcard satisfied by c,
// or a concrete class assignable from c.
func ArgMatchesClass(arg Ref, c *Class) bool {
	if c == nil {
		return false
	}
	switch arg.kind {
	case KindVariable:
		if len(arg.upper) == 0 {
			return true
		}
		bound := arg.upper[0].RawClass()
		return bound != nil && bound.AssignableFrom(c)
	case KindWildcard:
		return wildcardAccepts(arg, ClassRef(c))
	case KindClass, KindParameterized:
		return arg.RawClass().AssignableFrom(c)
	}
	return false
}
