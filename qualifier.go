package eventwire

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Qualifier is a discriminator value attached to both observers and events.
// Matching requires qualifier equality — the qualifier name plus every member
// value — not merely name equality. Qualifiers are value types and must not be
// mutated after construction.
type Qualifier struct {
	// Name identifies the qualifier type.
	Name string

	// Members holds the qualifier's member values, if any. Equality compares
	// members structurally.
	Members map[string]any

	// Repeatable marks a qualifier type that may appear multiple times with
	// different member values in one set.
	Repeatable bool
}

// NewQualifier creates a qualifier with the given name and member values.
func NewQualifier(name string, members map[string]any) Qualifier {
	return Qualifier{Name: name, Members: members}
}

// NewRepeatableQualifier creates a qualifier whose type tolerates multiple
// instances with different member values in one set.
func NewRepeatableQualifier(name string, members map[string]any) Qualifier {
	return Qualifier{Name: name, Members: members, Repeatable: true}
}

// Equal reports whether two qualifiers are qualifier-equal: same name and
// structurally equal member values. Member order is irrelevant.
func (q Qualifier) Equal(other Qualifier) bool {
	if q.Name != other.Name || len(q.Members) != len(other.Members) {
		return false
	}
	for k, v := range q.Members {
		ov, ok := other.Members[k]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// cacheKey returns a canonical string for the qualifier value, used as the key
// of the lifecycle-observer-presence cache. Equal qualifiers produce identical
// keys.
func (q Qualifier) cacheKey() string {
	if len(q.Members) == 0 {
		return q.Name
	}
	keys := make([]string, 0, len(q.Members))
	for k := range q.Members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(q.Name)
	b.WriteByte('(')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%v", k, q.Members[k])
	}
	b.WriteByte(')')
	return b.String()
}

func (q Qualifier) String() string { return q.cacheKey() }

// containsQualifier reports whether set holds a qualifier-equal counterpart of q.
func containsQualifier(set []Qualifier, q Qualifier) bool {
	for _, candidate := range set {
		if candidate.Equal(q) {
			return true
		}
	}
	return false
}

// validateQualifierSet rejects sets holding the same non-repeatable qualifier
// type more than once with conflicting member values. Identical duplicates are
// tolerated (set semantics).
func validateQualifierSet(set []Qualifier) error {
	for i, q := range set {
		if q.Repeatable {
			continue
		}
		for _, other := range set[i+1:] {
			if other.Name == q.Name && !other.Equal(q) {
				return fmt.Errorf("%w: %s", ErrDuplicateQualifier, q.Name)
			}
		}
	}
	return nil
}

// QualifierDiagnostics validates fired qualifier sets for error reporting.
// The resolver consults it only when a non-lifecycle firing matched zero
// observers; a returned error surfaces to the firer as a configuration error.
type QualifierDiagnostics interface {
	ValidateQualifiers(qualifiers []Qualifier) error
}
