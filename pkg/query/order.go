package query

import (
	"fmt"

	"catalog-query-api/pkg/metadata"
)

// NaturalOrder derives the canonical sort attribute sequence for an entity
// type: its declared natural-sort attributes, or the uniqueness constraint
// when none are declared, with the id attribute appended when it belongs to
// the constraint but is missing from the list. To-one relations expand
// depth-first into their own natural order; to-many relations contribute
// nothing. The result is deterministic for a fixed schema.
func (r *Resolver) NaturalOrder(et *metadata.EntityType) ([]string, error) {
	return r.naturalOrder(et, make(map[string]bool))
}

func (r *Resolver) naturalOrder(et *metadata.EntityType, visiting map[string]bool) ([]string, error) {
	// A relation cycle in the schema would recurse forever; a revisited
	// entity type on the current path contributes nothing instead.
	if visiting[et.Name] {
		return nil, nil
	}
	visiting[et.Name] = true
	defer delete(visiting, et.Name)

	base := et.SortAttrs
	if len(base) == 0 {
		base = et.Constraint
	}
	if et.HasConstraintAttr("id") && !containsString(base, "id") {
		base = append(append([]string(nil), base...), "id")
	}

	var order []string
	for _, name := range base {
		info, ok := et.Attr(name)
		if !ok {
			return nil, fmt.Errorf("natural order of %s: unknown attribute %q", et.Name, name)
		}
		switch info.Kind {
		case metadata.KindAttribute:
			order = append(order, name)
		case metadata.KindOne:
			related, err := r.provider.EntityType(info.Type)
			if err != nil {
				return nil, fmt.Errorf("natural order of %s: %w", et.Name, err)
			}
			sub, err := r.naturalOrder(related, visiting)
			if err != nil {
				return nil, err
			}
			for _, s := range sub {
				order = append(order, name+"."+s)
			}
		case metadata.KindMany:
			// No scalar ordering exists across the rows of a one-to-many
			// relation.
		}
	}
	return order, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
