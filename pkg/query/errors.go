package query

import (
	"fmt"
)

// UnknownAttributeError reports a path segment that names a nonexistent
// attribute on the entity type reached at that point of the walk.
type UnknownAttributeError struct {
	// Entity is the entity type that lacks the attribute.
	Entity string
	// Attribute is the offending segment.
	Attribute string
	// Path is the full dotted path being resolved.
	Path string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("query: invalid attribute %q in %q for %s", e.Attribute, e.Path, e.Entity)
}

// InvalidTraversalError reports a path that continues past a segment which
// cannot be traversed: a one-to-many relation in a non-terminal position, or
// any segment after a plain attribute.
type InvalidTraversalError struct {
	Entity    string
	Attribute string
	Path      string
	Reason    string
}

func (e *InvalidTraversalError) Error() string {
	return fmt.Sprintf("query: %s at %q in %q for %s", e.Reason, e.Attribute, e.Path, e.Entity)
}

// UnorderableRelationError reports an explicit ORDER BY path terminating in
// a one-to-many relation. There is no scalar ordering across multiple rows.
type UnorderableRelationError struct {
	Entity string
	Path   string
}

func (e *UnorderableRelationError) Error() string {
	return fmt.Sprintf("query: cannot use one to many relationship in %q to order %s", e.Path, e.Entity)
}

// InvalidEntityTypeError reports a target entity type that does not exist in
// the catalog schema.
type InvalidEntityTypeError struct {
	Name string
	err  error
}

func (e *InvalidEntityTypeError) Error() string {
	return fmt.Sprintf("query: invalid entity type %q", e.Name)
}

func (e *InvalidEntityTypeError) Unwrap() error { return e.err }

// InvalidAttributeError reports a resolvable path that is not usable in the
// requested position, such as an include path terminating in a plain
// attribute.
type InvalidAttributeError struct {
	Entity string
	Path   string
	Reason string
}

func (e *InvalidAttributeError) Error() string {
	return fmt.Sprintf("query: invalid attribute path %q for %s: %s", e.Path, e.Entity, e.Reason)
}
