// Package metadata describes the entity-relationship schema of a remote
// catalog: entity types, their attributes, and the relationships between
// them. The query package consumes this model through the Provider
// interface, so it can be backed by a static schema file or by server
// reflection without changing the query core.
package metadata

import (
	"errors"
	"fmt"
	"sort"
)

// RelationKind classifies an attribute of an entity type.
type RelationKind string

const (
	// KindAttribute is a plain scalar attribute.
	KindAttribute RelationKind = "ATTRIBUTE"
	// KindOne is a many-to-one relationship to another entity type.
	KindOne RelationKind = "ONE"
	// KindMany is a one-to-many relationship to another entity type.
	KindMany RelationKind = "MANY"
)

// AttrInfo describes a single attribute of an entity type.
type AttrInfo struct {
	Name string
	Kind RelationKind
	// Type names the related entity type for ONE and MANY relationships.
	// Empty for plain attributes.
	Type string
	// NotNullable reports whether the attribute must be set. Ordering on a
	// nullable to-one relation silently drops rows on some servers, so the
	// query layer warns about it.
	NotNullable bool
}

// EntityType is the immutable description of one entity kind in the catalog
// schema. Values are built once by a Provider and never mutated afterwards,
// so they are safe for concurrent reads.
type EntityType struct {
	// Name is the entity type name as used in query strings.
	Name string
	// SortAttrs lists the attributes that define the natural order of the
	// type. May be empty; the Constraint is used as a fallback.
	SortAttrs []string
	// Constraint lists the attributes whose combination uniquely identifies
	// an instance. Defaults to the id attribute alone.
	Constraint []string

	attrs map[string]AttrInfo
}

// NewEntityType builds an EntityType from its attribute descriptions. The id
// attribute is implicit and added when absent; an empty constraint defaults
// to ("id").
func NewEntityType(name string, attrs []AttrInfo, constraint, sortAttrs []string) *EntityType {
	m := make(map[string]AttrInfo, len(attrs)+1)
	for _, a := range attrs {
		m[a.Name] = a
	}
	if _, ok := m["id"]; !ok {
		m["id"] = AttrInfo{Name: "id", Kind: KindAttribute, NotNullable: true}
	}
	if len(constraint) == 0 {
		constraint = []string{"id"}
	}
	return &EntityType{
		Name:       name,
		SortAttrs:  append([]string(nil), sortAttrs...),
		Constraint: append([]string(nil), constraint...),
		attrs:      m,
	}
}

// Attr returns the description of the named attribute.
func (t *EntityType) Attr(name string) (AttrInfo, bool) {
	a, ok := t.attrs[name]
	return a, ok
}

// AttrNames returns the names of all attributes in sorted order.
func (t *EntityType) AttrNames() []string {
	names := make([]string, 0, len(t.attrs))
	for n := range t.attrs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasConstraintAttr reports whether name is part of the uniqueness
// constraint.
func (t *EntityType) HasConstraintAttr(name string) bool {
	for _, c := range t.Constraint {
		if c == name {
			return true
		}
	}
	return false
}

// Provider resolves entity type names to their metadata. Implementations
// must be safe for concurrent reads; the query core only ever reads.
type Provider interface {
	EntityType(name string) (*EntityType, error)
}

// ErrNotFound is the sentinel matched by lookup failures of any Provider.
var ErrNotFound = errors.New("metadata: entity type not found")

// NotFoundError reports a lookup of an entity type that does not exist in
// the schema.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("metadata: entity type %q not found", e.Name)
}

// Is lets errors.Is(err, ErrNotFound) match NotFoundError values.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// IsNotFound reports whether err is a failed entity type lookup.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NaturalSortOverrides carries natural-sort attribute lists for entity types
// whose server metadata declares none. Server-backed providers apply these
// when building EntityType values from reflection; the static schema file
// carries the same data inline.
var NaturalSortOverrides = map[string][]string{
	"DataCollection":         {"dataCollectionDatasets", "dataCollectionDatafiles"},
	"DataCollectionDatafile": {"datafile"},
	"DataCollectionDataset":  {"dataset"},
	"InvestigationType":      {"facility", "name"},
	"Job":                    {"application", "arguments", "inputDataCollection", "outputDataCollection"},
	"Log":                    {"operation", "entityName"},
	"Publication":            {"investigation", "fullReference"},
	"Rule":                   {"grouping", "what"},
	"Study":                  {"name"},
}
