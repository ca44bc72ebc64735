package metadata

import (
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Schema is a Provider backed by a static schema document.
type Schema struct {
	types map[string]*EntityType
}

// EntityType implements Provider.
func (s *Schema) EntityType(name string) (*EntityType, error) {
	t, ok := s.types[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return t, nil
}

// EntityNames returns the names of all entity types in sorted order.
func (s *Schema) EntityNames() []string {
	names := make([]string, 0, len(s.types))
	for n := range s.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type schemaDoc struct {
	Entities map[string]entityDoc `yaml:"entities"`
}

type entityDoc struct {
	Constraint []string           `yaml:"constraint"`
	SortAttrs  []string           `yaml:"sortAttrs"`
	Attributes map[string]attrDoc `yaml:"attributes"`
}

type attrDoc struct {
	One         string `yaml:"one"`
	Many        string `yaml:"many"`
	NotNullable bool   `yaml:"notNullable"`
}

// LoadSchema reads a YAML schema document and validates it: every relation
// must target an entity type declared in the same document, and no attribute
// may be both a to-one and a to-many relation.
func LoadSchema(r io.Reader) (*Schema, error) {
	var doc schemaDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if len(doc.Entities) == 0 {
		return nil, fmt.Errorf("schema declares no entities")
	}

	s := &Schema{types: make(map[string]*EntityType, len(doc.Entities))}
	for name, ent := range doc.Entities {
		attrs := make([]AttrInfo, 0, len(ent.Attributes))
		for attrName, a := range ent.Attributes {
			info, err := buildAttr(attrName, a, doc.Entities)
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", name, err)
			}
			attrs = append(attrs, info)
		}
		for _, c := range ent.Constraint {
			if _, ok := ent.Attributes[c]; !ok && c != "id" {
				return nil, fmt.Errorf("entity %s: constraint names unknown attribute %q", name, c)
			}
		}
		for _, sa := range ent.SortAttrs {
			if _, ok := ent.Attributes[sa]; !ok && sa != "id" {
				return nil, fmt.Errorf("entity %s: sortAttrs names unknown attribute %q", name, sa)
			}
		}
		s.types[name] = NewEntityType(name, attrs, ent.Constraint, ent.SortAttrs)
	}
	return s, nil
}

func buildAttr(name string, a attrDoc, entities map[string]entityDoc) (AttrInfo, error) {
	if a.One != "" && a.Many != "" {
		return AttrInfo{}, fmt.Errorf("attribute %q declares both one and many targets", name)
	}
	info := AttrInfo{Name: name, Kind: KindAttribute, NotNullable: a.NotNullable}
	switch {
	case a.One != "":
		info.Kind = KindOne
		info.Type = strings.TrimSpace(a.One)
	case a.Many != "":
		info.Kind = KindMany
		info.Type = strings.TrimSpace(a.Many)
	}
	if info.Type != "" {
		if _, ok := entities[info.Type]; !ok {
			return AttrInfo{}, fmt.Errorf("attribute %q targets undeclared entity type %q", name, info.Type)
		}
	}
	return info, nil
}

//go:embed catalog.yaml
var defaultSchemaYAML []byte

var (
	defaultSchemaOnce sync.Once
	defaultSchema     *Schema
	defaultSchemaErr  error
)

// DefaultSchema returns the embedded description of the catalog's core
// entity set. It is loaded once; the embedded document is known to be valid,
// so a decode failure is a build defect and panics.
func DefaultSchema() *Schema {
	defaultSchemaOnce.Do(func() {
		defaultSchema, defaultSchemaErr = LoadSchema(strings.NewReader(string(defaultSchemaYAML)))
	})
	if defaultSchemaErr != nil {
		panic(fmt.Sprintf("metadata: embedded schema invalid: %v", defaultSchemaErr))
	}
	return defaultSchema
}
