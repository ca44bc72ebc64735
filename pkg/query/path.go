// Package query builds search expressions in the catalog's JPQL-like query
// sublanguage from attribute-path conditions, orderings, and eager-load
// includes. Paths are validated against entity metadata, joined relations
// receive short deterministic aliases, and rendering is a pure projection of
// the Query state.
package query

import (
	"fmt"
	"strings"

	"catalog-query-api/pkg/metadata"
)

// pathMode selects the strictness of path resolution for its use site. The
// remote grammar joins one-to-many relations freely in WHERE and INCLUDE,
// but an ORDER BY path must stay scalar all the way down.
type pathMode int

const (
	forCondition pathMode = iota
	forOrder
	forInclude
)

// Step is one resolved segment of an attribute path.
type Step struct {
	// Name is the attribute name of this segment.
	Name string
	// Info describes the attribute on its owning entity type.
	Info metadata.AttrInfo
	// Owner is the entity type the segment was looked up on.
	Owner *metadata.EntityType
	// Target is the related entity type for relation segments, nil for
	// plain attributes.
	Target *metadata.EntityType
}

// ResolvedPath is the chain of steps a dotted attribute path walks through,
// rooted at the query's target entity type.
type ResolvedPath struct {
	Path  string
	Steps []Step
}

// Terminal returns the final step.
func (p *ResolvedPath) Terminal() Step {
	return p.Steps[len(p.Steps)-1]
}

// TerminalIsAttribute reports whether the path ends in a plain attribute,
// making it usable directly in WHERE and ORDER BY.
func (p *ResolvedPath) TerminalIsAttribute() bool {
	return p.Terminal().Info.Kind == metadata.KindAttribute
}

// Resolver walks dotted attribute paths against entity metadata. It is
// stateless apart from the provider and safe for concurrent use.
type Resolver struct {
	provider metadata.Provider
}

// NewResolver returns a Resolver reading metadata from provider.
func NewResolver(provider metadata.Provider) *Resolver {
	return &Resolver{provider: provider}
}

// resolve walks path segment by segment starting at et, classifying each
// segment and failing on the first invalid one.
func (r *Resolver) resolve(et *metadata.EntityType, path string, mode pathMode) (*ResolvedPath, error) {
	segments := strings.Split(path, ".")
	resolved := &ResolvedPath{Path: path, Steps: make([]Step, 0, len(segments))}

	cur := et
	for i, seg := range segments {
		last := i == len(segments)-1
		if seg == "" {
			return nil, &InvalidAttributeError{Entity: et.Name, Path: path, Reason: "empty path segment"}
		}
		info, ok := cur.Attr(seg)
		if !ok {
			return nil, &UnknownAttributeError{Entity: cur.Name, Attribute: seg, Path: path}
		}

		step := Step{Name: seg, Info: info, Owner: cur}
		switch info.Kind {
		case metadata.KindAttribute:
			if !last {
				return nil, &InvalidTraversalError{
					Entity:    et.Name,
					Attribute: seg,
					Path:      path,
					Reason:    "cannot traverse past a plain attribute",
				}
			}
		case metadata.KindOne, metadata.KindMany:
			if info.Kind == metadata.KindMany {
				if mode == forOrder {
					if !last {
						return nil, &InvalidTraversalError{
							Entity:    et.Name,
							Attribute: seg,
							Path:      path,
							Reason:    "cannot traverse a one-to-many relation",
						}
					}
					return nil, &UnorderableRelationError{Entity: et.Name, Path: path}
				}
			}
			target, err := r.provider.EntityType(info.Type)
			if err != nil {
				return nil, fmt.Errorf("resolve %q for %s: %w", path, et.Name, err)
			}
			step.Target = target
			cur = target
		default:
			return nil, fmt.Errorf("resolve %q for %s: invalid relation kind %q", path, et.Name, info.Kind)
		}
		resolved.Steps = append(resolved.Steps, step)
	}

	if mode == forInclude && resolved.TerminalIsAttribute() {
		return nil, &InvalidAttributeError{
			Entity: et.Name,
			Path:   path,
			Reason: "include paths must terminate in a related object",
		}
	}
	return resolved, nil
}
