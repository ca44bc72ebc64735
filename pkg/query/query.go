package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"catalog-query-api/pkg/metadata"
)

// Limit bounds a query result window. Each slot is either the decimal form
// of a non-negative integer or an opaque placeholder token (for example
// "%d") that the caller substitutes into the rendered string afterwards.
type Limit struct {
	Skip  string
	Count string
}

// LimitRange returns a literal result window.
func LimitRange(skip, count int) Limit {
	return Limit{Skip: strconv.Itoa(skip), Count: strconv.Itoa(count)}
}

// LimitPlaceholders returns a result window whose bounds are placeholder
// tokens rendered verbatim.
func LimitPlaceholders(skip, count string) Limit {
	return Limit{Skip: skip, Count: count}
}

// Query accumulates the target entity type, attribute-path conditions,
// orderings, includes, and an optional limit, and renders them as a single
// search expression. A Query is not safe for concurrent mutation; rendering
// recomputes everything from current state and is safe to repeat.
type Query struct {
	resolver *Resolver
	entity   *metadata.EntityType

	conditions map[string][]string
	order      []string
	includes   map[string]struct{}
	limit      *Limit
	aliases    map[string]string
	warnings   []string
}

// Option configures a Query during construction.
type Option func(*Query) error

// WithConditions adds one condition expression per attribute path.
func WithConditions(conditions map[string]string) Option {
	return func(q *Query) error { return q.AddConditions(conditions) }
}

// WithOrder requests explicit ordering by the given attribute paths.
func WithOrder(attrs ...string) Option {
	return func(q *Query) error { return q.SetOrder(attrs...) }
}

// WithNaturalOrder requests the natural order of the target entity type.
func WithNaturalOrder() Option {
	return func(q *Query) error { return q.SetNaturalOrder() }
}

// WithIncludes adds related objects to eagerly load.
func WithIncludes(attrs ...string) Option {
	return func(q *Query) error { return q.AddIncludes(attrs...) }
}

// WithLimit sets a literal result window.
func WithLimit(skip, count int) Option {
	return func(q *Query) error {
		l := LimitRange(skip, count)
		return q.SetLimit(&l)
	}
}

// WithLimitPlaceholders sets a result window of placeholder tokens.
func WithLimitPlaceholders(skip, count string) Option {
	return func(q *Query) error {
		l := LimitPlaceholders(skip, count)
		return q.SetLimit(&l)
	}
}

// WithAliases replaces the preferred alias mnemonic table for this Query.
func WithAliases(table map[string]string) Option {
	return func(q *Query) error {
		m := make(map[string]string, len(table))
		for k, v := range table {
			m[k] = v
		}
		q.aliases = m
		return nil
	}
}

// New creates a query searching for objects of the named entity type.
// Options are applied in the given order; conditions supplied before an
// ordering suppress the nullable-relation warnings for the paths they cover.
func New(provider metadata.Provider, entity string, opts ...Option) (*Query, error) {
	et, err := provider.EntityType(entity)
	if err != nil {
		return nil, &InvalidEntityTypeError{Name: entity, err: err}
	}
	q := &Query{
		resolver:   NewResolver(provider),
		entity:     et,
		conditions: make(map[string][]string),
		includes:   make(map[string]struct{}),
		aliases:    DefaultAliases,
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// EntityType returns the target entity type of the query.
func (q *Query) EntityType() *metadata.EntityType { return q.entity }

// Order returns the fully expanded ordering attribute paths.
func (q *Query) Order() []string { return append([]string(nil), q.order...) }

// Warnings returns the advisory messages accumulated so far, such as
// orderings on nullable relations that may drop rows.
func (q *Query) Warnings() []string { return append([]string(nil), q.warnings...) }

// AddCondition adds condition expressions on an attribute path. Repeated
// calls on the same path accumulate; all expressions are AND-combined in the
// rendered WHERE clause. The path is validated against the metadata; it may
// traverse one-to-many relations.
func (q *Query) AddCondition(attr string, exprs ...string) error {
	if len(exprs) == 0 {
		return nil
	}
	if _, err := q.resolver.resolve(q.entity, attr, forCondition); err != nil {
		return err
	}
	q.conditions[attr] = append(q.conditions[attr], exprs...)
	return nil
}

// AddConditions adds one condition expression per attribute path. Paths are
// processed in sorted order so a failure is deterministic.
func (q *Query) AddConditions(conditions map[string]string) error {
	attrs := make([]string, 0, len(conditions))
	for a := range conditions {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	for _, a := range attrs {
		if err := q.AddCondition(a, conditions[a]); err != nil {
			return err
		}
	}
	return nil
}

// AddIncludes adds related objects to the INCLUDE clause. Adding a path
// twice is a no-op. Each path must terminate in a relation.
func (q *Query) AddIncludes(attrs ...string) error {
	for _, attr := range attrs {
		if _, err := q.resolver.resolve(q.entity, attr, forInclude); err != nil {
			return err
		}
		q.includes[attr] = struct{}{}
	}
	return nil
}

// SetOrder replaces the ordering with the given attribute paths, in
// precedence order. A path terminating in a to-one relation expands into
// that relation's natural order. Ordering through a nullable to-one
// relation without a condition on it records a warning, since such rows
// vanish from the result on most servers.
func (q *Query) SetOrder(attrs ...string) error {
	var order []string
	var warnings []string
	for _, attr := range attrs {
		resolved, err := q.resolver.resolve(q.entity, attr, forOrder)
		if err != nil {
			return err
		}

		pattr := ""
		for _, step := range resolved.Steps {
			if pattr == "" {
				pattr = step.Name
			} else {
				pattr += "." + step.Name
			}
			if step.Info.Kind == metadata.KindOne && !step.Info.NotNullable {
				if _, ok := q.conditions[pattr]; !ok {
					warnings = append(warnings,
						fmt.Sprintf("ordering on nullable relation %q may exclude objects from the result", pattr))
				}
			}
		}

		if resolved.TerminalIsAttribute() {
			order = append(order, attr)
			continue
		}
		// The path names a related object; use the natural order of its
		// entity type.
		sub, err := q.resolver.NaturalOrder(resolved.Terminal().Target)
		if err != nil {
			return err
		}
		for _, s := range sub {
			order = append(order, attr+"."+s)
		}
	}
	q.order = order
	q.warnings = append(q.warnings, warnings...)
	return nil
}

// SetNaturalOrder orders the result by the natural order of the target
// entity type.
func (q *Query) SetNaturalOrder() error {
	order, err := q.resolver.NaturalOrder(q.entity)
	if err != nil {
		return err
	}
	q.order = order
	return nil
}

// ClearOrder removes the ORDER BY clause.
func (q *Query) ClearOrder() { q.order = nil }

// SetLimit sets the result window, or clears it when limit is nil. Literal
// bounds must be non-negative; anything that does not parse as an integer
// is treated as a placeholder and rendered verbatim.
func (q *Query) SetLimit(limit *Limit) error {
	if limit == nil {
		q.limit = nil
		return nil
	}
	for _, bound := range []string{limit.Skip, limit.Count} {
		if n, err := strconv.Atoi(bound); err == nil && n < 0 {
			return fmt.Errorf("query: negative limit bound %d", n)
		}
	}
	l := *limit
	q.limit = &l
	return nil
}

// Copy returns an independent clone of the query.
func (q *Query) Copy() *Query {
	c := &Query{
		resolver:   q.resolver,
		entity:     q.entity,
		conditions: make(map[string][]string, len(q.conditions)),
		order:      append([]string(nil), q.order...),
		includes:   make(map[string]struct{}, len(q.includes)),
		aliases:    q.aliases,
		warnings:   append([]string(nil), q.warnings...),
	}
	for a, exprs := range q.conditions {
		c.conditions[a] = append([]string(nil), exprs...)
	}
	for inc := range q.includes {
		c.includes[inc] = struct{}{}
	}
	if q.limit != nil {
		l := *q.limit
		c.limit = &l
	}
	return c
}

// Render builds the search expression from current state. It is pure and
// deterministic: the alias table is recomputed on every call and nothing on
// the Query is mutated, so repeated calls yield identical strings until the
// Query changes.
func (q *Query) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT o FROM %s o", q.entity.Name)

	attrPaths := make([]string, 0, len(q.conditions)+len(q.order))
	for a := range q.conditions {
		attrPaths = append(attrPaths, a)
	}
	attrPaths = append(attrPaths, q.order...)
	relPaths := sortedKeys(q.includes)
	table := buildAliasTable(attrPaths, relPaths, q.aliases)

	joins := make([]string, 0, len(table))
	for p := range table {
		joins = append(joins, p)
	}
	sort.Strings(joins)
	for _, p := range joins {
		fmt.Fprintf(&b, " JOIN %s AS %s", qualify(p, table), table[p])
	}

	if len(q.conditions) > 0 {
		attrs := make([]string, 0, len(q.conditions))
		for a := range q.conditions {
			attrs = append(attrs, a)
		}
		sort.Strings(attrs)
		clauses := make([]string, 0, len(attrs))
		for _, a := range attrs {
			qualified := qualify(a, table)
			for _, expr := range q.conditions[a] {
				clauses = append(clauses, qualified+" "+expr)
			}
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}

	if len(q.order) > 0 {
		entries := make([]string, 0, len(q.order))
		for _, a := range q.order {
			entries = append(entries, qualify(a, table))
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(entries, ", "))
	}

	if len(q.includes) > 0 {
		// Every prefix of an include path is itself included, so each entry
		// can be labelled with the alias later entries refer to.
		closure := make(map[string]struct{}, len(q.includes))
		for inc := range q.includes {
			closure[inc] = struct{}{}
			for _, parent := range parentPaths(inc) {
				closure[parent] = struct{}{}
			}
		}
		entries := make([]string, 0, len(closure))
		for _, p := range sortedKeys(closure) {
			entries = append(entries, qualify(p, table)+" AS "+table[p])
		}
		b.WriteString(" INCLUDE ")
		b.WriteString(strings.Join(entries, ", "))
	}

	if q.limit != nil {
		fmt.Fprintf(&b, " LIMIT %s, %s", q.limit.Skip, q.limit.Count)
	}
	return b.String()
}

// String implements fmt.Stringer.
func (q *Query) String() string { return q.Render() }

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
