package query

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultAliases maps relation paths to preferred short aliases used in
// JOIN ... AS and INCLUDE ... AS clauses. Prescribing sensible names makes
// the rendered expressions easier to read; there is no need for completeness
// here. Keys may be bare relation names or dotted paths; a dotted key wins
// over a bare-name match for the same prefix.
var DefaultAliases = map[string]string{
	"datafileFormat":           "dff",
	"dataset":                  "ds",
	"dataset.investigation":    "i",
	"facility":                 "f",
	"grouping":                 "g",
	"instrumentScientists":     "isc",
	"investigation":            "i",
	"investigationGroups":      "ig",
	"investigationInstruments": "ii",
	"investigationUsers":       "iu",
	"parameters":               "p",
	"parameters.type":          "pt",
	"type":                     "t",
	"user":                     "u",
	"userGroups":               "ug",
}

// parentPaths returns the proper prefixes of a dotted path, shortest first.
// Each prefix denotes one joined relation.
func parentPaths(path string) []string {
	var parents []string
	start := 0
	for {
		i := strings.IndexByte(path[start:], '.')
		if i < 0 {
			break
		}
		parents = append(parents, path[:start+i])
		start += i + 1
	}
	return parents
}

// buildAliasTable assigns a short alias to every relation the query joins:
// the proper prefixes of attrPaths (paths terminating in a plain attribute)
// plus every path in relPaths (paths that are themselves relations, i.e.
// includes) and their prefixes. Prefixes are processed in lexicographic
// order so equivalent queries always produce the same table; the mapping is
// injective by construction.
func buildAliasTable(attrPaths, relPaths []string, preferred map[string]string) map[string]string {
	prefixes := make(map[string]bool)
	for _, p := range attrPaths {
		for _, parent := range parentPaths(p) {
			prefixes[parent] = true
		}
	}
	for _, p := range relPaths {
		for _, parent := range parentPaths(p) {
			prefixes[parent] = true
		}
		prefixes[p] = true
	}

	ordered := make([]string, 0, len(prefixes))
	for p := range prefixes {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	reserved := make(map[string]bool, len(preferred))
	for _, alias := range preferred {
		reserved[alias] = true
	}

	table := make(map[string]string, len(ordered))
	used := make(map[string]bool, len(ordered))
	count := 0
	for _, p := range ordered {
		alias, ok := preferred[p]
		if !ok {
			alias, ok = preferred[lastSegment(p)]
		}
		if !ok || used[alias] {
			for {
				count++
				alias = fmt.Sprintf("s%d", count)
				if !used[alias] && !reserved[alias] {
					break
				}
			}
		}
		table[p] = alias
		used[alias] = true
	}
	return table
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// qualify rewrites a dotted path into its aliased form: the last segment
// prefixed by the alias of its parent relation, or by the root alias "o"
// for top-level attributes.
func qualify(path string, table map[string]string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return "o." + path
	}
	return table[path[:i]] + "." + path[i+1:]
}
