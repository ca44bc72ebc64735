package query

import (
	"reflect"
	"testing"
)

func TestParentPaths(t *testing.T) {
	cases := []struct {
		path string
		want []string
	}{
		{"abc", nil},
		{"a.bb", []string{"a"}},
		{"a.bb.c.ddd.e.ff", []string{"a", "a.bb", "a.bb.c", "a.bb.c.ddd", "a.bb.c.ddd.e"}},
	}
	for _, c := range cases {
		if got := parentPaths(c.path); !reflect.DeepEqual(got, c.want) {
			t.Errorf("parentPaths(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestAliasTablePrefersMnemonics(t *testing.T) {
	table := buildAliasTable([]string{
		"dataset.investigation.name",
		"dataset.name",
		"parameters.type.name",
	}, nil, DefaultAliases)

	want := map[string]string{
		"dataset":               "ds",
		"dataset.investigation": "i",
		"parameters":            "p",
		"parameters.type":       "pt",
	}
	if !reflect.DeepEqual(table, want) {
		t.Errorf("table = %v, want %v", table, want)
	}
}

func TestAliasTableSyntheticFallback(t *testing.T) {
	table := buildAliasTable([]string{
		"alpha.beta.gamma.delta",
	}, nil, DefaultAliases)

	want := map[string]string{
		"alpha":            "s1",
		"alpha.beta":       "s2",
		"alpha.beta.gamma": "s3",
	}
	if !reflect.DeepEqual(table, want) {
		t.Errorf("table = %v, want %v", table, want)
	}
}

func TestAliasTableMnemonicTakenFallsBack(t *testing.T) {
	// Both prefixes end in "facility"; only the first (lexicographically)
	// gets the mnemonic.
	table := buildAliasTable([]string{
		"facility.name",
		"type.facility.name",
	}, nil, DefaultAliases)

	if table["facility"] != "f" {
		t.Errorf("facility alias = %q, want f", table["facility"])
	}
	if table["type.facility"] != "s1" {
		t.Errorf("type.facility alias = %q, want s1", table["type.facility"])
	}
}

func TestAliasTableIsInjective(t *testing.T) {
	table := buildAliasTable([]string{
		"dataset.investigation.facility.name",
		"dataset.investigation.type.name",
		"dataset.type.name",
		"datafileFormat.facility.name",
	}, []string{"parameters.type", "dataset"}, DefaultAliases)

	seen := make(map[string]string, len(table))
	for path, alias := range table {
		if prev, ok := seen[alias]; ok {
			t.Errorf("alias %q assigned to both %q and %q", alias, prev, path)
		}
		seen[alias] = path
	}
}

func TestAliasTableIsDeterministic(t *testing.T) {
	attr := []string{"dataset.investigation.name", "dataset.name", "alpha.beta.x"}
	rel := []string{"parameters.type"}
	first := buildAliasTable(attr, rel, DefaultAliases)
	for i := 0; i < 10; i++ {
		if got := buildAliasTable(attr, rel, DefaultAliases); !reflect.DeepEqual(got, first) {
			t.Fatalf("allocation differs between runs: %v vs %v", got, first)
		}
	}
}

func TestSyntheticTokensSkipReservedMnemonics(t *testing.T) {
	preferred := map[string]string{"known": "s1"}
	table := buildAliasTable([]string{"alpha.x", "beta.y"}, nil, preferred)

	// s1 is reserved by the mnemonic table, so synthetic numbering starts
	// beyond it.
	if table["alpha"] == "s1" || table["beta"] == "s1" {
		t.Errorf("synthetic alias collided with reserved mnemonic: %v", table)
	}
	if table["alpha"] == table["beta"] {
		t.Errorf("aliases not injective: %v", table)
	}
}

func TestRelationPathsAreAliasedThemselves(t *testing.T) {
	table := buildAliasTable(nil, []string{"dataset.investigation"}, DefaultAliases)
	want := map[string]string{
		"dataset":               "ds",
		"dataset.investigation": "i",
	}
	if !reflect.DeepEqual(table, want) {
		t.Errorf("table = %v, want %v", table, want)
	}
}
