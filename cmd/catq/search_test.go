package main

import (
	"strings"
	"testing"

	"catalog-query-api/pkg/dumpfile"
	"catalog-query-api/pkg/metadata"
)

func TestBuildQueryFromFlags(t *testing.T) {
	q, err := buildQuery(metadata.DefaultSchema(), "Datafile",
		[]string{"dataset.name = 'ds-2026-01'", "name like 'img-%'"},
		nil, false, []string{"datafileFormat"}, "0,10")
	if err != nil {
		t.Fatalf("buildQuery: %v", err)
	}
	got := q.Render()
	for _, part := range []string{
		"SELECT o FROM Datafile o",
		"ds.name = 'ds-2026-01'",
		"o.name like 'img-%'",
		"INCLUDE o.datafileFormat AS dff",
		"LIMIT 0, 10",
	} {
		if !strings.Contains(got, part) {
			t.Errorf("rendered query missing %q:\n%s", part, got)
		}
	}
}

func TestBuildQueryFlagErrors(t *testing.T) {
	if _, err := buildQuery(metadata.DefaultSchema(), "Datafile",
		[]string{"name"}, nil, false, nil, ""); err == nil {
		t.Errorf("condition without operator accepted")
	}
	if _, err := buildQuery(metadata.DefaultSchema(), "Datafile",
		nil, []string{"name"}, true, nil, ""); err == nil {
		t.Errorf("--order with --natural-order accepted")
	}
	if _, err := buildQuery(metadata.DefaultSchema(), "Datafile",
		nil, nil, false, nil, "ten"); err == nil {
		t.Errorf("malformed limit accepted")
	}
}

func TestDumpTypesKeepsRestoreOrder(t *testing.T) {
	got := dumpTypes([]string{"investigation", "facility"})
	want := []string{"facility", "investigation"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("dumpTypes = %v, want %v", got, want)
	}
	if len(dumpTypes(nil)) != len(dumpfile.RestoreOrder) {
		t.Errorf("empty filter does not dump everything")
	}
}
