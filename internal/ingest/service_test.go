package ingest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"catalog-query-api/pkg/metadata"
)

type recordingCreator struct {
	calls []struct {
		entityType string
		object     map[string]any
	}
	failOn string
}

func (c *recordingCreator) Create(_ context.Context, entityType string, object map[string]any) (int64, error) {
	if c.failOn != "" && entityType == c.failOn {
		return 0, context.DeadlineExceeded
	}
	c.calls = append(c.calls, struct {
		entityType string
		object     map[string]any
	}{entityType, object})
	return int64(len(c.calls)), nil
}

func workbook(t *testing.T, sheets map[string][][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
			first = false
		} else {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatalf("NewSheet: %v", err)
			}
		}
		for i, row := range rows {
			ref, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName: %v", err)
			}
			if err := f.SetSheetRow(name, ref, &row); err != nil {
				t.Fatalf("SetSheetRow: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return &buf
}

func TestIngestWorkbook(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Facility": {
			{"name", "daysUntilRelease"},
			{"LILS", 10},
			{"ESNF", 20},
		},
	})

	creator := &recordingCreator{}
	svc := NewService(metadata.DefaultSchema(), creator)
	summary, err := svc.Ingest(context.Background(), buf)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if summary.BatchID == "" {
		t.Errorf("no batch ID assigned")
	}
	if summary.Rows != 2 || summary.Created["Facility"] != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if len(creator.calls) != 2 {
		t.Fatalf("creator called %d times, want 2", len(creator.calls))
	}
	first := creator.calls[0]
	if first.entityType != "Facility" || first.object["name"] != "LILS" {
		t.Errorf("first call = %+v", first)
	}
	if days, ok := first.object["daysUntilRelease"].(int64); !ok || days != 10 {
		t.Errorf("daysUntilRelease = %v (%T)", first.object["daysUntilRelease"], first.object["daysUntilRelease"])
	}
}

func TestIngestRelationColumn(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Dataset": {
			{"investigation", "name", "complete"},
			{7, "ds-2026-01", "true"},
		},
	})

	creator := &recordingCreator{}
	svc := NewService(metadata.DefaultSchema(), creator)
	if _, err := svc.Ingest(context.Background(), buf); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	obj := creator.calls[0].object
	rel, ok := obj["investigation"].(map[string]any)
	if !ok || rel["id"] != int64(7) {
		t.Errorf("investigation = %v", obj["investigation"])
	}
	if obj["complete"] != true {
		t.Errorf("complete = %v (%T)", obj["complete"], obj["complete"])
	}
}

func TestIngestUnknownSheet(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Widget": {
			{"name"},
			{"w1"},
		},
	})
	svc := NewService(metadata.DefaultSchema(), &recordingCreator{})
	if _, err := svc.Ingest(context.Background(), buf); !metadata.IsNotFound(err) {
		t.Errorf("Ingest of unknown sheet = %v, want not-found error", err)
	}
}

func TestIngestUnknownColumn(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Facility": {
			{"name", "colour"},
			{"LILS", "blue"},
		},
	})
	svc := NewService(metadata.DefaultSchema(), &recordingCreator{})
	_, err := svc.Ingest(context.Background(), buf)
	if err == nil || !strings.Contains(err.Error(), "colour") {
		t.Errorf("Ingest with unknown column = %v", err)
	}
}

func TestIngestToManyColumnRejected(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Facility": {
			{"name", "instruments"},
			{"LILS", "3"},
		},
	})
	svc := NewService(metadata.DefaultSchema(), &recordingCreator{})
	if _, err := svc.Ingest(context.Background(), buf); err == nil {
		t.Errorf("to-many column accepted")
	}
}

func TestIngestStopsOnCreateFailure(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Facility": {
			{"name"},
			{"LILS"},
		},
	})
	svc := NewService(metadata.DefaultSchema(), &recordingCreator{failOn: "Facility"})
	summary, err := svc.Ingest(context.Background(), buf)
	if err == nil {
		t.Fatalf("Ingest succeeded despite create failure")
	}
	if summary.Rows != 0 {
		t.Errorf("summary.Rows = %d, want 0", summary.Rows)
	}
}
