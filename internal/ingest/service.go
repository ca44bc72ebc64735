// Package ingest reads catalog objects from spreadsheet workbooks and
// creates them on the server. Each sheet holds one entity type, named after
// it, with a header row of attribute names and one object per data row.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"catalog-query-api/pkg/metadata"
)

// Creator stores one object of an entity type and returns its id.
// client.Client satisfies this.
type Creator interface {
	Create(ctx context.Context, entityType string, object map[string]any) (int64, error)
}

// Service turns workbook rows into catalog objects.
type Service struct {
	provider metadata.Provider
	creator  Creator
}

// NewService creates a new ingest service.
func NewService(provider metadata.Provider, creator Creator) *Service {
	return &Service{provider: provider, creator: creator}
}

// Summary returns ingest level metrics.
type Summary struct {
	BatchID string
	Rows    int
	Created map[string]int
}

// Ingest reads the workbook and creates every object it holds. Sheets are
// processed in workbook order, so referenced types must come first. The
// whole ingest is tagged with a batch ID for log correlation; a failed row
// stops the ingest with rows created so far left in place.
func (s *Service) Ingest(ctx context.Context, r io.Reader) (Summary, error) {
	summary := Summary{
		BatchID: uuid.NewString(),
		Created: make(map[string]int),
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return summary, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return summary, errors.New("workbook has no sheets")
	}

	log.Printf("[INGEST] batch %s: %d sheets", summary.BatchID, len(sheets))
	for _, sheet := range sheets {
		et, err := s.provider.EntityType(sheet)
		if err != nil {
			return summary, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return summary, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		created, err := s.ingestSheet(ctx, et, rows)
		summary.Rows += created
		summary.Created[sheet] += created
		if err != nil {
			return summary, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		log.Printf("[INGEST] batch %s: %s created %d objects", summary.BatchID, sheet, created)
	}
	return summary, nil
}

// column binds one header cell to an attribute of the entity type.
type column struct {
	attr metadata.AttrInfo
}

func (s *Service) ingestSheet(ctx context.Context, et *metadata.EntityType, rows [][]string) (int, error) {
	var header []string
	var dataRows [][]string
	for _, row := range rows {
		if len(cleanRow(row)) == 0 {
			continue
		}
		if header == nil {
			header = row
			continue
		}
		dataRows = append(dataRows, row)
	}
	if header == nil {
		return 0, errors.New("no header row found")
	}

	columns := make([]column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		attr, ok := et.Attr(name)
		if !ok {
			return 0, fmt.Errorf("column %q is not an attribute of %s", name, et.Name)
		}
		if attr.Kind == metadata.KindMany {
			return 0, fmt.Errorf("column %q is a one-to-many relation and cannot be ingested from a row", name)
		}
		columns[i] = column{attr: attr}
	}

	created := 0
	for rowNum, row := range dataRows {
		object := make(map[string]any, len(columns))
		for i, col := range columns {
			if i >= len(row) {
				break
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			value, err := cellValue(col.attr, cell)
			if err != nil {
				return created, fmt.Errorf("row %d: column %q: %w", rowNum+2, col.attr.Name, err)
			}
			object[col.attr.Name] = value
		}
		if len(object) == 0 {
			continue
		}
		if _, err := s.creator.Create(ctx, et.Name, object); err != nil {
			return created, fmt.Errorf("row %d: %w", rowNum+2, err)
		}
		created++
	}
	return created, nil
}

// cellValue converts one cell into the value the server expects. To-one
// relation columns carry the id of the related object.
func cellValue(attr metadata.AttrInfo, cell string) (any, error) {
	if attr.Kind == metadata.KindOne {
		id, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("relation reference %q is not an id", cell)
		}
		return map[string]any{"id": id}, nil
	}
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n, nil
	}
	if x, err := strconv.ParseFloat(cell, 64); err == nil {
		return x, nil
	}
	if b, err := strconv.ParseBool(cell); err == nil {
		return b, nil
	}
	return cell, nil
}

func cleanRow(row []string) []string {
	cleaned := make([]string, 0, len(row))
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}
