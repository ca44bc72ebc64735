// Package export renders search results into tabular files. Rows coming back
// from the server are JSON values, either the bare object map or wrapped in a
// single-key map carrying the entity type name.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"catalog-query-api/pkg/metadata"
)

// Table is a rendered result set: one column per scalar attribute of the
// entity type, one row per result object.
type Table struct {
	Headers []string
	Rows    [][]string
}

// BuildTable flattens result rows into a table. Columns are the scalar
// attributes of the entity type in sorted order; relations are skipped since
// they do not fit a flat row.
func BuildTable(et *metadata.EntityType, rows []any) (Table, error) {
	headers := make([]string, 0)
	for _, name := range et.AttrNames() {
		info, _ := et.Attr(name)
		if info.Kind == metadata.KindAttribute {
			headers = append(headers, name)
		}
	}

	table := Table{Headers: headers, Rows: make([][]string, 0, len(rows))}
	for i, row := range rows {
		props, err := objectProperties(et.Name, row)
		if err != nil {
			return Table{}, fmt.Errorf("row %d: %w", i, err)
		}
		cells := make([]string, len(headers))
		for j, h := range headers {
			cells[j] = formatValue(props[h])
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

// objectProperties unwraps one result row into its property map.
func objectProperties(entityType string, row any) (map[string]any, error) {
	m, ok := row.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("result row is %T, not an object", row)
	}
	if inner, ok := m[entityType].(map[string]any); ok && len(m) == 1 {
		return inner, nil
	}
	return m, nil
}

// WriteCSV writes the table as CSV.
func (t Table) WriteCSV(w io.Writer) error {
	csvWriter := csv.NewWriter(w)
	if len(t.Headers) > 0 {
		if err := csvWriter.Write(t.Headers); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, row := range t.Rows {
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}

// WriteXLSX writes the table as a single-sheet XLSX workbook named after the
// entity type.
func (t Table) WriteXLSX(w io.Writer, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	writeRow := func(rowNum int, cells []string) error {
		for col, cell := range cells {
			ref, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return fmt.Errorf("cell reference: %w", err)
			}
			if err := f.SetCellValue(sheet, ref, cell); err != nil {
				return fmt.Errorf("set cell %s: %w", ref, err)
			}
		}
		return nil
	}

	if err := writeRow(1, t.Headers); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if err := writeRow(i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Format selects the output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Formats lists the supported format names.
func Formats() []string {
	names := []string{string(FormatCSV), string(FormatXLSX)}
	sort.Strings(names)
	return names
}

// ParseFormat validates a format name from the command line.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatCSV, FormatXLSX:
		return Format(name), nil
	default:
		return "", fmt.Errorf("unknown export format %q (supported: csv, xlsx)", name)
	}
}

// Write renders the table in the given format. The sheet name only applies
// to XLSX output.
func (t Table) Write(w io.Writer, format Format, sheet string) error {
	switch format {
	case FormatCSV:
		return t.WriteCSV(w)
	case FormatXLSX:
		return t.WriteXLSX(w, sheet)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case float32, float64, int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%v", v)
	case []byte:
		return string(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
