package buyers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CSVColumns is the canonical column set for both import and export.
var CSVColumns = []string{
	"fullName", "email", "phone", "city", "propertyType", "bhk", "purpose",
	"budgetMin", "budgetMax", "timeline", "source", "notes", "tags", "status",
}

// ParseCSV reads a delimited blob with a header row and returns one cell map
// per data row, keyed by canonical column name. Columns outside the known set
// are ignored; a row shorter than the header yields empty cells. Malformed
// CSV input is batch-fatal.
func ParseCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing header row", ErrMalformedCSV)
	}

	columns := make(map[string]int)
	for i, name := range header {
		name = strings.TrimSpace(name)
		for _, known := range CSVColumns {
			if strings.EqualFold(name, known) {
				columns[known] = i
			}
		}
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		cells := make(map[string]string, len(columns))
		for name, idx := range columns {
			if idx < len(record) {
				cells[name] = record[idx]
			}
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// IsBlankRow reports whether every cell is empty after trimming. Blank rows
// are formatting artifacts, not data, and never count toward totals.
func IsBlankRow(cells map[string]string) bool {
	for _, v := range cells {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// CoerceCSVRow converts the loosely-typed cells of one CSV row into a typed
// input: strings are trimmed, empty cells become absent, numeric budget
// strings become integers (non-numeric fails), and the tags cell is split on
// commas. The coerced input then passes through the same constraint checks as
// a form payload.
func CoerceCSVRow(cells map[string]string) (Input, *ValidationError) {
	get := func(name string) string {
		return strings.TrimSpace(cells[name])
	}

	verr := &ValidationError{}
	in := Input{
		FullName:     get("fullName"),
		Email:        get("email"),
		Phone:        get("phone"),
		City:         get("city"),
		PropertyType: get("propertyType"),
		BHK:          get("bhk"),
		Purpose:      get("purpose"),
		Timeline:     get("timeline"),
		Source:       get("source"),
		Notes:        get("notes"),
		Status:       get("status"),
	}
	in.BudgetMin = coerceBudget("budgetMin", get("budgetMin"), verr)
	in.BudgetMax = coerceBudget("budgetMax", get("budgetMax"), verr)
	in.Tags = SplitTags(get("tags"))

	if fieldErr := Validate(in); fieldErr != nil {
		verr.Fields = append(verr.Fields, fieldErr.Fields...)
	}
	if verr.empty() {
		return in, nil
	}
	return in, verr
}

// SplitTags turns a comma-joined cell into trimmed, non-empty tokens.
func SplitTags(cell string) []string {
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func coerceBudget(field, cell string, verr *ValidationError) *int {
	if cell == "" {
		return nil
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		verr.add(field, "must be a number")
		return nil
	}
	return &n
}

// WriteCSV streams the record set as a CSV blob with the canonical columns.
func WriteCSV(w io.Writer, records []*Buyer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVColumns); err != nil {
		return fmt.Errorf("buyers: write csv header: %w", err)
	}
	for _, b := range records {
		if err := writer.Write(exportRow(b)); err != nil {
			return fmt.Errorf("buyers: write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX streams the record set as an Excel workbook.
func WriteXLSX(w io.Writer, records []*Buyer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for col, name := range CSVColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("buyers: write xlsx header: %w", err)
		}
	}
	for i, b := range records {
		for col, value := range exportRow(b) {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("buyers: write xlsx row: %w", err)
			}
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("buyers: write xlsx: %w", err)
	}
	return nil
}

func exportRow(b *Buyer) []string {
	return []string{
		b.FullName,
		b.Email,
		b.Phone,
		b.City,
		b.PropertyType,
		b.BHK,
		b.Purpose,
		budgetCell(b.BudgetMin),
		budgetCell(b.BudgetMax),
		b.Timeline,
		b.Source,
		b.Notes,
		strings.Join(b.Tags, ","),
		b.Status,
	}
}

func budgetCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
