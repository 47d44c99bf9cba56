// Package export writes report tables as CSV or as an Excel workbook.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
)

const (
	DataSheet = "Data"
	KPISheet  = "KPIs"

	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrNoTable is returned when there is nothing to export.
var ErrNoTable = errors.New("no table to export")

// KPI is one named value on the KPI sheet.
type KPI struct {
	Name  string
	Value float64
}

// WriteCSV writes the header and every row; missing cells are empty.
func WriteCSV(w io.Writer, table *dataset.Table) error {
	if table == nil {
		return ErrNoTable
	}
	cw := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, rec := range table.Records() {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the table to a "Data" sheet with a bold header row.
// A "KPIs" sheet of name and value rows is added when kpis is not empty.
func WriteXLSX(w io.Writer, table *dataset.Table, kpis []KPI) error {
	if table == nil {
		return ErrNoTable
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), DataSheet); err != nil {
		return fmt.Errorf("failed to name data sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, DataSheet, 1, stringsToCells(table.Columns)); err != nil {
		return err
	}
	if err := f.SetRowStyle(DataSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	for i, row := range table.Rows {
		cells := make([]any, len(table.Columns))
		for j := range table.Columns {
			if j < len(row) {
				cells[j] = cellValue(row[j])
			}
		}
		if err := writeRow(f, DataSheet, i+2, cells); err != nil {
			return err
		}
	}

	if len(kpis) > 0 {
		if _, err := f.NewSheet(KPISheet); err != nil {
			return fmt.Errorf("failed to create kpi sheet: %w", err)
		}
		if err := writeRow(f, KPISheet, 1, []any{"KPI", "Value"}); err != nil {
			return err
		}
		if err := f.SetRowStyle(KPISheet, 1, 1, bold); err != nil {
			return fmt.Errorf("failed to style kpi header: %w", err)
		}
		for i, k := range kpis {
			if err := writeRow(f, KPISheet, i+2, []any{k.Name, k.Value}); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// cellValue keeps numbers numeric in the workbook; missing cells stay empty.
func cellValue(v dataset.Value) any {
	if v.IsMissing() {
		return nil
	}
	if f, ok := v.Float(); ok {
		return f
	}
	return v.String()
}

func stringsToCells(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
