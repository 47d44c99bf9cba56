package loader

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
)

type rawSheet struct {
	name string
	rows [][]string
}

// readWorkbook returns every sheet of an OOXML workbook. Cells are read raw
// so numbers keep full precision and dates arrive as Excel serial numbers.
func readWorkbook(data []byte) ([]rawSheet, []dataset.Warning, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var (
		sheets   []rawSheet
		warnings []dataset.Warning
	)
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			warnings = append(warnings, dataset.Warnf(dataset.StageLoad, "", "sheet %q unreadable: %v", name, err))
			continue
		}
		sheets = append(sheets, rawSheet{name: name, rows: rows})
	}
	if len(sheets) == 0 && len(warnings) == 0 {
		return nil, nil, ErrEmptyFile
	}
	return sheets, warnings, nil
}
