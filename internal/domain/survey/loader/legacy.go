package loader

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
)

// legacyCharset decodes BIFF5 byte strings; BIFF8 text is UTF-16 already.
const legacyCharset = "utf-8"

// readLegacyWorkbook returns every sheet of a BIFF (.xls) workbook. Rows keep
// their sheet position so blank rows stay blank for header detection.
func readLegacyWorkbook(data []byte) (sheets []rawSheet, err error) {
	// the BIFF parser panics on some truncated streams
	defer func() {
		if r := recover(); r != nil {
			sheets, err = nil, fmt.Errorf("failed to read legacy workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), legacyCharset)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy workbook: %w", err)
	}
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol()+1)
			for c := 0; c <= row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		sheets = append(sheets, rawSheet{name: sheet.Name, rows: rows})
	}
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	return sheets, nil
}
