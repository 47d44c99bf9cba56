package loader

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
)

// buildTable turns raw sheet rows into a table. The first non-blank row is
// the header; fully blank data rows are dropped. It reports false when the
// sheet has no header or no data rows.
func buildTable(rows [][]string, maxRows int) (*dataset.Table, bool) {
	headerIdx := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, false
	}

	width := 0
	for _, row := range rows[headerIdx:] {
		width = max(width, trimmedLen(row))
	}

	table := dataset.New(headerNames(rows[headerIdx], width)...)
	for _, row := range rows[headerIdx+1:] {
		if blankRow(row) {
			continue
		}
		if maxRows > 0 && table.Len() >= maxRows {
			break
		}
		values := make([]dataset.Value, width)
		for j := range width {
			if j < len(row) {
				values[j] = dataset.Text(row[j])
			}
		}
		table.AppendRow(values)
	}
	if table.Len() == 0 {
		return nil, false
	}
	return table, true
}

// headerNames trims header cells, names blank ones "Unnamed: N" and suffixes
// repeats with ".1", ".2" so every column name is unique.
func headerNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := range width {
		name := ""
		if i < len(header) {
			name = strings.Join(strings.Fields(header[i]), " ")
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimmedLen(row []string) int {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return n
}
