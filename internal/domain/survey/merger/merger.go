// Package merger combines same-category tables into one table per category.
package merger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
)

var (
	ErrNoColumns        = errors.New("table has no columns")
	ErrDuplicateColumns = errors.New("table has duplicate column names")
)

// Merge combines the tables of each category. Categories with no tables are
// omitted. A single table passes through untouched. Two or more tables are
// concatenated in order, aligned by column name, and exact duplicate rows
// are removed keeping the first. When concatenation is impossible the first
// table is used and a warning is returned.
func Merge(groups map[dataset.Category][]*dataset.Table) (map[dataset.Category]*dataset.Table, []dataset.Warning) {
	merged := make(map[dataset.Category]*dataset.Table, len(groups))
	var warnings []dataset.Warning

	for _, category := range dataset.Categories() {
		tables := groups[category]
		switch len(tables) {
		case 0:
			continue
		case 1:
			merged[category] = tables[0]
			continue
		}

		table, err := Concat(tables)
		if err != nil {
			warnings = append(warnings, dataset.Warnf(dataset.StageMerge, string(category),
				"could not merge %d tables, using %s only: %v", len(tables), tables[0].Name, err))
			merged[category] = tables[0]
			continue
		}
		table.Name = string(category)
		merged[category] = Dedupe(table)
	}
	return merged, warnings
}

// Concat stacks tables in order. The result's columns are the union of the
// inputs' columns in first-seen order; cells for absent columns are missing.
func Concat(tables []*dataset.Table) (*dataset.Table, error) {
	var (
		columns []string
		index   = make(map[string]int)
		sources []string
		rows    int
	)
	for _, t := range tables {
		if t == nil || t.Width() == 0 {
			return nil, ErrNoColumns
		}
		seen := make(map[string]bool, t.Width())
		for _, c := range t.Columns {
			if seen[c] {
				return nil, fmt.Errorf("%w: %s in %s", ErrDuplicateColumns, c, t.Name)
			}
			seen[c] = true
			if _, ok := index[c]; !ok {
				index[c] = len(columns)
				columns = append(columns, c)
			}
		}
		sources = append(sources, t.Source)
		rows += t.Len()
	}

	out := dataset.New(columns...)
	out.Source = strings.Join(uniq(sources), ", ")
	out.Rows = make([][]dataset.Value, 0, rows)
	for _, t := range tables {
		positions := make([]int, t.Width())
		for j, c := range t.Columns {
			positions[j] = index[c]
		}
		for _, src := range t.Rows {
			row := make([]dataset.Value, len(columns))
			for j, pos := range positions {
				if j < len(src) {
					row[pos] = src[j]
				}
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// Dedupe removes rows equal in every column to an earlier row. Numeric text
// is compared by value, so "5" and "5.0" are the same cell.
func Dedupe(t *dataset.Table) *dataset.Table {
	seen := make(map[string]bool, t.Len())
	kept := t.Rows[:0:0]
	var key strings.Builder
	for _, row := range t.Rows {
		key.Reset()
		for j := range t.Columns {
			v := dataset.Missing()
			if j < len(row) {
				v = row[j]
			}
			key.WriteString(v.Key())
			key.WriteByte(0x1f)
		}
		k := key.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, row)
	}
	t.Rows = kept
	return t
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
