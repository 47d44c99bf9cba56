// Package normalizer derives a parsed session date and a quarter label for
// every delegate feedback row.
package normalizer

import (
	"fmt"
	"time"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/keywords"
)

const (
	ParsedDateColumn = "parsed_date"
	QuarterColumn    = "quarter"

	// isoDate is the layout of the parsed_date column.
	isoDate = "2006-01-02"
)

// DateKeywords select the date column: the first column whose name contains one.
var DateKeywords = keywords.NewSet("date", "completion", "submitted", "time")

// Result is a normalized delegate table plus typed views of the derived columns.
type Result struct {
	// Table is a copy of the input with parsed_date and quarter appended.
	Table *dataset.Table
	// DateColumn is the source column, or "" when none was found.
	DateColumn string
	// Dates holds the parsed date per row, nil where parsing failed.
	Dates []*time.Time
	// Quarters holds the quarter label per row, "" exactly where Dates is nil.
	Quarters []string
	// Parsed counts rows with a parsed date.
	Parsed int
}

// Normalize locates the date column, parses each cell and derives quarter
// labels. Unparseable or absent dates leave both derived cells missing; it
// never fails.
func Normalize(table *dataset.Table) *Result {
	if table == nil {
		table = dataset.New()
	}
	out := table.Clone()
	n := out.Len()

	res := &Result{
		Table:    out,
		Dates:    make([]*time.Time, n),
		Quarters: make([]string, n),
	}

	col, ok := DateKeywords.FirstColumn(table.Columns, isDerived)
	if ok {
		res.DateColumn = col
		for i, v := range table.Column(col) {
			if v.IsMissing() {
				continue
			}
			if ts, ok := ParseDate(v.String()); ok {
				res.Dates[i] = &ts
				res.Quarters[i] = QuarterLabel(ts)
				res.Parsed++
			}
		}
	}

	dates := make([]dataset.Value, n)
	quarters := make([]dataset.Value, n)
	for i := range n {
		if res.Dates[i] != nil {
			dates[i] = dataset.String(res.Dates[i].Format(isoDate))
			quarters[i] = dataset.String(res.Quarters[i])
		}
	}
	// both slices have one entry per row
	_ = out.AddColumn(ParsedDateColumn, dates)
	_ = out.AddColumn(QuarterColumn, quarters)

	return res
}

// QuarterLabel returns "Q{1-4} {year}" for t.
func QuarterLabel(t time.Time) string {
	return fmt.Sprintf("Q%d %d", Quarter(t), t.Year())
}

// Quarter returns the calendar quarter, 1 to 4.
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// QuarterStart returns midnight on the first day of t's quarter.
func QuarterStart(t time.Time) time.Time {
	month := time.Month((Quarter(t)-1)*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns midnight on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func isDerived(column string) bool {
	return column == ParsedDateColumn || column == QuarterColumn
}
