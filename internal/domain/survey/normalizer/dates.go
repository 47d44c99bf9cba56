package normalizer

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// explicitLayouts is the contractual parse order: day-first UK formats are
// tried before month-first US formats, so "03/04/2024" is 3 April.
// Single-digit layout fields also accept zero-padded input.
var explicitLayouts = []string{
	"2/1/2006", // DD/MM/YYYY
	"2006-1-2", // YYYY-MM-DD
	"1/2/2006", // MM/DD/YYYY
	"2-1-2006", // DD-MM-YYYY
	"2006/1/2", // YYYY/MM/DD
	"2/1/06",   // DD/MM/YY
	"06-1-2",   // YY-MM-DD
	"1/2/06",   // MM/DD/YY
}

// fallbackLayouts cover timestamps and long-form dates after every explicit
// layout has failed.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"1-2-06",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"Monday, January 2, 2006",
	"Mon, 2 Jan 2006",
}

// Excel serial day numbers accepted by the fallback: 1950-01-01 to 2099-12-31.
const (
	minExcelSerial = 18264
	maxExcelSerial = 73050
)

// ParseDate parses s with the explicit layouts in order, then the fallback
// layouts, then as an Excel serial day number. It reports false when nothing
// matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range explicitLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return parseExcelSerial(s)
}

func parseExcelSerial(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < minExcelSerial || f >= maxExcelSerial+1 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
