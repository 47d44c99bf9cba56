package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readDelimited reads comma, semicolon, tab or pipe separated text.
func readDelimited(data []byte) (rawSheet, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := gocsv.LazyCSVReader(bytes.NewReader(data))
	if r, ok := reader.(*csv.Reader); ok {
		r.Comma = sniffDelimiter(data)
		r.FieldsPerRecord = -1
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return rawSheet{}, fmt.Errorf("failed to read delimited text: %w", err)
	}
	return rawSheet{rows: rows}, nil
}

// sniffDelimiter picks the separator that splits the first non-blank lines
// most consistently, preferring a comma on ties.
func sniffDelimiter(data []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() && len(lines) < 10 {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ','
	}

	best, bestScore := ',', 0
	for _, d := range candidates {
		first := strings.Count(lines[0], string(d))
		if first == 0 {
			continue
		}
		score := first
		for _, line := range lines[1:] {
			if strings.Count(line, string(d)) != first {
				score = first / 2
				break
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}
