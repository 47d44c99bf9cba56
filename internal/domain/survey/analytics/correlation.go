package analytics

import (
	"encoding/json"
	"math"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/keywords"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/normalizer"
)

var correlationKeywords = keywords.NewSet(
	"rating", "score", "satisfaction", "quality", "knowledge", "feedback",
	"guidance", "content", "pace", "accommodation", "training", "appropriate",
	"objectives", "structure", "responded", "climate", "constructive",
)

// Matrix is a square correlation matrix. Undefined cells hold NaN and encode
// as JSON null.
type Matrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Empty reports whether the matrix has fewer than two columns.
func (m Matrix) Empty() bool {
	return len(m.Columns) < 2
}

// At returns the coefficient for columns i and j and whether it is defined.
func (m Matrix) At(i, j int) (float64, bool) {
	if i < 0 || j < 0 || i >= len(m.Values) || j >= len(m.Values[i]) {
		return 0, false
	}
	v := m.Values[i][j]
	return v, !math.IsNaN(v)
}

func (m Matrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j := range row {
			if v, ok := m.At(i, j); ok {
				values[i][j] = &v
			}
		}
	}
	return json.Marshal(struct {
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{m.Columns, values})
}

// CorrelationMatrix computes pairwise Pearson correlation between the
// rating-like columns that hold at least one number. Pairs use only rows
// where both cells are numeric. The matrix is empty when fewer than two
// such columns exist.
func (e *Engine) CorrelationMatrix() Matrix {
	var (
		names  []string
		series [][]float64
		valid  [][]bool
	)
	for _, c := range e.table.Columns {
		if c == normalizer.ParsedDateColumn || c == normalizer.QuarterColumn || !correlationKeywords.Contains(c) {
			continue
		}
		cells := e.table.Column(c)
		xs := make([]float64, len(cells))
		ok := make([]bool, len(cells))
		numeric := false
		for i, v := range cells {
			xs[i], ok[i] = v.Float()
			numeric = numeric || ok[i]
		}
		if !numeric {
			continue
		}
		names = append(names, c)
		series = append(series, xs)
		valid = append(valid, ok)
	}
	if len(names) < 2 {
		return Matrix{}
	}

	values := make([][]float64, len(names))
	for i := range names {
		values[i] = make([]float64, len(names))
	}
	for i := range names {
		for j := i; j < len(names); j++ {
			r := Pearson(series[i], series[j], valid[i], valid[j])
			values[i][j], values[j][i] = r, r
		}
	}
	return Matrix{Columns: names, Values: values}
}

// Pearson returns the correlation of x and y over positions valid in both.
// It is NaN for fewer than two pairs or zero variance.
func Pearson(x, y []float64, okx, oky []bool) float64 {
	n := min(len(x), len(y), len(okx), len(oky))
	var sx, sy float64
	pairs := 0
	for i := range n {
		if okx[i] && oky[i] {
			sx += x[i]
			sy += y[i]
			pairs++
		}
	}
	if pairs < 2 {
		return math.NaN()
	}
	mx, my := sx/float64(pairs), sy/float64(pairs)

	var cov, vx, vy float64
	for i := range n {
		if okx[i] && oky[i] {
			dx, dy := x[i]-mx, y[i]-my
			cov += dx * dy
			vx += dx * dx
			vy += dy * dy
		}
	}
	if vx == 0 || vy == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(vx*vy)
}
