package analytics

import (
	"sort"
	"time"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/normalizer"
)

// Period is the bucket size of a trend series.
type Period string

const (
	PeriodQuarter Period = "quarter"
	PeriodMonth   Period = "month"
)

// DefaultTrendWindow is the trailing moving-average window, in periods.
const DefaultTrendWindow = 3

// TrendPoint is one period of a trend series. Count series, built for
// tables without a rating column, leave Mean at zero.
type TrendPoint struct {
	Label         string    `json:"label"`
	Start         time.Time `json:"start"`
	Mean          float64   `json:"mean,omitempty"`
	Responses     int       `json:"responses"`
	MovingAverage float64   `json:"moving_average"`
}

// Trend groups rated rows by period of their parsed date, in chronological
// order. Periods with no numeric rating are skipped. The moving average
// trails over window periods, using fewer at the start of the series; a
// window below 2 copies the mean. It is empty without a date or rating column.
func (e *Engine) Trend(period Period, window int) []TrendPoint {
	points := e.buckets(period, true)
	means := make([]float64, len(points))
	for i, p := range points {
		means[i] = p.Mean
	}
	for i, ma := range MovingAverage(means, window) {
		points[i].MovingAverage = ma
	}
	return points
}

// CountTrend counts dated rows per period, ignoring ratings. The moving
// average trails over the counts. It is empty without a date column.
func (e *Engine) CountTrend(period Period, window int) []TrendPoint {
	points := e.buckets(period, false)
	counts := make([]float64, len(points))
	for i, p := range points {
		counts[i] = float64(p.Responses)
	}
	for i, ma := range MovingAverage(counts, window) {
		points[i].MovingAverage = ma
	}
	return points
}

func (e *Engine) buckets(period Period, rated bool) []TrendPoint {
	type bucket struct {
		start time.Time
		sum   float64
		n     int
	}
	buckets := make(map[time.Time]*bucket)
	for i, d := range e.dates {
		if d == nil || (rated && !e.rated[i]) {
			continue
		}
		start := periodStart(*d, period)
		b, ok := buckets[start]
		if !ok {
			b = &bucket{start: start}
			buckets[start] = b
		}
		if rated {
			b.sum += e.ratings[i]
		}
		b.n++
	}
	if len(buckets) == 0 {
		return nil
	}

	points := make([]TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		p := TrendPoint{
			Label:     periodLabel(b.start, period),
			Start:     b.start,
			Responses: b.n,
		}
		if rated {
			p.Mean = b.sum / float64(b.n)
		}
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Start.Before(points[j].Start)
	})
	return points
}

// MovingAverage returns the trailing mean over window values, averaging over
// whatever is available when fewer than window values precede a position.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

// SourceTrend builds a quarterly or monthly series for any table, such as
// master or partner exports, by normalizing it first. Tables carrying the
// rating question get a rating trend; others get a row count per period.
func SourceTrend(table *dataset.Table, period Period, window int, opts Options) []TrendPoint {
	if table == nil {
		return nil
	}
	e := NewEngine(normalizer.Normalize(table), opts)
	if e.schema.Rating == "" {
		return e.CountTrend(period, window)
	}
	return e.Trend(period, window)
}

func periodStart(t time.Time, p Period) time.Time {
	if p == PeriodMonth {
		return normalizer.MonthStart(t)
	}
	return normalizer.QuarterStart(t)
}

func periodLabel(start time.Time, p Period) string {
	if p == PeriodMonth {
		return start.Format("2006-01")
	}
	return normalizer.QuarterLabel(start)
}
