// Package analytics computes KPIs, trends and per-trainer rollups over a
// normalized delegate feedback table. Every query is read-only and degrades
// to a zero or empty result when the columns it needs are absent.
package analytics

import (
	"time"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/normalizer"
)

const (
	// PromoterThreshold is the minimum rating counted as a promoter.
	PromoterThreshold = 4.5
	// DetractorThreshold is the maximum rating counted as a detractor.
	DetractorThreshold = 3.5
)

// KPIs is the scalar summary of a feedback table.
type KPIs struct {
	OverallRating  float64 `json:"overall_rating"`
	TotalResponses int     `json:"total_responses"`
	RatedResponses int     `json:"rated_responses"`
	NPS            float64 `json:"nps"`
	Promoters      int     `json:"promoters"`
	Detractors     int     `json:"detractors"`
	TrainerCount   int     `json:"trainer_count"`
	CourseCount    int     `json:"course_count"`
	ResponseRate   float64 `json:"response_rate"`
	MissingValues  int     `json:"missing_values"`
}

// KPINames lists the KPI set keys in presentation order.
var KPINames = []string{
	"overall_rating",
	"total_responses",
	"nps",
	"trainer_count",
	"course_count",
	"response_rate",
	"missing_values",
}

// Map returns the KPI set keyed by KPINames.
func (k KPIs) Map() map[string]float64 {
	return map[string]float64{
		"overall_rating":  k.OverallRating,
		"total_responses": float64(k.TotalResponses),
		"nps":             k.NPS,
		"trainer_count":   float64(k.TrainerCount),
		"course_count":    float64(k.CourseCount),
		"response_rate":   k.ResponseRate,
		"missing_values":  float64(k.MissingValues),
	}
}

// Engine answers aggregation queries for one normalized table. It is
// immutable once built and safe for concurrent use.
type Engine struct {
	table   *dataset.Table
	schema  Schema
	dates   []*time.Time
	ratings []float64
	rated   []bool
}

// NewEngine resolves the schema once and pre-computes numeric ratings.
func NewEngine(n *normalizer.Result, opts Options) *Engine {
	if n == nil {
		n = normalizer.Normalize(nil)
	}
	e := &Engine{
		table:  n.Table,
		schema: ResolveTableSchema(n.Table, opts),
		dates:  n.Dates,
	}
	if n.DateColumn != "" {
		e.schema.Date = n.DateColumn
	}

	e.ratings = make([]float64, n.Table.Len())
	e.rated = make([]bool, n.Table.Len())
	if e.schema.Rating != "" {
		for i, v := range n.Table.Column(e.schema.Rating) {
			e.ratings[i], e.rated[i] = v.Float()
		}
	}
	return e
}

// Schema returns the resolved column mapping.
func (e *Engine) Schema() Schema {
	return e.schema
}

// Table returns the underlying normalized table. Callers must not modify it.
func (e *Engine) Table() *dataset.Table {
	return e.table
}

// Ratings returns the numeric ratings, skipping rows without one.
func (e *Engine) Ratings() []float64 {
	return e.ratingsFor(nil)
}

func (e *Engine) ratingsFor(rows []int) []float64 {
	var out []float64
	if rows == nil {
		for i, ok := range e.rated {
			if ok {
				out = append(out, e.ratings[i])
			}
		}
		return out
	}
	for _, i := range rows {
		if e.rated[i] {
			out = append(out, e.ratings[i])
		}
	}
	return out
}

// OverallRating is the mean numeric rating, 0 when there is none.
func (e *Engine) OverallRating() float64 {
	return Mean(e.Ratings())
}

// TotalResponses is the row count, regardless of rating presence.
func (e *Engine) TotalResponses() int {
	return e.table.Len()
}

// TrainerCount is the number of distinct trainers.
func (e *Engine) TrainerCount() int {
	return e.distinct(e.schema.Trainer)
}

// CourseCount is the number of distinct courses.
func (e *Engine) CourseCount() int {
	return e.distinct(e.schema.Course)
}

// KPIs computes the full scalar summary.
func (e *Engine) KPIs() KPIs {
	ratings := e.Ratings()
	nps, promoters, detractors := NPS(ratings)
	k := KPIs{
		OverallRating:  Mean(ratings),
		TotalResponses: e.TotalResponses(),
		RatedResponses: len(ratings),
		NPS:            nps,
		Promoters:      promoters,
		Detractors:     detractors,
		TrainerCount:   e.TrainerCount(),
		CourseCount:    e.CourseCount(),
		MissingValues:  e.table.MissingCount(normalizer.ParsedDateColumn, normalizer.QuarterColumn),
	}
	if k.TotalResponses > 0 {
		k.ResponseRate = float64(k.RatedResponses) / float64(k.TotalResponses) * 100
	}
	return k
}

// NPS returns (promoters - detractors) / len(ratings) * 100 together with the
// two counts. Ratings strictly between the thresholds count only toward the
// denominator. It is 0 for no ratings.
func NPS(ratings []float64) (score float64, promoters, detractors int) {
	if len(ratings) == 0 {
		return 0, 0, 0
	}
	for _, r := range ratings {
		switch {
		case r >= PromoterThreshold:
			promoters++
		case r <= DetractorThreshold:
			detractors++
		}
	}
	return float64(promoters-detractors) / float64(len(ratings)) * 100, promoters, detractors
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func (e *Engine) distinct(column string) int {
	if column == "" {
		return 0
	}
	seen := make(map[string]bool)
	for _, v := range e.table.Column(column) {
		if !v.IsMissing() {
			seen[v.String()] = true
		}
	}
	return len(seen)
}

func (e *Engine) columnMean(column string, rows []int) (float64, bool) {
	values := e.table.Column(column)
	if values == nil {
		return 0, false
	}
	var nums []float64
	if rows == nil {
		for _, v := range values {
			if f, ok := v.Float(); ok {
				nums = append(nums, f)
			}
		}
	} else {
		for _, i := range rows {
			if f, ok := values[i].Float(); ok {
				nums = append(nums, f)
			}
		}
	}
	if len(nums) == 0 {
		return 0, false
	}
	return Mean(nums), true
}
