package analytics

import (
	"strings"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/keywords"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/normalizer"
)

// DefaultRatingColumn is the survey question holding the overall course rating.
const DefaultRatingColumn = "Please give the course a rating out of 5"

// Field is a logical column resolved from free-text headers.
type Field string

const (
	FieldRating   Field = "rating"
	FieldTrainer  Field = "trainer"
	FieldCourse   Field = "course"
	FieldComments Field = "comments"
	FieldDate     Field = "date"
)

// fieldRules is resolved in order; a column claimed by an earlier field is
// not considered for later ones. Within a rule the keyword sets are tried in
// preference order. Text-only fields never take a mostly numeric column.
var fieldRules = []struct {
	field    Field
	sets     []*keywords.Set
	textOnly bool
}{
	{FieldTrainer, []*keywords.Set{keywords.NewSet("tutor", "trainer", "presenter")}, false},
	{FieldCourse, []*keywords.Set{keywords.NewSet("course")}, false},
	{FieldComments, []*keywords.Set{keywords.NewSet("comment"), keywords.NewSet("feedback")}, true},
}

type metricRule struct {
	name string
	set  *keywords.Set
}

// subMetricRules feed trainer profiles.
var subMetricRules = []metricRule{
	{"knowledge", keywords.NewSet("knowledge")},
	{"adaptability", keywords.NewSet("adaptability")},
	{"feedback", keywords.NewSet("feedback")},
	{"guidance", keywords.NewSet("guidance")},
}

// radarRules feed the per-trainer metric radar.
var radarRules = []metricRule{
	{"Knowledge", keywords.NewSet("knowledge", "expertise")},
	{"Adaptability", keywords.NewSet("adaptability", "flexible")},
	{"Feedback", keywords.NewSet("feedback", "response")},
	{"Guidance", keywords.NewSet("guidance", "support")},
	{"Engagement", keywords.NewSet("engagement", "interactive")},
}

// Options tune schema resolution.
type Options struct {
	// RatingColumn overrides DefaultRatingColumn.
	RatingColumn string
}

// MetricColumn pairs a named metric with the column it was resolved to.
type MetricColumn struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

// Schema maps logical fields to concrete column names for one table.
// Absent fields map to "".
type Schema struct {
	Rating     string         `json:"rating,omitempty"`
	Trainer    string         `json:"trainer,omitempty"`
	Course     string         `json:"course,omitempty"`
	Comments   string         `json:"comments,omitempty"`
	Date       string         `json:"date,omitempty"`
	SubMetrics []MetricColumn `json:"sub_metrics,omitempty"`
	Radar      []MetricColumn `json:"radar,omitempty"`
}

// Column returns the column resolved for f, or "".
func (s Schema) Column(f Field) string {
	switch f {
	case FieldRating:
		return s.Rating
	case FieldTrainer:
		return s.Trainer
	case FieldCourse:
		return s.Course
	case FieldComments:
		return s.Comments
	case FieldDate:
		return s.Date
	}
	return ""
}

// Has reports whether f was resolved.
func (s Schema) Has(f Field) bool {
	return s.Column(f) != ""
}

// ResolveSchema scans the headers once. The rating column must equal the
// configured question text; the other fields take the first unclaimed column
// containing one of their keywords. Metrics are matched independently over
// every column except the rating and derived date columns.
func ResolveSchema(columns []string, opts Options) Schema {
	return resolveSchema(columns, opts, nil)
}

// ResolveTableSchema is ResolveSchema with column contents taken into
// account: comments skip mostly numeric columns and metrics skip text ones.
func ResolveTableSchema(t *dataset.Table, opts Options) Schema {
	if t == nil {
		return ResolveSchema(nil, opts)
	}
	return resolveSchema(t.Columns, opts, profileColumns(t))
}

func resolveSchema(columns []string, opts Options, kinds map[string]columnKind) Schema {
	ratingName := opts.RatingColumn
	if ratingName == "" {
		ratingName = DefaultRatingColumn
	}

	var s Schema
	claimed := map[string]bool{
		normalizer.ParsedDateColumn: true,
		normalizer.QuarterColumn:    true,
	}

	for _, c := range columns {
		if c == ratingName {
			s.Rating = c
			claimed[c] = true
			break
		}
	}

	for _, rule := range fieldRules {
		skip := func(c string) bool {
			return claimed[c] || (rule.textOnly && kinds[c] == kindNumeric)
		}
		for _, set := range rule.sets {
			col, ok := set.FirstColumn(columns, skip)
			if !ok {
				continue
			}
			claimed[col] = true
			switch rule.field {
			case FieldTrainer:
				s.Trainer = col
			case FieldCourse:
				s.Course = col
			case FieldComments:
				s.Comments = col
			}
			break
		}
	}

	if col, ok := normalizer.DateKeywords.FirstColumn(columns, derived); ok {
		s.Date = col
	}

	notMetric := func(c string) bool {
		return c == s.Rating || derived(c) || kinds[c] == kindText
	}
	s.SubMetrics = resolveMetrics(columns, subMetricRules, notMetric)
	s.Radar = resolveMetrics(columns, radarRules, notMetric)
	return s
}

func derived(c string) bool {
	return c == normalizer.ParsedDateColumn || c == normalizer.QuarterColumn
}

type columnKind int

const (
	kindEmpty columnKind = iota
	kindNumeric
	kindText
)

// profileColumns marks a column numeric when more than half of its present
// values parse as numbers, text otherwise. All-missing columns stay empty.
func profileColumns(t *dataset.Table) map[string]columnKind {
	kinds := make(map[string]columnKind, len(t.Columns))
	for _, c := range t.Columns {
		present, numeric := 0, 0
		for _, v := range t.Column(c) {
			if v.IsMissing() || strings.TrimSpace(v.String()) == "" {
				continue
			}
			present++
			if _, ok := v.Float(); ok {
				numeric++
			}
		}
		switch {
		case present == 0:
			kinds[c] = kindEmpty
		case numeric*2 > present:
			kinds[c] = kindNumeric
		default:
			kinds[c] = kindText
		}
	}
	return kinds
}

func resolveMetrics(columns []string, rules []metricRule, skip func(string) bool) []MetricColumn {
	var out []MetricColumn
	for _, rule := range rules {
		if col, ok := rule.set.FirstColumn(columns, skip); ok {
			out = append(out, MetricColumn{Name: rule.name, Column: col})
		}
	}
	return out
}
