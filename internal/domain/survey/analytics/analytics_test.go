package analytics

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/normalizer"
	"github.com/FACorreiaa/feedback-insights/pkg/surveyfake"
)

func buildTable(columns []string, rows ...[]string) *dataset.Table {
	t := dataset.New(columns...)
	for _, r := range rows {
		values := make([]dataset.Value, len(r))
		for i, c := range r {
			values[i] = dataset.Text(c)
		}
		t.AppendRow(values)
	}
	return t
}

func engineFor(t *dataset.Table) *Engine {
	return NewEngine(normalizer.Normalize(t), Options{})
}

func ratingsTable(ratings ...string) *dataset.Table {
	rows := make([][]string, len(ratings))
	for i, r := range ratings {
		rows[i] = []string{r}
	}
	return buildTable([]string{DefaultRatingColumn}, rows...)
}

func TestResolveSchema(t *testing.T) {
	t.Run("fields resolved once in order", func(t *testing.T) {
		s := ResolveSchema([]string{
			"Timestamp",
			"Tutor Name",
			DefaultRatingColumn,
			"Course Title",
			"Trainer Email",
			"Any other comments?",
			"Tutor knowledge of subject",
			"Feedback quality",
		}, Options{})

		assert.Equal(t, DefaultRatingColumn, s.Rating)
		assert.Equal(t, "Tutor Name", s.Trainer)
		assert.Equal(t, "Course Title", s.Course, "rating question is claimed before course")
		assert.Equal(t, "Any other comments?", s.Comments)
		assert.Equal(t, "Timestamp", s.Date)
		assert.Equal(t, []MetricColumn{
			{Name: "knowledge", Column: "Tutor knowledge of subject"},
			{Name: "feedback", Column: "Feedback quality"},
		}, s.SubMetrics)
	})

	t.Run("rating requires the question text", func(t *testing.T) {
		s := ResolveSchema([]string{"Rating", "Overall score"}, Options{})
		assert.False(t, s.Has(FieldRating))

		s = ResolveSchema([]string{"please give the course a rating out of 5 "}, Options{})
		assert.False(t, s.Has(FieldRating), "match is literal")

		s = ResolveSchema([]string{"Rating"}, Options{RatingColumn: "Rating"})
		assert.Equal(t, "Rating", s.Column(FieldRating))
	})

	t.Run("generated delegate export", func(t *testing.T) {
		s := ResolveSchema(surveyfake.DelegateColumns, Options{})
		assert.Equal(t, "Tutor Name", s.Trainer)
		assert.Equal(t, "Course Title", s.Course)
		assert.Equal(t, "Any other comments?", s.Comments)
		assert.Equal(t, []MetricColumn{
			{Name: "knowledge", Column: "Tutor knowledge of subject"},
			{Name: "adaptability", Column: "Tutor adaptability"},
			{Name: "feedback", Column: "Quality of tutor feedback"},
			{Name: "guidance", Column: "Tutor guidance"},
		}, s.SubMetrics)
	})

	t.Run("comments skip numeric columns", func(t *testing.T) {
		table := buildTable([]string{"Trainer", "Feedback score", "Feedback notes"},
			[]string{"Ann", "5", "Great day"},
			[]string{"Ben", "4", ""},
			[]string{"Cy", "n/a", "Too long"},
		)
		s := ResolveTableSchema(table, Options{})
		assert.Equal(t, "Feedback notes", s.Comments)
		assert.Equal(t, []MetricColumn{{Name: "feedback", Column: "Feedback score"}}, s.SubMetrics)
	})

	t.Run("no columns", func(t *testing.T) {
		s := ResolveSchema(nil, Options{})
		for _, f := range []Field{FieldRating, FieldTrainer, FieldCourse, FieldComments, FieldDate} {
			assert.False(t, s.Has(f), f)
		}
	})
}

func TestKPIs(t *testing.T) {
	t.Run("mean and NPS", func(t *testing.T) {
		e := engineFor(ratingsTable("5", "5", "4", "3", "2"))
		k := e.KPIs()

		assert.InDelta(t, 3.8, k.OverallRating, 1e-9)
		assert.Equal(t, 5, k.TotalResponses)
		assert.Equal(t, 2, k.Promoters)
		assert.Equal(t, 2, k.Detractors)
		assert.InDelta(t, 0.0, k.NPS, 1e-9)
		assert.InDelta(t, 100.0, k.ResponseRate, 1e-9)
	})

	t.Run("non-numeric ratings excluded from mean but counted as responses", func(t *testing.T) {
		e := engineFor(ratingsTable("5", "n/a", "", "4"))
		k := e.KPIs()
		assert.InDelta(t, 4.5, k.OverallRating, 1e-9)
		assert.Equal(t, 4, k.TotalResponses)
		assert.Equal(t, 2, k.RatedResponses)
		assert.InDelta(t, 50.0, k.ResponseRate, 1e-9)
		assert.Equal(t, 1, k.MissingValues, "derived columns are not counted")
	})

	t.Run("neutral ratings only in denominator", func(t *testing.T) {
		score, promoters, detractors := NPS([]float64{4.0, 4.49, 3.51, 4.5})
		assert.Equal(t, 1, promoters)
		assert.Equal(t, 0, detractors)
		assert.InDelta(t, 25.0, score, 1e-9)
	})

	t.Run("threshold boundaries", func(t *testing.T) {
		_, p, d := NPS([]float64{4.5, 3.5})
		assert.Equal(t, 1, p)
		assert.Equal(t, 1, d)
	})

	t.Run("missing rating column degrades to zero", func(t *testing.T) {
		e := engineFor(buildTable([]string{"Trainer", "Course"}, []string{"Alice", "Excel"}))
		k := e.KPIs()
		assert.Zero(t, k.OverallRating)
		assert.Zero(t, k.NPS)
		assert.Equal(t, 1, k.TotalResponses)
		assert.Equal(t, 1, k.TrainerCount)
		assert.Equal(t, 1, k.CourseCount)
	})

	t.Run("distinct trainers and courses", func(t *testing.T) {
		e := engineFor(buildTable([]string{"Presenter", "Course"},
			[]string{"Alice", "Excel"},
			[]string{"Alice", "Word"},
			[]string{"Bob", "Excel"},
			[]string{"", ""},
		))
		assert.Equal(t, 2, e.TrainerCount())
		assert.Equal(t, 2, e.CourseCount())
	})

	t.Run("map keys", func(t *testing.T) {
		m := engineFor(ratingsTable("5")).KPIs().Map()
		for _, name := range KPINames {
			assert.Contains(t, m, name)
		}
	})

	t.Run("nil result", func(t *testing.T) {
		e := NewEngine(nil, Options{})
		assert.Zero(t, e.KPIs().TotalResponses)
		assert.Empty(t, e.Trend(PeriodQuarter, DefaultTrendWindow))
	})
}

func TestRatingDistribution(t *testing.T) {
	t.Run("all outstanding", func(t *testing.T) {
		dist := engineFor(ratingsTable("5", "5", "5", "5", "5")).RatingDistribution()
		assert.Equal(t, map[Band]int{
			BandOutstanding:      5,
			BandExcellent:        0,
			BandGood:             0,
			BandNeedsImprovement: 0,
		}, dist)
	})

	t.Run("band edges", func(t *testing.T) {
		assert.Equal(t, BandOutstanding, BandFor(4.5))
		assert.Equal(t, BandExcellent, BandFor(4.49))
		assert.Equal(t, BandExcellent, BandFor(4.0))
		assert.Equal(t, BandGood, BandFor(3.5))
		assert.Equal(t, BandNeedsImprovement, BandFor(3.49))
	})

	t.Run("list keeps band order", func(t *testing.T) {
		list := engineFor(ratingsTable("4.2", "1")).RatingDistributionList()
		require.Len(t, list, 4)
		assert.Equal(t, BandCount{Band: BandExcellent, Count: 1}, list[1])
		assert.Equal(t, BandCount{Band: BandNeedsImprovement, Count: 1}, list[3])
	})
}

func TestPerformanceLevel(t *testing.T) {
	assert.Equal(t, "Outstanding", PerformanceLevel(4.7))
	assert.Equal(t, "Excellent", PerformanceLevel(4.5))
	assert.Equal(t, "Very Good", PerformanceLevel(4.0))
	assert.Equal(t, "Good", PerformanceLevel(3.6))
	assert.Equal(t, "Needs Improvement", PerformanceLevel(2))
}

func TestTrend(t *testing.T) {
	table := buildTable([]string{"Completion Date", DefaultRatingColumn},
		[]string{"15/01/2024", "4"},
		[]string{"20/11/2023", "3"},
		[]string{"02/02/2024", "5"},
		[]string{"10/04/2024", "5"},
		[]string{"bad date", "1"},
		[]string{"11/04/2024", ""},
		[]string{"01/10/2023", "4"},
	)
	e := engineFor(table)

	t.Run("quarterly in chronological order", func(t *testing.T) {
		points := e.Trend(PeriodQuarter, DefaultTrendWindow)
		require.Len(t, points, 3)
		assert.Equal(t, "Q4 2023", points[0].Label)
		assert.Equal(t, "Q1 2024", points[1].Label)
		assert.Equal(t, "Q2 2024", points[2].Label)

		assert.InDelta(t, 3.5, points[0].Mean, 1e-9)
		assert.InDelta(t, 4.5, points[1].Mean, 1e-9)
		assert.InDelta(t, 5.0, points[2].Mean, 1e-9)
		assert.Equal(t, 2, points[1].Responses)

		assert.InDelta(t, 3.5, points[0].MovingAverage, 1e-9)
		assert.InDelta(t, 4.0, points[1].MovingAverage, 1e-9)
		assert.InDelta(t, 13.0/3, points[2].MovingAverage, 1e-9)
	})

	t.Run("monthly", func(t *testing.T) {
		points := e.Trend(PeriodMonth, 1)
		labels := make([]string, len(points))
		for i, p := range points {
			labels[i] = p.Label
			assert.Equal(t, p.Mean, p.MovingAverage)
		}
		assert.Equal(t, []string{"2023-10", "2023-11", "2024-01", "2024-02", "2024-04"}, labels)
	})

	t.Run("unavailable without dates", func(t *testing.T) {
		assert.Empty(t, engineFor(ratingsTable("5", "4")).Trend(PeriodQuarter, 3))
	})

	t.Run("source trend", func(t *testing.T) {
		points := SourceTrend(table, PeriodQuarter, 3, Options{})
		assert.Len(t, points, 3)
		assert.Nil(t, SourceTrend(nil, PeriodQuarter, 3, Options{}))
	})

	t.Run("source trend without ratings counts rows", func(t *testing.T) {
		schedule := buildTable([]string{"Session Date", "Venue"},
			[]string{"03/01/2024", "Leeds"},
			[]string{"20/02/2024", "York"},
			[]string{"05/05/2024", "Leeds"},
			[]string{"someday", "Hull"},
		)
		points := SourceTrend(schedule, PeriodQuarter, 2, Options{})
		require.Len(t, points, 2)
		assert.Equal(t, "Q1 2024", points[0].Label)
		assert.Equal(t, 2, points[0].Responses)
		assert.Zero(t, points[0].Mean)
		assert.Equal(t, 1, points[1].Responses)
		assert.InDelta(t, 1.5, points[1].MovingAverage, 1e-9)
	})
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{1, 2, 3, 4, 5}, 3)
	assert.InDeltaSlice(t, []float64{1, 1.5, 2, 3, 4}, got, 1e-9)
	assert.Equal(t, []float64{1, 2}, MovingAverage([]float64{1, 2}, 0))
	assert.Empty(t, MovingAverage(nil, 3))
}

func trainerTable() *dataset.Table {
	cols := []string{"Tutor Name", DefaultRatingColumn, "Knowledge of subject", "Adaptability", "Comments"}
	return buildTable(cols,
		[]string{"Ann", "5", "5", "4", "Brilliant session overall"},
		[]string{"Ann", "5", "4", "", "ok"},
		[]string{"Ben", "4", "4", "4", "Clear and well paced"},
		[]string{"Ben", "4", "3", "5", ""},
		[]string{"Ben", "4", "5", "3", "Loved the examples given"},
		[]string{"", "1", "1", "1", "No trainer recorded here"},
	)
}

func TestTrainers(t *testing.T) {
	e := engineFor(trainerTable())

	t.Run("comparison has no minimum", func(t *testing.T) {
		desc := e.TrainerComparison(OrderDescending)
		require.Len(t, desc, 2)
		assert.Equal(t, TrainerRating{Trainer: "Ann", Mean: 5, Responses: 2}, desc[0])
		assert.Equal(t, TrainerRating{Trainer: "Ben", Mean: 4, Responses: 3}, desc[1])

		asc := e.TrainerComparison(OrderAscending)
		assert.Equal(t, "Ben", asc[0].Trainer)
	})

	t.Run("profiles need three sessions", func(t *testing.T) {
		profiles := e.TrainerProfiles()
		require.Len(t, profiles, 1)
		p := profiles[0]
		assert.Equal(t, "Ben", p.Trainer)
		assert.Equal(t, 3, p.Sessions)
		assert.InDelta(t, 4.0, p.Overall, 1e-9)
		assert.Equal(t, "Very Good", p.Level)
		assert.InDelta(t, 4.0, p.Metrics["knowledge"], 1e-9)
		assert.InDelta(t, 4.0, p.Metrics["adaptability"], 1e-9)
		assert.NotContains(t, p.Metrics, "guidance")
		assert.Equal(t, []string{"Clear and well paced", "Loved the examples given"}, p.Comments)

		_, ok := e.TrainerProfile("Ann")
		assert.False(t, ok)
		_, ok = e.TrainerProfile("Nobody")
		assert.False(t, ok)
		got, ok := e.TrainerProfile("Ben")
		require.True(t, ok)
		assert.Equal(t, p, got)
	})

	t.Run("find trainer", func(t *testing.T) {
		name, ok := e.FindTrainer("ann")
		assert.True(t, ok)
		assert.Equal(t, "Ann", name)

		name, ok = e.FindTrainer("Bn")
		assert.True(t, ok)
		assert.Equal(t, "Ben", name)

		_, ok = e.FindTrainer("zzz")
		assert.False(t, ok)
		_, ok = e.FindTrainer("  ")
		assert.False(t, ok)
	})

	t.Run("comments and quotes", func(t *testing.T) {
		assert.Equal(t, []string{"Brilliant session overall", "ok"}, e.TrainerComments("Ann", 0))
		assert.Len(t, e.TrainerComments("", 2), 2)
		assert.Nil(t, e.TrainerComments("Nobody", 5))
		assert.Equal(t, []string{"Brilliant session overall"}, e.HighlightQuotes("Ann"))
		assert.Len(t, e.HighlightQuotes(""), MaxHighlightQuotes)
	})

	t.Run("missing trainer column", func(t *testing.T) {
		bare := engineFor(ratingsTable("5"))
		assert.Empty(t, bare.TrainerComparison(OrderDescending))
		assert.Empty(t, bare.TrainerProfiles())
		assert.Empty(t, bare.Trainers())
	})
}

func TestGeneratedDelegateProfiles(t *testing.T) {
	g := surveyfake.New(3, 2)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	responses := g.Responses(40, from, from.AddDate(0, 6, 0))
	e := engineFor(buildTable(surveyfake.DelegateColumns, surveyfake.Records(responses)...))

	assert.Equal(t, "Any other comments?", e.Schema().Comments)
	profiles := e.TrainerProfiles()
	require.NotEmpty(t, profiles)
	for _, p := range profiles {
		assert.Contains(t, p.Metrics, "feedback")
		for _, c := range p.Comments {
			_, err := strconv.ParseFloat(c, 64)
			assert.Error(t, err, "comment %q is a rating", c)
		}
	}
	assert.NotEmpty(t, e.HighlightQuotes(""))
}

func TestTrainerEndToEnd(t *testing.T) {
	table := buildTable([]string{"Trainer", DefaultRatingColumn},
		[]string{"Two", "5"},
		[]string{"Two", "5"},
		[]string{"Three", "4"},
		[]string{"Three", "4"},
		[]string{"Three", "4"},
	)
	e := engineFor(table)

	comparison := e.TrainerComparison(OrderDescending)
	require.Len(t, comparison, 2)
	assert.Equal(t, "Two", comparison[0].Trainer)
	assert.InDelta(t, 5.0, comparison[0].Mean, 1e-9)
	assert.Equal(t, "Three", comparison[1].Trainer)

	profiles := e.TrainerProfiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, "Three", profiles[0].Trainer)
	assert.InDelta(t, 4.0, profiles[0].Overall, 1e-9)
}

func TestMetricRadar(t *testing.T) {
	cols := []string{"Trainer", "Subject expertise", "Flexible approach", "Support given", "Comments"}
	table := buildTable(cols,
		[]string{"Ann", "5", "4", "3", "nice"},
		[]string{"Ann", "3", "4", "5", "good"},
		[]string{"Ben", "4", "x", "", "fine"},
	)
	e := engineFor(table)

	radar, ok := e.MetricRadar("Ann")
	require.True(t, ok)
	assert.Equal(t, []RadarMetric{
		{Name: "Knowledge", Column: "Subject expertise", Mean: 4},
		{Name: "Adaptability", Column: "Flexible approach", Mean: 4},
		{Name: "Guidance", Column: "Support given", Mean: 4},
	}, radar)

	_, ok = e.MetricRadar("Ben")
	assert.False(t, ok, "only one metric has numbers")

	_, ok = e.MetricRadar("Nobody")
	assert.False(t, ok)
}

func TestCorrelationMatrix(t *testing.T) {
	t.Run("pairwise pearson", func(t *testing.T) {
		rows := make([][]string, 0, 5)
		for i := 1; i <= 5; i++ {
			rows = append(rows, []string{
				strconv.Itoa(i),
				strconv.Itoa(i * 2),
				strconv.Itoa(6 - i),
				"text",
			})
		}
		table := buildTable([]string{"Content rating", "Pace score", "Structure", "Training feedback"}, rows...)
		m := engineFor(table).CorrelationMatrix()

		require.Equal(t, []string{"Content rating", "Pace score", "Structure"}, m.Columns)
		v, ok := m.At(0, 1)
		require.True(t, ok)
		assert.InDelta(t, 1.0, v, 1e-9)
		v, _ = m.At(0, 2)
		assert.InDelta(t, -1.0, v, 1e-9)
		v, _ = m.At(2, 2)
		assert.InDelta(t, 1.0, v, 1e-9)
	})

	t.Run("fewer than two numeric columns", func(t *testing.T) {
		table := buildTable([]string{"Content rating", "Comments"}, []string{"4", "x"}, []string{"5", "y"})
		assert.True(t, engineFor(table).CorrelationMatrix().Empty())
	})

	t.Run("constant column is undefined and encodes as null", func(t *testing.T) {
		table := buildTable([]string{"Quality", "Pace"},
			[]string{"4", "1"}, []string{"4", "2"}, []string{"4", "3"})
		m := engineFor(table).CorrelationMatrix()
		_, ok := m.At(0, 1)
		assert.False(t, ok)

		raw, err := json.Marshal(m)
		require.NoError(t, err)
		assert.JSONEq(t, `{"columns":["Quality","Pace"],"values":[[null,null],[null,1]]}`, string(raw))
	})
}

func TestPearson(t *testing.T) {
	all := []bool{true, true, true}
	assert.True(t, math.IsNaN(Pearson([]float64{1}, []float64{1}, []bool{true}, []bool{true})))
	assert.InDelta(t, 1.0, Pearson([]float64{1, 2, 3}, []float64{2, 4, 6}, all, all), 1e-9)
	assert.InDelta(t, 1.0, Pearson([]float64{1, 2, 3, 99}, []float64{2, 4, 6, 0}, []bool{true, true, true, true}, []bool{true, true, true, false}), 1e-9)
}
