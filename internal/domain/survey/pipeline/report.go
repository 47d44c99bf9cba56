package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/analytics"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/export"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/summarizer"
	"github.com/FACorreiaa/feedback-insights/pkg/score"
)

// ErrUnknownTrainer is returned when a trainer query matches nobody.
var ErrUnknownTrainer = errors.New("trainer not found")

// narrativeComments caps the comment sample handed to the summarizer.
const narrativeComments = 5

// TableSummary describes one merged category table.
type TableSummary struct {
	Category dataset.Category `json:"category"`
	Source   string           `json:"source"`
	Rows     int              `json:"rows"`
	Columns  int              `json:"columns"`
	Fallback bool             `json:"fallback,omitempty"`
}

// ReportOptions select the trend granularity and whether a narrative is
// generated.
type ReportOptions struct {
	Period    analytics.Period
	Window    int
	Narrative bool
}

// Report is the full dashboard payload for a run. Ratings are rounded to
// two decimals.
type Report struct {
	RunID           uuid.UUID                 `json:"run_id"`
	CreatedAt       time.Time                 `json:"created_at"`
	Files           []string                  `json:"files"`
	Tables          []TableSummary            `json:"tables"`
	Classifications []Classification          `json:"classifications"`
	Schema          analytics.Schema          `json:"schema"`
	KPIs            analytics.KPIs            `json:"kpis"`
	Distribution    []analytics.BandCount     `json:"distribution"`
	Trend           []analytics.TrendPoint    `json:"trend"`
	MasterTrend     []analytics.TrendPoint    `json:"master_trend,omitempty"`
	PartnerTrend    []analytics.TrendPoint    `json:"partner_trend,omitempty"`
	Trainers        []analytics.TrainerRating `json:"trainers"`
	Profiles        []TrainerProfile          `json:"profiles"`
	Correlation     analytics.Matrix          `json:"correlation"`
	Radar           []analytics.RadarMetric   `json:"radar,omitempty"`
	Highlights      []string                  `json:"highlights,omitempty"`
	Narrative       *Narrative                `json:"narrative,omitempty"`
	Warnings        []dataset.Warning         `json:"warnings"`
}

// TrainerProfile is an analytics profile with its quotes and radar attached.
type TrainerProfile struct {
	analytics.TrainerProfile
	Highlights []string                `json:"highlights,omitempty"`
	Radar      []analytics.RadarMetric `json:"radar,omitempty"`
}

// Narrative is generated text plus the backend that produced it.
type Narrative struct {
	Entity  string `json:"entity,omitempty"`
	Text    string `json:"text"`
	Backend string `json:"backend"`
}

// Report assembles the dashboard payload for run.
func (p *Pipeline) Report(ctx context.Context, run *Run, opts ReportOptions) Report {
	e := run.Engine

	rep := Report{
		RunID:           run.ID,
		CreatedAt:       run.CreatedAt,
		Files:           run.Files,
		Tables:          tableSummaries(run),
		Classifications: run.Classifications,
		Schema:          e.Schema(),
		KPIs:            RoundKPIs(e.KPIs()),
		Distribution:    e.RatingDistributionList(),
		Trainers:        p.Trainers(run, analytics.OrderDescending),
		Correlation:     e.CorrelationMatrix(),
		Highlights:      e.HighlightQuotes(""),
		Warnings:        run.Warnings,
	}
	if radar, ok := e.MetricRadar(""); ok {
		rep.Radar = roundRadar(radar)
	}
	trends := p.Trends(run, opts.Period, opts.Window)
	rep.Trend = trends.Delegates
	rep.MasterTrend = trends.Master
	rep.PartnerTrend = trends.Partner
	for _, prof := range e.TrainerProfiles() {
		rep.Profiles = append(rep.Profiles, p.profile(e, prof))
	}

	if opts.Narrative {
		n := p.Narrative(ctx, run, "")
		rep.Narrative = &n
	}
	return rep
}

// Trends holds the trend series of every category in a run.
type Trends struct {
	Period    analytics.Period       `json:"period"`
	Window    int                    `json:"window"`
	Delegates []analytics.TrendPoint `json:"delegates"`
	Master    []analytics.TrendPoint `json:"master,omitempty"`
	Partner   []analytics.TrendPoint `json:"partner,omitempty"`
}

// Trends computes the delegate series plus, when uploaded, the master and
// partner series.
func (p *Pipeline) Trends(run *Run, period analytics.Period, window int) Trends {
	if period == "" {
		period = analytics.PeriodQuarter
	}
	if window <= 0 {
		window = analytics.DefaultTrendWindow
	}
	t := Trends{
		Period:    period,
		Window:    window,
		Delegates: roundTrend(run.Engine.Trend(period, window)),
	}
	if master, ok := run.Tables[dataset.CategoryMaster]; ok {
		t.Master = roundTrend(analytics.SourceTrend(master, period, window, p.cfg.Analytics))
	}
	if partner, ok := run.Tables[dataset.CategoryPartner]; ok {
		t.Partner = roundTrend(analytics.SourceTrend(partner, period, window, p.cfg.Analytics))
	}
	return t
}

// Trainers returns the rounded trainer comparison.
func (p *Pipeline) Trainers(run *Run, order analytics.Order) []analytics.TrainerRating {
	return roundTrainers(run.Engine.TrainerComparison(order))
}

// Trainer returns the enriched profile for a loosely matched trainer name.
// The bool is false when the name matches nobody or the trainer has too few
// sessions for a profile; the resolved name is returned either way.
func (p *Pipeline) Trainer(run *Run, query string) (TrainerProfile, string, bool) {
	name, ok := run.Engine.FindTrainer(query)
	if !ok {
		return TrainerProfile{}, "", false
	}
	prof, ok := run.Engine.TrainerProfile(name)
	if !ok {
		return TrainerProfile{}, name, false
	}
	return p.profile(run.Engine, prof), name, true
}

func (p *Pipeline) profile(e *analytics.Engine, prof analytics.TrainerProfile) TrainerProfile {
	prof.Overall = score.Round(prof.Overall, score.Places)
	prof.Metrics = roundMap(prof.Metrics)
	out := TrainerProfile{
		TrainerProfile: prof,
		Highlights:     e.HighlightQuotes(prof.Trainer),
	}
	if radar, ok := e.MetricRadar(prof.Trainer); ok {
		out.Radar = roundRadar(radar)
	}
	return out
}

// Narrative generates overall text when trainer is "", otherwise a trainer
// summary for the closest matching trainer. It never fails: an unknown
// trainer gets overall text and a summarizer error gets rule-based text.
func (p *Pipeline) Narrative(ctx context.Context, run *Run, trainer string) Narrative {
	e := run.Engine
	req := summarizer.Request{KPIs: e.KPIs().Map()}

	if trainer != "" {
		if name, ok := e.FindTrainer(trainer); ok {
			req.Entity = name
			req.Metrics = trainerMetrics(e, name)
			req.Comments = e.TrainerComments(name, narrativeComments)
		}
	}
	if req.Entity == "" {
		req.Comments = e.TrainerComments("", narrativeComments)
	}

	backend := summarizer.Name(p.summarizer)
	text, err := p.summarizer.Summarize(ctx, req)
	if err != nil {
		p.logger.Warn("summarizer failed, using rule-based text",
			slog.String("backend", backend),
			slog.Any("error", err))
		backend = summarizer.Fallback{}.Name()
		text, _ = summarizer.Fallback{}.Summarize(ctx, req)
	}
	p.recorder.NarrativeGenerated(backend)
	return Narrative{Entity: req.Entity, Text: text, Backend: backend}
}

func trainerMetrics(e *analytics.Engine, name string) map[string]float64 {
	m := make(map[string]float64)
	if prof, ok := e.TrainerProfile(name); ok {
		for k, v := range prof.Metrics {
			m[k] = v
		}
		m["overall"] = prof.Overall
		return m
	}
	for _, tr := range e.TrainerComparison(analytics.OrderDescending) {
		if tr.Trainer == name {
			m["overall"] = tr.Mean
		}
	}
	return m
}

// KPIList flattens KPIs in presentation order for the export KPI sheet.
func KPIList(k analytics.KPIs) []export.KPI {
	m := RoundKPIs(k).Map()
	out := make([]export.KPI, 0, len(analytics.KPINames))
	for _, name := range analytics.KPINames {
		out = append(out, export.KPI{Name: name, Value: m[name]})
	}
	return out
}

// RoundKPIs rounds the fractional KPIs to two decimals. The response rate is
// recomputed from the counts.
func RoundKPIs(k analytics.KPIs) analytics.KPIs {
	k.OverallRating = score.Round(k.OverallRating, score.Places)
	k.NPS = score.Round(k.NPS, score.Places)
	k.ResponseRate = score.Percent(k.RatedResponses, k.TotalResponses)
	return k
}

func tableSummaries(run *Run) []TableSummary {
	var out []TableSummary
	for _, c := range dataset.Categories() {
		t, ok := run.Table(c)
		if !ok {
			continue
		}
		out = append(out, TableSummary{
			Category: c,
			Source:   t.Source,
			Rows:     t.Len(),
			Columns:  t.Width(),
			Fallback: c == dataset.CategoryMaster && run.MasterIsFallback(),
		})
	}
	return out
}

func roundTrend(points []analytics.TrendPoint) []analytics.TrendPoint {
	for i := range points {
		points[i].Mean = score.Round(points[i].Mean, score.Places)
		points[i].MovingAverage = score.Round(points[i].MovingAverage, score.Places)
	}
	return points
}

func roundTrainers(ts []analytics.TrainerRating) []analytics.TrainerRating {
	for i := range ts {
		ts[i].Mean = score.Round(ts[i].Mean, score.Places)
	}
	return ts
}

func roundRadar(rs []analytics.RadarMetric) []analytics.RadarMetric {
	for i := range rs {
		rs[i].Mean = score.Round(rs[i].Mean, score.Places)
	}
	return rs
}

func roundMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	return score.RoundAll(m)
}
