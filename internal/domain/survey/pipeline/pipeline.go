// Package pipeline runs one upload batch through loading, classification,
// merging, normalization and aggregation, producing an immutable Run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/analytics"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/classifier"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/loader"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/merger"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/normalizer"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/summarizer"
)

const tracerName = "feedback-insights/pipeline"

// ErrNoDelegateData is returned when no delegate table survives merging.
var ErrNoDelegateData = errors.New("no valid delegate feedback data found")

// Run results recorded by the Recorder.
const (
	ResultOK             = "ok"
	ResultNoTables       = "no_tables"
	ResultNoDelegateData = "no_delegate_data"
	ResultFailed         = "failed"
)

// Recorder receives processing metrics. *metrics.Manager satisfies it.
type Recorder interface {
	ObserveStage(stage string, d time.Duration)
	RunCompleted(result string)
	TablesClassified(category string, n int)
	Warnings(stage string, n int)
	NarrativeGenerated(backend string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, time.Duration) {}
func (nopRecorder) RunCompleted(string) {}
func (nopRecorder) TablesClassified(string, int) {}
func (nopRecorder) Warnings(string, int) {}
func (nopRecorder) NarrativeGenerated(string) {}

// Config tunes a Pipeline.
type Config struct {
	Loader    loader.Config
	Analytics analytics.Options
}

// Pipeline is stateless; concurrent Process calls are independent.
type Pipeline struct {
	cfg        Config
	loader     *loader.Loader
	summarizer summarizer.Summarizer
	recorder   Recorder
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Pipeline. A nil summarizer selects the rule-based fallback;
// a nil recorder discards metrics.
func New(cfg Config, sum summarizer.Summarizer, rec Recorder, logger *slog.Logger) *Pipeline {
	if sum == nil {
		sum = summarizer.Fallback{}
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Pipeline{
		cfg:        cfg,
		loader:     loader.New(cfg.Loader, logger),
		summarizer: sum,
		recorder:   rec,
		tracer:     otel.Tracer(tracerName),
		logger:     logger.With(slog.String("component", "pipeline")),
		now:        time.Now,
	}
}

// Classification records how one loaded table was categorized.
type Classification struct {
	Table    string              `json:"table"`
	Source   string              `json:"source"`
	Sheet    string              `json:"sheet,omitempty"`
	Rows     int                 `json:"rows"`
	Columns  int                 `json:"columns"`
	Decision classifier.Decision `json:"decision"`
}

// Run is the immutable result of one upload batch.
type Run struct {
	ID              uuid.UUID                           `json:"id"`
	CreatedAt       time.Time                           `json:"created_at"`
	Files           []string                            `json:"files"`
	Classifications []Classification                    `json:"classifications"`
	Warnings        []dataset.Warning                   `json:"warnings"`
	Tables          map[dataset.Category]*dataset.Table `json:"-"`
	Normalized      *normalizer.Result                  `json:"-"`
	Engine          *analytics.Engine                   `json:"-"`
}

// Delegates returns the normalized delegate table.
func (r *Run) Delegates() *dataset.Table {
	return r.Normalized.Table
}

// Table returns the merged table for c. Master falls back to the normalized
// delegate table when no master data was uploaded; delegate always returns
// the normalized table. The bool reports whether the table exists.
func (r *Run) Table(c dataset.Category) (*dataset.Table, bool) {
	switch c {
	case dataset.CategoryDelegate:
		return r.Delegates(), true
	case dataset.CategoryMaster:
		if t, ok := r.Tables[c]; ok {
			return t, true
		}
		return r.Delegates(), true
	}
	t, ok := r.Tables[c]
	return t, ok
}

// MasterIsFallback reports whether master queries are served by delegate data.
func (r *Run) MasterIsFallback() bool {
	_, ok := r.Tables[dataset.CategoryMaster]
	return !ok
}

// Error is a failed run. It keeps what was learned before the failure so
// callers can still show warnings and classifications.
type Error struct {
	Err             error
	Warnings        []dataset.Warning
	Classifications []Classification
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Process runs the whole batch. It fails only when no table loads
// (loader.ErrNoTables) or no delegate data remains (ErrNoDelegateData);
// every other problem becomes a warning on the Run.
func (p *Pipeline) Process(ctx context.Context, uploads []loader.Upload) (*Run, error) {
	id := uuid.New()
	ctx, span := p.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.String("run.id", id.String()),
			attribute.Int("run.files", len(uploads)),
		))
	defer span.End()

	log := p.logger.With(slog.String("run_id", id.String()))
	files := make([]string, len(uploads))
	for i, up := range uploads {
		files[i] = up.Filename
	}

	fail := func(result string, err error, warnings []dataset.Warning, cls []Classification) (*Run, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.recorder.RunCompleted(result)
		log.Warn("run failed", slog.Any("error", err), slog.Int("warnings", len(warnings)))
		return nil, &Error{Err: err, Warnings: warnings, Classifications: cls}
	}

	// load
	var loaded *loader.Result
	err := p.stage(ctx, "load", func(ctx context.Context) error {
		var err error
		loaded, err = p.loader.Load(ctx, uploads)
		return err
	})
	if err != nil {
		var warnings []dataset.Warning
		result := ResultFailed
		if loaded != nil {
			warnings = loaded.Warnings
		}
		if errors.Is(err, loader.ErrNoTables) {
			result = ResultNoTables
		}
		p.countWarnings(warnings)
		return fail(result, err, warnings, nil)
	}
	warnings := append([]dataset.Warning(nil), loaded.Warnings...)

	// classify
	var (
		classifications []Classification
		groups          map[dataset.Category][]*dataset.Table
	)
	_ = p.stage(ctx, "classify", func(context.Context) error {
		classifications, groups = p.classify(loaded.Tables, log)
		return nil
	})

	// merge
	var merged map[dataset.Category]*dataset.Table
	_ = p.stage(ctx, "merge", func(context.Context) error {
		var mw []dataset.Warning
		merged, mw = merger.Merge(groups)
		warnings = append(warnings, mw...)
		return nil
	})

	delegate, ok := merged[dataset.CategoryDelegate]
	if !ok || delegate.Empty() {
		p.countWarnings(warnings)
		return fail(ResultNoDelegateData, ErrNoDelegateData, warnings, classifications)
	}

	// normalize
	var normalized *normalizer.Result
	_ = p.stage(ctx, "normalize", func(context.Context) error {
		normalized = normalizer.Normalize(delegate)
		warnings = append(warnings, normalizeWarnings(normalized)...)
		return nil
	})

	// aggregate
	var engine *analytics.Engine
	_ = p.stage(ctx, "aggregate", func(context.Context) error {
		engine = analytics.NewEngine(normalized, p.cfg.Analytics)
		if !engine.Schema().Has(analytics.FieldRating) {
			warnings = append(warnings, dataset.Warnf(dataset.StageNormalize, delegate.Source,
				"rating column %q not found; rating KPIs are zero", ratingColumn(p.cfg.Analytics)))
		}
		return nil
	})

	run := &Run{
		ID:              id,
		CreatedAt:       p.now().UTC(),
		Files:           files,
		Classifications: classifications,
		Warnings:        warnings,
		Tables:          merged,
		Normalized:      normalized,
		Engine:          engine,
	}

	p.countWarnings(warnings)
	p.recorder.RunCompleted(ResultOK)
	span.SetAttributes(
		attribute.Int("run.tables", len(loaded.Tables)),
		attribute.Int("run.delegate_rows", normalized.Table.Len()),
		attribute.Int("run.warnings", len(warnings)),
	)
	log.Info("run processed",
		slog.Int("files", len(uploads)),
		slog.Int("tables", len(loaded.Tables)),
		slog.Int("delegate_rows", normalized.Table.Len()),
		slog.Int("warnings", len(warnings)),
	)
	return run, nil
}

func (p *Pipeline) classify(tables []*dataset.Table, log *slog.Logger) ([]Classification, map[dataset.Category][]*dataset.Table) {
	out := make([]Classification, 0, len(tables))
	groups := make(map[dataset.Category][]*dataset.Table)
	for _, t := range tables {
		d := classifier.Explain(t, t.Source)
		groups[d.Category] = append(groups[d.Category], t)
		out = append(out, Classification{
			Table:    t.Name,
			Source:   t.Source,
			Sheet:    t.Sheet,
			Rows:     t.Len(),
			Columns:  t.Width(),
			Decision: d,
		})
		log.Debug("table classified",
			slog.String("table", t.Name),
			slog.String("category", string(d.Category)),
			slog.String("rule", d.RuleName),
			slog.String("matched", strings.Join(d.Matched, ",")),
		)
	}
	for _, c := range dataset.Categories() {
		p.recorder.TablesClassified(string(c), len(groups[c]))
	}
	return out, groups
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.recorder.ObserveStage(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline) countWarnings(warnings []dataset.Warning) {
	byStage := make(map[dataset.Stage]int)
	for _, w := range warnings {
		byStage[w.Stage]++
	}
	stages := make([]string, 0, len(byStage))
	for s := range byStage {
		stages = append(stages, string(s))
	}
	sort.Strings(stages)
	for _, s := range stages {
		p.recorder.Warnings(s, byStage[dataset.Stage(s)])
	}
}

func normalizeWarnings(n *normalizer.Result) []dataset.Warning {
	src := n.Table.Source
	total := n.Table.Len()
	switch {
	case n.DateColumn == "":
		return []dataset.Warning{dataset.Warnf(dataset.StageNormalize, src,
			"no date column found; quarterly trends are unavailable")}
	case n.Parsed == 0:
		return []dataset.Warning{dataset.Warnf(dataset.StageNormalize, src,
			"no dates in column %q could be parsed", n.DateColumn)}
	case n.Parsed < total:
		return []dataset.Warning{dataset.Warnf(dataset.StageNormalize, src,
			"%d of %d dates in column %q could not be parsed", total-n.Parsed, total, n.DateColumn)}
	}
	return nil
}

func ratingColumn(opts analytics.Options) string {
	if opts.RatingColumn != "" {
		return opts.RatingColumn
	}
	return analytics.DefaultRatingColumn
}

// String summarizes the run for logs.
func (r *Run) String() string {
	return fmt.Sprintf("run %s: %d files, %d delegate rows, %d warnings",
		r.ID, len(r.Files), r.Delegates().Len(), len(r.Warnings))
}
