// Package handler exposes the survey pipeline over HTTP.
package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/analytics"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/export"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/loader"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/pipeline"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/search"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/session"
	"github.com/FACorreiaa/feedback-insights/pkg/notify"
	"github.com/FACorreiaa/feedback-insights/pkg/score"
)

const (
	// DefaultMaxUploadBytes caps a whole multipart upload.
	DefaultMaxUploadBytes = 50 << 20
	// UploadField is the multipart field carrying the files.
	UploadField = "files"

	multipartMemory = 32 << 20
)

// Mailer sends report emails.
type Mailer interface {
	Enabled() bool
	SendReport(ctx context.Context, r notify.Report) (string, error)
}

// Config tunes the survey routes.
type Config struct {
	MaxUploadBytes int64
	// UploadMiddleware wraps only the upload route, e.g. a rate limiter.
	UploadMiddleware []func(http.Handler) http.Handler
}

// SurveyHandler serves uploads, reports and exports for the caller's session.
type SurveyHandler struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	sessions *session.Store
	mailer   Mailer
	decoder  *form.Decoder
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSurveyHandler creates a SurveyHandler. mailer may be nil.
func NewSurveyHandler(cfg Config, p *pipeline.Pipeline, sessions *session.Store, mailer Mailer, logger *slog.Logger) *SurveyHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &SurveyHandler{
		cfg:      cfg,
		pipeline: p,
		sessions: sessions,
		mailer:   mailer,
		decoder:  newQueryDecoder(),
		validate: newValidator(),
		logger:   logger.With(slog.String("component", "survey_handler")),
	}
}

// Routes returns the survey API, to be mounted under /api.
func (h *SurveyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.With(h.cfg.UploadMiddleware...).Post("/uploads", h.Upload)
	r.Delete("/session", h.ClearSession)

	r.Group(func(r chi.Router) {
		r.Use(h.RunCtx)
		r.Get("/report", h.GetReport)
		r.Get("/trend", h.GetTrend)
		r.Get("/trainers", h.ListTrainers)
		r.Get("/trainers/{name}", h.GetTrainer)
		r.Get("/comments/search", h.SearchComments)
		r.Get("/export.csv", h.ExportCSV)
		r.Get("/export.xlsx", h.ExportXLSX)
		r.Post("/report/email", h.EmailReport)
	})
	return r
}

type entryKey struct{}

// RunCtx loads the session's latest run into the request context.
func (h *SurveyHandler) RunCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.sessions.Lookup(r)
		if !ok {
			h.fail(w, r, session.ErrNoRun)
			return
		}
		entry, err := h.sessions.Get(id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), entryKey{}, entry)))
	})
}

func entryFrom(ctx context.Context) *session.Entry {
	e, _ := ctx.Value(entryKey{}).(*session.Entry)
	return e
}

// Upload handles POST /api/uploads. The files of field "files" are processed
// as one batch that replaces the session's previous run.
func (h *SurveyHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.cfg.MaxUploadBytes {
		h.fail(w, r, &http.MaxBytesError{Limit: h.cfg.MaxUploadBytes})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(w, r, err)
			return
		}
		render.Render(w, r, ErrInvalidRequest("expected a multipart/form-data body", map[string]string{UploadField: err.Error()}))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[UploadField]
	if len(headers) == 0 {
		render.Render(w, r, newErr(http.StatusBadRequest, CodeNoFiles, fmt.Sprintf("no files in form field %q", UploadField)))
		return
	}
	uploads := make([]loader.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		uploads = append(uploads, loader.Upload{Filename: fh.Filename, Data: data})
	}

	id, err := h.sessions.ID(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	run, err := h.pipeline.Process(r.Context(), uploads)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	comments, err := search.Build(run.Engine)
	if err != nil {
		h.logger.WarnContext(r.Context(), "comment search disabled for run",
			slog.String("run_id", run.ID.String()),
			slog.Any("error", err))
		comments = nil
	}
	h.sessions.Put(id, run, comments)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.pipeline.Report(r.Context(), run, pipeline.ReportOptions{}))
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return data, nil
}

// ClearSession handles DELETE /api/session.
func (h *SurveyHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.sessions.Lookup(r); ok {
		h.sessions.Delete(id)
	}
	render.NoContent(w, r)
}

// GetReport handles GET /api/report.
func (h *SurveyHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	q := ReportQuery{Narrative: true}
	if !h.bind(w, r, &q) {
		return
	}
	run := entryFrom(r.Context()).Run
	render.JSON(w, r, h.pipeline.Report(r.Context(), run, pipeline.ReportOptions{
		Period:    analytics.Period(q.Period),
		Window:    q.Window,
		Narrative: q.Narrative,
	}))
}

// GetTrend handles GET /api/trend.
func (h *SurveyHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	var q ReportQuery
	if !h.bind(w, r, &q) {
		return
	}
	run := entryFrom(r.Context()).Run
	render.JSON(w, r, h.pipeline.Trends(run, analytics.Period(q.Period), q.Window))
}

// ListTrainers handles GET /api/trainers.
func (h *SurveyHandler) ListTrainers(w http.ResponseWriter, r *http.Request) {
	q := TrainersQuery{Order: string(analytics.OrderDescending)}
	if !h.bind(w, r, &q) {
		return
	}
	run := entryFrom(r.Context()).Run
	trainers := h.pipeline.Trainers(run, analytics.Order(q.Order))
	if trainers == nil {
		trainers = []analytics.TrainerRating{}
	}
	render.JSON(w, r, trainers)
}

// TrainerResponse is a trainer's comparison entry plus, with enough sessions,
// the full profile.
type TrainerResponse struct {
	Trainer   string                   `json:"trainer"`
	Rating    *analytics.TrainerRating `json:"rating,omitempty"`
	Profile   *pipeline.TrainerProfile `json:"profile,omitempty"`
	Narrative *pipeline.Narrative      `json:"narrative,omitempty"`
}

// GetTrainer handles GET /api/trainers/{name}. The name is matched loosely.
func (h *SurveyHandler) GetTrainer(w http.ResponseWriter, r *http.Request) {
	var q TrainerQuery
	if !h.bind(w, r, &q) {
		return
	}
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		render.Render(w, r, ErrInvalidRequest("malformed trainer name", map[string]string{"name": err.Error()}))
		return
	}
	run := entryFrom(r.Context()).Run
	prof, resolved, ok := h.pipeline.Trainer(run, name)
	if resolved == "" {
		h.fail(w, r, fmt.Errorf("%w: %q", pipeline.ErrUnknownTrainer, name))
		return
	}

	resp := TrainerResponse{Trainer: resolved}
	if ok {
		resp.Profile = &prof
	}
	for _, tr := range h.pipeline.Trainers(run, analytics.OrderDescending) {
		if tr.Trainer == resolved {
			resp.Rating = &tr
			break
		}
	}
	if q.Narrative {
		n := h.pipeline.Narrative(r.Context(), run, resolved)
		resp.Narrative = &n
	}
	render.JSON(w, r, resp)
}

// SearchResponse lists matching comments, best first.
type SearchResponse struct {
	Query   string       `json:"query"`
	Trainer string       `json:"trainer,omitempty"`
	Total   int          `json:"total"`
	Hits    []search.Hit `json:"hits"`
}

// SearchComments handles GET /api/comments/search.
func (h *SurveyHandler) SearchComments(w http.ResponseWriter, r *http.Request) {
	var q SearchQuery
	if !h.bind(w, r, &q) {
		return
	}
	entry := entryFrom(r.Context())
	if q.Trainer != "" {
		if name, ok := entry.Run.Engine.FindTrainer(q.Trainer); ok {
			q.Trainer = name
		}
	}
	resp := SearchResponse{Query: q.Q, Trainer: q.Trainer, Hits: []search.Hit{}}
	idx := entry.Comments
	if idx != nil {
		hits, err := idx.Search(q.Q, q.Trainer, q.Limit)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if hits != nil {
			resp.Hits = hits
		}
	}
	resp.Total = len(resp.Hits)
	render.JSON(w, r, resp)
}

// ExportCSV handles GET /api/export.csv.
func (h *SurveyHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", export.ContentTypeCSV, func(dst io.Writer, t *dataset.Table, _ []export.KPI) error {
		return export.WriteCSV(dst, t)
	})
}

// ExportXLSX handles GET /api/export.xlsx. Delegate exports carry a KPI sheet.
func (h *SurveyHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", export.ContentTypeXLSX, export.WriteXLSX)
}

type writeFunc func(w io.Writer, t *dataset.Table, kpis []export.KPI) error

func (h *SurveyHandler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write writeFunc) {
	q := ExportQuery{Category: string(dataset.CategoryDelegate)}
	if !h.bind(w, r, &q) {
		return
	}
	run := entryFrom(r.Context()).Run
	category := dataset.Category(q.Category)
	table, ok := run.Table(category)
	if !ok {
		render.Render(w, r, newErr(http.StatusNotFound, CodeNotFound, fmt.Sprintf("no %s data in this upload", category)))
		return
	}
	var kpis []export.KPI
	if category == dataset.CategoryDelegate {
		kpis = pipeline.KPIList(run.Engine.KPIs())
	}

	var buf bytes.Buffer
	if err := write(&buf, table, kpis); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(run, category, ext)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func exportFilename(run *pipeline.Run, c dataset.Category, ext string) string {
	return fmt.Sprintf("%s-%s-%s.%s", c, run.CreatedAt.Format("20060102"), run.ID.String()[:8], ext)
}

// EmailResponse acknowledges a sent report email.
type EmailResponse struct {
	ID string `json:"id"`
}

// EmailReport handles POST /api/report/email.
func (h *SurveyHandler) EmailReport(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrInvalidRequest("malformed JSON body", nil))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Render(w, r, ErrInvalidRequest("invalid email request", validationFields(err)))
		return
	}
	if h.mailer == nil || !h.mailer.Enabled() {
		h.fail(w, r, notify.ErrDisabled)
		return
	}

	run := entryFrom(r.Context()).Run
	msg, err := h.reportEmail(r.Context(), run, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.mailer.SendReport(r.Context(), msg)
	if err != nil {
		if errors.Is(err, notify.ErrDisabled) || errors.Is(err, notify.ErrNoRecipients) {
			h.fail(w, r, err)
			return
		}
		h.logger.ErrorContext(r.Context(), "report email failed", slog.Any("error", err))
		render.Render(w, r, newErr(http.StatusBadGateway, CodeUpstreamFailure, "email provider rejected the message"))
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, EmailResponse{ID: id})
}

func (h *SurveyHandler) reportEmail(ctx context.Context, run *pipeline.Run, req EmailRequest) (notify.Report, error) {
	narrative := h.pipeline.Narrative(ctx, run, req.Trainer)
	msg := notify.Report{
		To:        req.To,
		Subject:   req.Subject,
		Heading:   "Training feedback report",
		Narrative: narrative.Text,
		Lines:     kpiLines(pipeline.KPIList(run.Engine.KPIs())),
	}
	if narrative.Entity != "" {
		msg.Heading = "Training feedback: " + narrative.Entity
	}
	for _, w := range run.Warnings {
		msg.Warnings = append(msg.Warnings, w.String())
	}

	var (
		buf   bytes.Buffer
		err   error
		ctype string
		ext   = req.Attach
	)
	switch ext {
	case "none":
		return msg, nil
	case "csv":
		ctype = export.ContentTypeCSV
		err = export.WriteCSV(&buf, run.Delegates())
	default:
		ext, ctype = "xlsx", export.ContentTypeXLSX
		err = export.WriteXLSX(&buf, run.Delegates(), pipeline.KPIList(run.Engine.KPIs()))
	}
	if err != nil {
		return notify.Report{}, err
	}
	msg.Attachments = []notify.Attachment{{
		Filename:    exportFilename(run, dataset.CategoryDelegate, ext),
		ContentType: ctype,
		Content:     buf.Bytes(),
	}}
	return msg, nil
}

// fractionalKPIs are shown with two decimals; the rest are counts.
var fractionalKPIs = map[string]bool{"overall_rating": true, "nps": true, "response_rate": true}

func kpiLines(kpis []export.KPI) []notify.Line {
	lines := make([]notify.Line, 0, len(kpis))
	for _, k := range kpis {
		places := int32(0)
		if fractionalKPIs[k.Name] {
			places = score.Places
		}
		label := strings.ReplaceAll(k.Name, "_", " ")
		label = strings.ToUpper(label[:1]) + label[1:]
		lines = append(lines, notify.Line{Label: label, Value: score.Format(k.Value, places)})
	}
	return lines
}

// bind decodes and validates query parameters into dst, rendering a 400 and
// returning false on failure.
func (h *SurveyHandler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := h.decoder.Decode(dst, r.URL.Query()); err != nil {
		render.Render(w, r, ErrInvalidRequest("invalid query parameters", decodeFields(err)))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		render.Render(w, r, ErrInvalidRequest("invalid query parameters", validationFields(err)))
		return false
	}
	return true
}

func (h *SurveyHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorFor(err)
	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.Int("status", resp.Status),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Any("error", err),
	}
	if resp.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", attrs...)
	} else {
		h.logger.InfoContext(r.Context(), "request rejected", attrs...)
	}
	render.Render(w, r, resp)
}
