package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/analytics"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/handler"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/loader"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/pipeline"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/session"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/summarizer"
	"github.com/FACorreiaa/feedback-insights/pkg/config"
	"github.com/FACorreiaa/feedback-insights/pkg/cron"
	"github.com/FACorreiaa/feedback-insights/pkg/metrics"
	"github.com/FACorreiaa/feedback-insights/pkg/notify"
)

// EvictionJob is the cron job that drops idle sessions.
const EvictionJob = "session-eviction"

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	// Observability
	Metrics *metrics.Manager

	// Services
	Summarizer summarizer.Summarizer
	Pipeline   *pipeline.Pipeline
	Sessions   *session.Store
	Mailer     *notify.Mailer
	Scheduler  *cron.Scheduler

	// Handlers
	SurveyHandler *handler.SurveyHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initObservability()

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initObservability creates the metrics registry when enabled. A nil Manager
// records nothing.
func (d *Dependencies) initObservability() {
	if !d.Config.Observability.MetricsEnabled {
		d.Logger.Info("metrics disabled")
		return
	}
	d.Metrics = metrics.NewManager()
	d.Logger.Info("metrics initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	sc := d.Config.Summarizer
	d.Summarizer = summarizer.New(context.Background(), summarizer.Options{
		Provider:      summarizer.Provider(sc.Provider),
		OllamaURL:     sc.OllamaURL,
		OllamaModel:   sc.OllamaModel,
		OpenAIKey:     sc.OpenAIKey,
		OpenAIModel:   sc.OpenAIModel,
		OpenAIBaseURL: sc.OpenAIBaseURL,
		PingTimeout:   sc.PingTimeout,
		CallTimeout:   sc.CallTimeout,
		OnFallback:    d.Metrics.NarrativeFallback,
	}, d.Logger)

	sv := d.Config.Survey
	lc := loader.DefaultConfig()
	if sv.LoaderConcurrency > 0 {
		lc.MaxConcurrency = sv.LoaderConcurrency
	}
	lc.TagSourceSheet = sv.TagSourceSheet
	lc.MaxRowsPerSheet = sv.MaxRowsPerSheet

	d.Pipeline = pipeline.New(pipeline.Config{
		Loader:    lc,
		Analytics: analytics.Options{RatingColumn: sv.RatingColumn},
	}, d.Summarizer, d.Metrics, d.Logger)

	d.Sessions = session.NewStore(session.Config{
		CookieName: d.Config.Session.CookieName,
		CookieKey:  []byte(d.Config.Session.Key),
		Secure:     d.Config.Session.Secure,
		TTL:        d.Config.Session.TTL,
	}, d.Metrics.SetActiveSessions, d.Logger)

	d.Mailer = notify.NewMailer(d.Config.Notify.ResendAPIKey, d.Config.Notify.FromEmail, d.Logger)
	if !d.Mailer.Enabled() {
		d.Logger.Info("RESEND_API_KEY not set, report emails disabled")
	}

	d.Scheduler = cron.NewScheduler(d.Logger, cron.Job{
		Name: EvictionJob,
		Spec: d.Config.Session.EvictionSpec,
		Run: func(context.Context) error {
			d.Sessions.Evict()
			return nil
		},
	})

	d.Logger.Info("services initialized",
		slog.String("summarizer", summarizer.Name(d.Summarizer)))
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.SurveyHandler = handler.NewSurveyHandler(handler.Config{
		MaxUploadBytes: d.Config.Server.MaxUploadBytes,
		UploadMiddleware: []func(next http.Handler) http.Handler{
			NewRateLimiter(d.Config.Server.RateLimitPerSecond, d.Config.Server.RateLimitBurst, d.Logger).Handler,
		},
	}, d.Pipeline, d.Sessions, d.Mailer, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup stops background jobs and waits for running ones.
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	d.Logger.Info("cleanup completed")
}
