// Package summarizer turns KPIs, trainer metrics and comment samples into
// short narrative text. A network model is used when one answers the
// construction-time reachability check; the rule-based Fallback is always available.
package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// ErrUnavailable reports that a narrative backend could not produce text.
var ErrUnavailable = errors.New("summarizer unavailable")

// Request is the input to one narrative.
type Request struct {
	// KPIs is the KPI set keyed by analytics.KPINames.
	KPIs map[string]float64
	// Comments are raw participant comments; blanks are ignored.
	Comments []string
	// Entity names the trainer being summarized, "" for the overall report.
	Entity string
	// Metrics holds trainer metrics such as knowledge and overall.
	Metrics map[string]float64
}

// Summarizer produces narrative text for a request.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// Provider selects the network backend.
type Provider string

const (
	ProviderAuto   Provider = "auto"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderNone   Provider = "none"
)

// Options configure New.
type Options struct {
	Provider      Provider
	OllamaURL     string
	OllamaModel   string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	PingTimeout   time.Duration
	CallTimeout   time.Duration
	// OnFallback is called with the backend name and error whenever the
	// network backend fails and the rule-based text is served instead.
	OnFallback func(backend string, err error)
}

// DefaultOptions checks a local Ollama and never calls out elsewhere.
func DefaultOptions() Options {
	return Options{
		Provider:    ProviderAuto,
		OllamaURL:   DefaultOllamaURL,
		OllamaModel: DefaultOllamaModel,
		OpenAIModel: DefaultOpenAIModel,
		PingTimeout: DefaultPingTimeout,
		CallTimeout: DefaultCallTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Provider == "" {
		o.Provider = d.Provider
	}
	if o.OllamaURL == "" {
		o.OllamaURL = d.OllamaURL
	}
	if o.OllamaModel == "" {
		o.OllamaModel = d.OllamaModel
	}
	if o.OpenAIModel == "" {
		o.OpenAIModel = d.OpenAIModel
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = d.PingTimeout
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = d.CallTimeout
	}
	return o
}

// backend is a network summarizer that can be pinged before use.
type backend interface {
	Summarizer
	Name() string
	Ping(ctx context.Context) error
}

// New picks the narrative backend once. Candidates are pinged in order
// (Ollama, then OpenAI when a key is set) and the first reachable one is
// wrapped with WithFallback. With no reachable backend the rule-based
// Fallback is returned. New never fails.
func New(ctx context.Context, opts Options, logger *slog.Logger) Summarizer {
	opts = opts.withDefaults()
	log := logger.With(slog.String("component", "summarizer"))

	ollama := func() backend { return NewOllama(opts.OllamaURL, opts.OllamaModel, opts.CallTimeout, log) }
	openAI := func() backend { return NewOpenAI(opts.OpenAIKey, opts.OpenAIModel, opts.OpenAIBaseURL, opts.CallTimeout, log) }

	var candidates []backend
	switch opts.Provider {
	case ProviderNone:
		log.Info("narrative backend disabled, using rule-based text")
		return Fallback{}
	case ProviderOllama:
		candidates = append(candidates, ollama())
	case ProviderOpenAI:
		if opts.OpenAIKey == "" {
			log.Warn("openai provider selected without an API key, using rule-based text")
			return Fallback{}
		}
		candidates = append(candidates, openAI())
	default:
		candidates = append(candidates, ollama())
		if opts.OpenAIKey != "" {
			candidates = append(candidates, openAI())
		}
	}

	for _, b := range candidates {
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := b.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Info("narrative backend unreachable",
				slog.String("backend", b.Name()),
				slog.Any("error", err))
			continue
		}
		log.Info("narrative backend selected", slog.String("backend", b.Name()))
		return WithFallback(b, log, opts.OnFallback)
	}

	log.Info("no narrative backend reachable, using rule-based text")
	return Fallback{}
}

// Name returns the backend name of s, or "custom" for foreign implementations.
func Name(s Summarizer) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "custom"
}

// Guarded serves rule-based text whenever its primary fails.
type Guarded struct {
	primary    Summarizer
	fallback   Fallback
	logger     *slog.Logger
	onFallback func(backend string, err error)
}

// WithFallback wraps primary so that an error, a timeout or blank output
// yields the Fallback text instead. onFallback may be nil.
func WithFallback(primary Summarizer, logger *slog.Logger, onFallback func(backend string, err error)) *Guarded {
	return &Guarded{primary: primary, logger: logger, onFallback: onFallback}
}

func (g *Guarded) Name() string {
	return Name(g.primary)
}

func (g *Guarded) Summarize(ctx context.Context, req Request) (string, error) {
	text, err := g.primary.Summarize(ctx, req)
	if err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text), nil
	}
	if err == nil {
		err = ErrUnavailable
	}

	name := g.Name()
	g.logger.Warn("narrative backend failed, serving rule-based text",
		slog.String("backend", name),
		slog.String("entity", req.Entity),
		slog.Any("error", err))
	if g.onFallback != nil {
		g.onFallback(name, err)
	}
	return g.fallback.Summarize(ctx, req)
}
