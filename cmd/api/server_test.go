package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/loader"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/summarizer"
	"github.com/FACorreiaa/feedback-insights/pkg/config"
)

const tutorsCSV = "Tutor Name,Please give the course a rating out of 5,Comments\n" +
	"Alice Smith,5,Great session\n" +
	"Bob Jones,4,Useful\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:               "127.0.0.1",
			Port:               0,
			CORSOrigins:        []string{"https://dashboard.example"},
			RateLimitPerSecond: 0.5,
			RateLimitBurst:     1,
			MaxUploadBytes:     1 << 20,
			ShutdownTimeout:    time.Second,
		},
		Summarizer:    config.SummarizerConfig{Provider: "none"},
		Session:       config.SessionConfig{Key: "0123456789abcdef0123456789abcdef", TTL: time.Hour, EvictionSpec: "@every 1h"},
		Observability: config.ObservabilityConfig{MetricsEnabled: true},
	}
}

func newTestServer(t *testing.T) *Server {
	deps, err := InitDependencies(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return NewServer(deps)
}

func uploadRequest(t *testing.T) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "tutors.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(tutorsCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestInitDependencies(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, "rules", summarizer.Name(s.deps.Summarizer))
	assert.False(t, s.deps.Mailer.Enabled())
	assert.NotNil(t, s.deps.Metrics)
	require.NoError(t, s.deps.Scheduler.RunNow(EvictionJob))

	_, err := InitDependencies(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestInitDependencies_SurveyLoading(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Cohort A"))
	for i, row := range [][]any{
		{"Tutor Name", "Please give the course a rating out of 5", "Comments"},
		{"Alice Smith", 5, "Great session"},
		{"Bob Jones", 4, "Useful"},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Cohort A", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Survey.TagSourceSheet = true
	cfg.Survey.MaxRowsPerSheet = 1
	deps, err := InitDependencies(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	run, err := deps.Pipeline.Process(context.Background(), []loader.Upload{{Filename: "tutors.xlsx", Data: buf.Bytes()}})
	require.NoError(t, err)
	delegates := run.Delegates()
	require.True(t, delegates.HasColumn(loader.SourceSheetColumn))
	assert.Equal(t, 1, delegates.Len())
	assert.Equal(t, "Cohort A", delegates.Cell(0, loader.SourceSheetColumn).String())
}

func TestRouter(t *testing.T) {
	router := newTestServer(t).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","active_sessions":0}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Result().Cookies())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"rate_limited"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `feedback_insights_pipeline_runs_total{result="ok"} 1`)
	assert.Contains(t, body, `route="/api/uploads"`)
	assert.Contains(t, body, "feedback_insights_active_sessions 1")
}

func TestCORS(t *testing.T) {
	router := newTestServer(t).Router()

	req := httptest.NewRequest(http.MethodOptions, "/api/report", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://dashboard.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, strings.Contains(rec.Header().Get("Vary"), "evil"))
}
