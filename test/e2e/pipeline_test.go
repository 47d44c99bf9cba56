// Package e2etest provides end-to-end tests that drive the HTTP API with
// generated survey exports.
package e2etest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/feedback-insights/cmd/api"
	"github.com/FACorreiaa/feedback-insights/pkg/config"
	"github.com/FACorreiaa/feedback-insights/pkg/surveyfake"
)

const testDataDir = "testdata"

var (
	from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
)

type upload struct {
	name string
	data []byte
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T) *client {
	cfg := &config.Config{
		Server: config.ServerConfig{
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerSecond: 100,
			RateLimitBurst:     100,
			MaxUploadBytes:     10 << 20,
			ShutdownTimeout:    time.Second,
		},
		Summarizer:    config.SummarizerConfig{Provider: "none"},
		Session:       config.SessionConfig{Key: "e2e-session-key-0123456789abcdef!", TTL: time.Hour, EvictionSpec: "@every 1h"},
		Observability: config.ObservabilityConfig{MetricsEnabled: true},
	}
	deps, err := api.InitDependencies(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewServer(deps).Router())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: srv.URL, http: &http.Client{Jar: jar}}
}

func (c *client) upload(files ...upload) *http.Response {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		require.NoError(c.t, err)
		_, err = part.Write(f.data)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, mw.Close())

	resp, err := c.http.Post(c.base+"/api/uploads", mw.FormDataContentType(), &body)
	require.NoError(c.t, err)
	return resp
}

func (c *client) get(path string) *http.Response {
	resp, err := c.http.Get(c.base + path)
	require.NoError(c.t, err)
	return resp
}

func readJSON(t *testing.T, resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// TestMixedUploadReport uploads a two-sheet delegate workbook together with
// delegate, partner and master CSV exports and checks the merged report.
func TestMixedUploadReport(t *testing.T) {
	c := newClient(t)

	g := surveyfake.New(42, 5)
	workbook, err := surveyfake.DelegateWorkbook(g.Responses(60, from, to), "Q1-Q2", "Q3-Q4")
	require.NoError(t, err)
	extra := g.Responses(20, from, to)

	resp := c.upload(
		upload{"delegate_feedback_2024.xlsx", workbook},
		upload{"late_delegates.csv", surveyfake.DelegateCSV(extra)},
		upload{"partners.csv", g.PartnerCSV(8)},
		upload{"master_schedule.csv", g.MasterCSV(40, from, to)},
	)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := readJSON(t, resp)

	t.Run("Classification", func(t *testing.T) {
		classifications := created["classifications"].([]any)
		require.Len(t, classifications, 5)
		categories := map[string]int{}
		for _, raw := range classifications {
			decision := raw.(map[string]any)["decision"].(map[string]any)
			categories[decision["category"].(string)]++
		}
		assert.Equal(t, map[string]int{"delegate": 3, "partner": 1, "master": 1}, categories)
		t.Logf("classified: %v", categories)
	})

	t.Run("Report", func(t *testing.T) {
		report := readJSON(t, c.get("/api/report?narrative=true"))
		assert.Equal(t, created["run_id"], report["run_id"])

		kpis := report["kpis"].(map[string]any)
		assert.EqualValues(t, 80, kpis["total_responses"])
		assert.EqualValues(t, 5, kpis["trainer_count"])
		assert.Len(t, report["trend"], 4)
		assert.Len(t, report["tables"], 3)
		assert.Equal(t, "rules", report["narrative"].(map[string]any)["backend"])
		t.Logf("overall rating %v, nps %v", kpis["overall_rating"], kpis["nps"])
	})

	t.Run("Trainer", func(t *testing.T) {
		name := g.Trainers()[0]
		body := readJSON(t, c.get("/api/trainers/" + url.PathEscape(name)))
		assert.Equal(t, name, body["trainer"])
		assert.NotNil(t, body["rating"])
	})

	t.Run("Export", func(t *testing.T) {
		resp := c.get("/api/export.xlsx")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		f, err := excelize.OpenReader(resp.Body)
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Data")
		require.NoError(t, err)
		assert.Len(t, rows, 81, "header plus every delegate response")
	})

	t.Run("Metrics", func(t *testing.T) {
		resp := c.get("/metrics")
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(data), `feedback_insights_tables_classified_total{category="delegate"} 3`)
	})
}

// TestSampleExport runs a real export when one is checked into testdata.
func TestSampleExport(t *testing.T) {
	path := filepath.Join(testDataDir, "sample_feedback.xlsx")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Skipf("Test data file not found: %s (add a survey export to run this test)", path)
	}
	require.NoError(t, err)

	c := newClient(t)
	resp := c.upload(upload{filepath.Base(path), data})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	report := readJSON(t, resp)
	t.Logf("sample export: kpis=%v warnings=%v", report["kpis"], report["warnings"])
}
