package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/pv-feature-pipeline/internal/config"
	"github.com/i474232898/pv-feature-pipeline/internal/pipeline"
	"github.com/i474232898/pv-feature-pipeline/internal/sink"
	"github.com/i474232898/pv-feature-pipeline/internal/telemetry"
	"github.com/i474232898/pv-feature-pipeline/pkg/metrics"
)

const openMeteoBody = `{"hourly":{
	"time":["2024-08-25T00:00","2024-08-25T01:00"],
	"temperature_2m":[10,16],
	"shortwave_radiation":[0,120]
}}`

const export = `[
	{"date":{"$date":"2024-08-25T00:00:00Z"},"totalActivePower":1,"temperature":40,"dcVoltage":600},
	{"date":{"$date":"2024-08-25T00:30:00Z"},"totalActivePower":3,"temperature":41,"dcVoltage":610},
	{"date":{"$date":"2024-08-25T01:00:00Z"},"totalActivePower":5,"temperature":42,"dcVoltage":620}
]`

// testConfig points the memory driver at a temp export and the weather
// provider at a local server.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(openMeteoBody))
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(dir, "inverterdatas.json")
	if err := os.WriteFile(path, []byte(export), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}

	cfg := config.New()
	cfg.Source.MemoryPath = path
	cfg.Run.Duration = time.Hour
	cfg.Pipeline.OutputDir = filepath.Join(dir, "out")
	cfg.Pipeline.PersistFeatures = true
	cfg.Weather.OpenMeteoURL = srv.URL
	cfg.Metrics.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg
}

func testDeps(t *testing.T) *deps {
	t.Helper()
	d, err := build(context.Background(), testConfig(t), zap.NewNop(), metrics.NewManager())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestRunOnceWritesTables(t *testing.T) {
	d := testDeps(t)

	if err := RunOnce(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := sink.NewCSVWriter(d.cfg.Pipeline.OutputDir)
	for _, name := range []string{telemetry.NormalizedTable, pipeline.FeaturesTable} {
		if _, err := os.Stat(w.Path(name)); err != nil {
			t.Fatalf("expected %s to be written: %v", name, err)
		}
	}

	f, err := os.Open(w.Path(pipeline.FeaturesTable))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()
	feat, err := sink.ReadCSV(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feat.Len() != 13 {
		t.Fatalf("expected 13 rows, got %d", feat.Len())
	}
}

func TestImportIntoMemoryStore(t *testing.T) {
	d := testDeps(t)

	path := filepath.Join(t.TempDir(), "extra.json")
	extra := `[{"date":"2024-08-25T00:10:00Z","inverter":"other","totalActivePower":7}]`
	if err := os.WriteFile(path, []byte(extra), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	if err := Import(context.Background(), d, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := d.store.Query(context.Background(), telemetry.Query{
		InverterID: "other",
		From:       time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2024, 8, 25, 1, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the imported reading, got %d", len(got))
	}

	if err := Import(context.Background(), d, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestServeHealthAndFeatures(t *testing.T) {
	app := newApp(testDeps(t))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if health["service"] != serviceName {
		t.Fatalf("unexpected health body %v", health)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet,
		"/api/v1/features?from=2024-08-25T00:00:00Z&to=2024-08-25T01:00:00Z", nil), -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/features?from=soon", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}
