package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/pv-feature-pipeline/internal/pipeline"
	"github.com/i474232898/pv-feature-pipeline/internal/series"
	"github.com/i474232898/pv-feature-pipeline/internal/telemetry"
	"github.com/i474232898/pv-feature-pipeline/internal/weather"
	"github.com/i474232898/pv-feature-pipeline/pkg/metrics"
)

var day = time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC)

type stubRunner struct {
	got pipeline.Request
	err error
}

func (s *stubRunner) Run(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	s.got = req
	if s.err != nil {
		return pipeline.Result{}, s.err
	}
	feat := series.New(series.ActivePower, series.Temperature)
	_ = feat.Set(req.From, series.Some(1.5), series.Some(20))
	return pipeline.Result{RunID: uuid.New(), Features: feat}, nil
}

func newApp(runner Runner) (*fiber.App, *metrics.Manager) {
	lat, lon := 52.52, 13.41
	m := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
	app := fiber.New()
	app.Use(Metrics(m))
	RegisterRoutes(app, runner, Defaults{
		InverterID: "673f92e7cf2a88fc6f8d53be",
		Window:     24 * time.Hour,
		Location:   weather.Location{Lat: &lat, Lon: &lon, Timezone: "UTC"},
	}, m)
	return app, m
}

func get(t *testing.T, app *fiber.App, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

func TestFeaturesDefaults(t *testing.T) {
	runner := &stubRunner{}
	app, _ := newApp(runner)

	resp := get(t, app, "/api/v1/features?from=2024-08-25T00:00:00Z")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	if runner.got.InverterID != "673f92e7cf2a88fc6f8d53be" {
		t.Fatalf("expected default inverter, got %q", runner.got.InverterID)
	}
	if !runner.got.To.Equal(day.Add(24 * time.Hour)) {
		t.Fatalf("expected default window end, got %v", runner.got.To)
	}
	if !runner.got.Location.HasCoordinates() {
		t.Fatalf("expected default coordinates")
	}

	var body struct {
		Features struct {
			RunID   string   `json:"run_id"`
			Columns []string `json:"columns"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Features.RunID == "" {
		t.Fatalf("expected run id in response")
	}
	if strings.Join(body.Features.Columns, ",") != "active_power,temperature" {
		t.Fatalf("unexpected columns %v", body.Features.Columns)
	}
}

func TestFeaturesQueryOverrides(t *testing.T) {
	runner := &stubRunner{}
	app, _ := newApp(runner)

	resp := get(t, app, fmt.Sprintf("/api/v1/features?inverter=abc&from=%d&to=%d&city=Vienna&country=AT",
		day.Unix(), day.Add(time.Hour).Unix()))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if runner.got.InverterID != "abc" || !runner.got.To.Equal(day.Add(time.Hour)) {
		t.Fatalf("unexpected request %+v", runner.got)
	}
	if runner.got.Location.City != "Vienna" || runner.got.Location.HasCoordinates() {
		t.Fatalf("expected city location, got %+v", runner.got.Location)
	}
}

func TestFeaturesCSV(t *testing.T) {
	app, _ := newApp(&stubRunner{})

	resp := get(t, app, "/api/v1/features?from=2024-08-25T00:00:00Z&format=csv")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(b), "date,active_power,temperature\n2024-08-25T00:00:00Z,1.5,20") {
		t.Fatalf("unexpected body %q", b)
	}
}

func TestFeaturesValidation(t *testing.T) {
	app, _ := newApp(&stubRunner{})

	cases := []string{
		"/api/v1/features",
		"/api/v1/features?from=yesterday",
		"/api/v1/features?from=2024-08-25T00:00:00Z&to=2024-08-24T00:00:00Z",
		"/api/v1/features?from=2024-08-25T00:00:00Z&format=xml",
		"/api/v1/features?from=2024-08-25T00:00:00Z&lat=52.5",
		"/api/v1/features?from=2024-08-25T00:00:00Z&lat=95&lon=10",
	}
	for _, target := range cases {
		if resp := get(t, app, target); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

func TestFeaturesErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("query telemetry: %w", telemetry.ErrUpstream), http.StatusBadGateway},
		{fmt.Errorf("fetch weather: %w", weather.ErrUpstream), http.StatusBadGateway},
		{weather.ErrNoCoordinates, http.StatusBadRequest},
		{fmt.Errorf("persist features: disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		app, _ := newApp(&stubRunner{err: tc.err})
		resp := get(t, app, "/api/v1/features?from=2024-08-25T00:00:00Z")
		if resp.StatusCode != tc.code {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.code, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newApp(&stubRunner{})

	get(t, app, "/api/v1/features?from=2024-08-25T00:00:00Z")

	resp := get(t, app, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `pvf_http_requests_total{method="GET",route="/api/v1/features",status_code="200"} 1`) {
		t.Fatalf("expected request counter in metrics output:\n%s", b)
	}
}
