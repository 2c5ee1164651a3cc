package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
	"github.com/i474232898/pv-feature-pipeline/internal/weather"
)

const openMeteoTimeLayout = "2006-01-02T15:04"

// openMeteoFields maps Open-Meteo hourly variables onto channels.
var openMeteoFields = []weather.Field{
	{Key: "temperature_2m", Channel: series.Temperature},
	{Key: "pressure_msl", Channel: series.Pressure},
	{Key: "cape", Channel: series.CAPE},
	{Key: "shortwave_radiation", Channel: series.Irradiance},
	{Key: "relative_humidity_2m", Channel: series.Humidity},
	{Key: "wind_speed_10m", Channel: series.WindSpeed},
	{Key: "wind_direction_10m", Channel: series.WindAngle},
	{Key: "cloud_cover", Channel: series.CloudCoverTotal},
	{Key: "precipitation", Channel: series.PrecipitationTotal},
}

// OpenMeteoProvider implements weather.Provider for the Open-Meteo hourly forecast.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	days    int
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider creates the provider. An empty baseURL uses the public API.
func NewOpenMeteoProvider(client *http.Client, baseURL string, forecastDays int) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if forecastDays <= 0 {
		forecastDays = 2
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		days:    forecastDays,
		httpCfg: HTTPClientConfig{Client: client},
		circuit: newBreaker("openmeteo", 0),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) FetchHourly(ctx context.Context, req weather.Request) ([]weather.Record, error) {
	loc := req.Location
	if !loc.HasCoordinates() {
		return nil, fmt.Errorf("openmeteo: %w", weather.ErrNoCoordinates)
	}
	tz, err := loc.TimeLocation()
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(openMeteoFields))
	for i, f := range openMeteoFields {
		keys[i] = f.Key
	}

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", *loc.Lat))
	values.Set("longitude", fmt.Sprintf("%f", *loc.Lon))
	values.Set("hourly", strings.Join(keys, ","))
	values.Set("wind_speed_unit", "ms")
	values.Set("timezone", tz.String())
	if !req.From.IsZero() && !req.To.IsZero() {
		values.Set("start_date", req.From.In(tz).Format("2006-01-02"))
		values.Set("end_date", req.To.In(tz).Format("2006-01-02"))
	} else {
		values.Set("forecast_days", fmt.Sprintf("%d", p.days))
	}

	var payload struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return nil, err
	}

	var times []string
	if err := json.Unmarshal(payload.Hourly["time"], &times); err != nil {
		return nil, fmt.Errorf("%w: openmeteo: hourly.time: %v", weather.ErrMalformedPayload, err)
	}
	columns := make(map[string][]*float64, len(openMeteoFields))
	for _, f := range openMeteoFields {
		raw, ok := payload.Hourly[f.Key]
		if !ok {
			continue
		}
		var col []*float64
		if err := json.Unmarshal(raw, &col); err != nil {
			return nil, fmt.Errorf("%w: openmeteo: %s: %v", weather.ErrMalformedPayload, f.Key, err)
		}
		columns[f.Key] = col
	}

	records := make([]weather.Record, 0, len(times))
	for i, ts := range times {
		t, err := time.ParseInLocation(openMeteoTimeLayout, ts, tz)
		if err != nil {
			return nil, fmt.Errorf("%w: openmeteo: %v", weather.ErrMalformedPayload, err)
		}
		entry := make(map[string]any, len(columns))
		for key, col := range columns {
			if i < len(col) && col[i] != nil {
				entry[key] = *col[i]
			}
		}
		records = append(records, weather.Bind(t, weather.Flatten(entry), openMeteoFields))
	}
	return records, nil
}
