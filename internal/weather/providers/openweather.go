package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
	"github.com/i474232898/pv-feature-pipeline/internal/weather"
)

// One Call nests precipitation as {"rain": {"1h": x}, "snow": {"1h": y}}.
var openWeatherFields = []weather.Field{
	{Key: "temp", Channel: series.Temperature},
	{Key: "pressure", Channel: series.Pressure},
	{Key: "humidity", Channel: series.Humidity},
	{Key: "wind_speed", Channel: series.WindSpeed},
	{Key: "wind_deg", Channel: series.WindAngle},
	{Key: "clouds", Channel: series.CloudCoverTotal},
	{Key: "rain_1h", Channel: series.PrecipitationTotal},
	{Key: "snow_1h", Channel: series.PrecipitationTotal},
}

// OpenWeatherProvider implements weather.Provider for the OpenWeather One Call API.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey, baseURL string) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/3.0/onecall"
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client},
		circuit: newBreaker("openweather", 0),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) FetchHourly(ctx context.Context, req weather.Request) ([]weather.Record, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errMissingKey)
	}
	loc := req.Location
	if !loc.HasCoordinates() {
		return nil, fmt.Errorf("openweather: %w", weather.ErrNoCoordinates)
	}
	tz, err := loc.TimeLocation()
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("lat", fmt.Sprintf("%f", *loc.Lat))
	values.Set("lon", fmt.Sprintf("%f", *loc.Lon))
	values.Set("exclude", "current,minutely,daily,alerts")

	var payload struct {
		Hourly []map[string]any `json:"hourly"`
	}
	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return nil, err
	}

	records := make([]weather.Record, 0, len(payload.Hourly))
	for _, hour := range payload.Hourly {
		flat := weather.Flatten(hour)
		dt, ok := flat["dt"]
		if !ok {
			return nil, fmt.Errorf("%w: openweather: hourly entry without dt", weather.ErrMalformedPayload)
		}
		t := time.Unix(int64(dt), 0).In(tz)
		records = append(records, weather.Bind(t, flat, openWeatherFields))
	}
	return records, nil
}
