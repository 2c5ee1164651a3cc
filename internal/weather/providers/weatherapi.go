package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
	"github.com/i474232898/pv-feature-pipeline/internal/weather"
)

// WeatherAPI reports wind in km/h and has no CAPE.
var weatherAPIFields = []weather.Field{
	{Key: "temp_c", Channel: series.Temperature},
	{Key: "pressure_mb", Channel: series.Pressure},
	{Key: "short_rad", Channel: series.Irradiance},
	{Key: "humidity", Channel: series.Humidity},
	{Key: "wind_kph", Channel: series.WindSpeed, Scale: 1 / 3.6},
	{Key: "wind_degree", Channel: series.WindAngle},
	{Key: "cloud", Channel: series.CloudCoverTotal},
	{Key: "precip_mm", Channel: series.PrecipitationTotal},
}

// WeatherAPIProvider implements weather.Provider for the WeatherAPI.com forecast.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	days    int
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey, baseURL string, forecastDays int) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = "https://api.weatherapi.com/v1/forecast.json"
	}
	if forecastDays <= 0 {
		forecastDays = 2
	}
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: baseURL,
		days:    forecastDays,
		httpCfg: HTTPClientConfig{Client: client},
		circuit: newBreaker("weatherapi", 0),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) FetchHourly(ctx context.Context, req weather.Request) ([]weather.Record, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi: %w", errMissingKey)
	}
	loc := req.Location
	if !loc.HasCoordinates() {
		return nil, fmt.Errorf("weatherapi: %w", weather.ErrNoCoordinates)
	}
	tz, err := loc.TimeLocation()
	if err != nil {
		return nil, err
	}

	days := p.days
	if !req.From.IsZero() && req.To.After(req.From) {
		days = int(math.Ceil(req.To.Sub(req.From).Hours()/24)) + 1
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
	values.Set("days", fmt.Sprintf("%d", days))
	values.Set("aqi", "no")
	values.Set("alerts", "no")

	var payload struct {
		Forecast struct {
			ForecastDay []struct {
				Hour []map[string]any `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return nil, err
	}

	var records []weather.Record
	for _, day := range payload.Forecast.ForecastDay {
		for _, hour := range day.Hour {
			flat := weather.Flatten(hour)
			epoch, ok := flat["time_epoch"]
			if !ok {
				return nil, fmt.Errorf("%w: weatherapi: hour without time_epoch", weather.ErrMalformedPayload)
			}
			t := time.Unix(int64(epoch), 0).In(tz)
			records = append(records, weather.Bind(t, flat, weatherAPIFields))
		}
	}
	return records, nil
}
