package providers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/i474232898/pv-feature-pipeline/internal/weather"
)

// Settings carries the per-provider configuration used by Build.
type Settings struct {
	ForecastDays   int
	OpenMeteoURL   string
	WeatherAPIKey  string
	WeatherAPIURL  string
	OpenWeatherKey string
	OpenWeatherURL string

	// BreakerTimeout is how long an open circuit stays open. Zero keeps the default.
	BreakerTimeout time.Duration
}

// Build creates the named providers, sharing one HTTP client.
func Build(names []string, client *http.Client, s Settings) ([]weather.Provider, error) {
	provs := make([]weather.Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case "openmeteo":
			p := NewOpenMeteoProvider(client, s.OpenMeteoURL, s.ForecastDays)
			p.circuit = newBreaker(p.Name(), s.BreakerTimeout)
			provs = append(provs, p)
		case "weatherapi":
			p := NewWeatherAPIProvider(client, s.WeatherAPIKey, s.WeatherAPIURL, s.ForecastDays)
			p.circuit = newBreaker(p.Name(), s.BreakerTimeout)
			provs = append(provs, p)
		case "openweather", "openweathermap":
			p := NewOpenWeatherProvider(client, s.OpenWeatherKey, s.OpenWeatherURL)
			p.circuit = newBreaker(p.Name(), s.BreakerTimeout)
			provs = append(provs, p)
		default:
			return nil, fmt.Errorf("unknown weather provider %q", name)
		}
	}
	return provs, nil
}
