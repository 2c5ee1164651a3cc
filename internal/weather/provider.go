package weather

import (
	"context"
)

// Provider abstracts an hourly forecast source (e.g. Open-Meteo, WeatherAPI, OpenWeather).
type Provider interface {
	Name() string
	FetchHourly(ctx context.Context, req Request) ([]Record, error)
}

// Cache stores aggregated hourly records between runs.
type Cache interface {
	Get(ctx context.Context, key string) ([]Record, bool, error)
	Set(ctx context.Context, key string, records []Record) error
}

// Geocoder resolves a named location to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, loc Location) (Location, error)
}
