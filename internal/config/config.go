// Package config defines the pipeline configuration and how it is loaded.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
)

// Config contains process configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Source   SourceConfig   `koanf:"source"`
	Run      RunConfig      `koanf:"run"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Weather  WeatherConfig  `koanf:"weather"`
	Redis    RedisConfig    `koanf:"redis"`
	MQTT     MQTTConfig     `koanf:"mqtt"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	HTTP     HTTPConfig     `koanf:"http"`
}

// LogConfig controls verbosity: debug, info, warn, error.
type LogConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

// SourceConfig selects the telemetry store.
type SourceConfig struct {
	Driver string `koanf:"driver" validate:"oneof=clickhouse postgres memory"`

	// MemoryPath is a JSON document export loaded by the memory driver.
	MemoryPath string `koanf:"memory_path" validate:"required_if=Driver memory"`

	ClickHouse  ClickHouseConfig `koanf:"clickhouse"`
	PostgresDSN string           `koanf:"postgres_dsn" validate:"required_if=Driver postgres"`
}

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Addr     string `koanf:"addr"`
	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// RunConfig is the default window of a one-shot run.
type RunConfig struct {
	InverterID string        `koanf:"inverter_id" validate:"required"`
	From       string        `koanf:"from" validate:"required"`
	Duration   time.Duration `koanf:"duration" validate:"gt=0"`
}

// Window parses From and returns the closed interval [from, from+Duration].
func (r RunConfig) Window() (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, r.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("run.from: %w", err)
	}
	return from, from.Add(r.Duration), nil
}

// PipelineConfig tunes the alignment stages and their outputs.
type PipelineConfig struct {
	GridWidth     time.Duration `koanf:"grid_width" validate:"gt=0"`
	SmoothWindow  int           `koanf:"smooth_window" validate:"gt=0"`
	SmoothColumns []string      `koanf:"smooth_columns"`
	Horizon       time.Duration `koanf:"horizon" validate:"gte=0"`

	// Persist writes the normalized telemetry to OutputDir/inverterdatas.csv.
	Persist         bool   `koanf:"persist"`
	PersistWeather  bool   `koanf:"persist_weather"`
	PersistFeatures bool   `koanf:"persist_features"`
	OutputDir       string `koanf:"output_dir"`
	PreviewRows     int    `koanf:"preview_rows" validate:"gte=0"`
}

// SmoothChannels parses SmoothColumns.
func (p PipelineConfig) SmoothChannels() ([]series.Channel, error) {
	return series.ParseChannels(p.SmoothColumns)
}

// WeatherConfig selects providers and the forecast location.
type WeatherConfig struct {
	Providers []string `koanf:"providers" validate:"min=1,dive,oneof=openmeteo weatherapi openweather openweathermap"`

	Latitude  *float64 `koanf:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `koanf:"longitude" validate:"omitempty,gte=-180,lte=180"`
	City      string   `koanf:"city"`
	Country   string   `koanf:"country"`
	Timezone  string   `koanf:"timezone"`

	ForecastDays   int           `koanf:"forecast_days" validate:"gte=1,lte=16"`
	OpenMeteoURL   string        `koanf:"openmeteo_url" validate:"omitempty,url"`
	WeatherAPIKey  string        `koanf:"weatherapi_key"`
	WeatherAPIURL  string        `koanf:"weatherapi_url" validate:"omitempty,url"`
	OpenWeatherKey string        `koanf:"openweather_key"`
	OpenWeatherURL string        `koanf:"openweather_url" validate:"omitempty,url"`
	GeocoderKey    string        `koanf:"geocoder_key"`
	HTTPTimeout    time.Duration `koanf:"http_timeout" validate:"gt=0"`
	BreakerTimeout time.Duration `koanf:"breaker_timeout" validate:"gte=0"`
	CacheTTL       time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

// RedisConfig enables the forecast cache when Addr is set.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

// MQTTConfig enables feature publishing when Broker is set.
type MQTTConfig struct {
	Broker   string `koanf:"broker"`
	ClientID string `koanf:"client_id"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Topic    string `koanf:"topic"`
	QoS      int    `koanf:"qos" validate:"gte=0,lte=2"`
}

// MetricsConfig configures the Pushgateway used by one-shot runs.
type MetricsConfig struct {
	Enabled        bool   `koanf:"enabled"`
	PushgatewayURL string `koanf:"pushgateway_url" validate:"omitempty,url"`
	Job            string `koanf:"job"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Port string `koanf:"port" validate:"required"`
}

// New returns a Config filled with defaults.
func New() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Source: SourceConfig{
			Driver:     "memory",
			MemoryPath: "data/inverterdatas.json",
			ClickHouse: ClickHouseConfig{
				Addr:     "localhost:9000",
				Database: "default",
				Username: "default",
			},
		},
		Run: RunConfig{
			InverterID: "673f92e7cf2a88fc6f8d53be",
			From:       "2024-08-25T00:00:00Z",
			Duration:   24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			GridWidth:     series.FiveMinuteGrid.Width(),
			SmoothWindow:  3,
			SmoothColumns: []string{series.ActivePower.String(), series.ACVoltage.String()},
			Persist:       true,
			OutputDir:     "data",
		},
		Weather: WeatherConfig{
			Providers:      []string{"openmeteo"},
			Latitude:       ptr(52.52),
			Longitude:      ptr(13.41),
			Timezone:       "UTC",
			ForecastDays:   2,
			HTTPTimeout:    10 * time.Second,
			BreakerTimeout: 30 * time.Second,
			CacheTTL:       time.Hour,
		},
		MQTT: MQTTConfig{
			ClientID: "pv-feature-pipeline",
			Topic:    "pv/{inverter}/features",
			QoS:      1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Job:     "pv_feature_pipeline",
		},
		HTTP: HTTPConfig{Port: "8080"},
	}
}

func ptr(v float64) *float64 { return &v }

// normalize splits comma separated list entries, which is how lists arrive from env vars.
func (c *Config) normalize() {
	c.Weather.Providers = splitList(c.Weather.Providers)
	c.Pipeline.SmoothColumns = splitList(c.Pipeline.SmoothColumns)
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, strings.ToLower(part))
			}
		}
	}
	return out
}
