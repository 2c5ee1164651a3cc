package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every structured env override, e.g. PVF_WEATHER__LATITUDE.
	EnvPrefix = "PVF_"
	// EnvConfigPath names the YAML file when no explicit path is given.
	EnvConfigPath = "PVF_CONFIG"
)

// DotenvFiles are loaded into the process environment before anything else.
// Variables already set are not overwritten.
var DotenvFiles = []string{"keys.env", ".env"}

var validate = validator.New()

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New())
//  2. the plain env names of the deployment (CLICKHOUSE_HOST, REDIS_ADDR, ...)
//  3. the YAML file at path, or at $PVF_CONFIG when path is empty
//  4. env vars prefixed PVF_, with "__" separating nested keys
//
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	for _, f := range DotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, f, err)
		}
	}

	base := New()
	applyPlainEnv(base)

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		if s == "CONFIG" {
			return ""
		}
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.normalize()

	// A configured city replaces the default coordinates unless coordinates were given too.
	if cfg.Weather.City != "" && !k.Exists("weather.latitude") && !k.Exists("weather.longitude") {
		cfg.Weather.Latitude, cfg.Weather.Longitude = nil, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, _, err := c.Run.Window(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Pipeline.SmoothChannels(); err != nil {
		return fmt.Errorf("%w: pipeline.smooth_columns: %w", ErrInvalidConfig, err)
	}
	if c.Pipeline.SmoothWindow%2 == 0 {
		return fmt.Errorf("%w: pipeline.smooth_window must be odd, got %d", ErrInvalidConfig, c.Pipeline.SmoothWindow)
	}
	if (c.Weather.Latitude == nil) != (c.Weather.Longitude == nil) {
		return fmt.Errorf("%w: weather.latitude and weather.longitude must be set together", ErrInvalidConfig)
	}
	if c.Weather.Latitude == nil && c.Weather.City == "" {
		return fmt.Errorf("%w: weather needs coordinates or a city", ErrInvalidConfig)
	}
	return nil
}

// applyPlainEnv honours the unprefixed variable names used by existing deployments.
func applyPlainEnv(c *Config) {
	setString(&c.Log.Level, "LOG_LEVEL")

	setString(&c.Source.ClickHouse.Addr, "CLICKHOUSE_ADDR")
	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		port := getenvDefault("CLICKHOUSE_PORT", "9000")
		c.Source.ClickHouse.Addr = host + ":" + port
	}
	setString(&c.Source.ClickHouse.Database, "CLICKHOUSE_DATABASE")
	setString(&c.Source.ClickHouse.Username, "CLICKHOUSE_USER")
	setString(&c.Source.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	setString(&c.Source.PostgresDSN, "POSTGRES_DSN")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	c.Redis.DB = getenvInt("REDIS_DB", c.Redis.DB)

	setString(&c.MQTT.Broker, "MQTT_BROKER")
	setString(&c.MQTT.ClientID, "MQTT_CLIENT_ID")
	setString(&c.MQTT.Username, "MQTT_USERNAME")
	setString(&c.MQTT.Password, "MQTT_PASSWORD")

	setString(&c.Weather.OpenWeatherKey, "OPENWEATHER_API_KEY")
	setString(&c.Weather.WeatherAPIKey, "WEATHERAPI_API_KEY")
	setString(&c.Weather.GeocoderKey, "GEOCODER_API_KEY")
	setString(&c.Weather.City, "WEATHER_LOCATION_CITY")
	setString(&c.Weather.Country, "WEATHER_LOCATION_COUNTRY")

	setString(&c.HTTP.Port, "PORT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
