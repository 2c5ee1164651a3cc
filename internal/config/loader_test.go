package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/i474232898/pv-feature-pipeline/internal/config"
)

var configEnvVars = []string{
	"PVF_CONFIG",
	"PVF_WEATHER__LATITUDE",
	"PVF_PIPELINE__SMOOTH_COLUMNS",
	"PVF_PIPELINE__SMOOTH_WINDOW",
	"PVF_RUN__DURATION",
	"PVF_SOURCE__DRIVER",
	"CLICKHOUSE_HOST",
	"CLICKHOUSE_PORT",
	"OPENWEATHER_API_KEY",
	"WEATHER_LOCATION_CITY",
	"LOG_LEVEL",
	"PORT",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load("")

			convey.Convey("Then the deployment defaults are used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Source.Driver, convey.ShouldEqual, "memory")
				convey.So(cfg.Run.InverterID, convey.ShouldEqual, "673f92e7cf2a88fc6f8d53be")
				convey.So(cfg.Run.Duration, convey.ShouldEqual, 24*time.Hour)
				convey.So(cfg.Pipeline.GridWidth, convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.Weather.Providers, convey.ShouldResemble, []string{"openmeteo"})
				convey.So(cfg.HTTP.Port, convey.ShouldEqual, "8080")

				from, to, err := cfg.Run.Window()
				convey.So(err, convey.ShouldBeNil)
				convey.So(from.Equal(time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC)), convey.ShouldBeTrue)
				convey.So(to.Sub(from), convey.ShouldEqual, 24*time.Hour)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := filepath.Join(t.TempDir(), "config.yaml")
			yaml := []byte(`
source:
  driver: postgres
  postgres_dsn: postgres://pv:pv@localhost:5432/pv
pipeline:
  smooth_window: 5
  horizon: 1h
weather:
  providers: [openmeteo, weatherapi]
`)
			convey.So(os.WriteFile(path, yaml, 0o600), convey.ShouldBeNil)

			cfg, err := config.Load(path)

			convey.Convey("Then it should override defaults with file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Source.Driver, convey.ShouldEqual, "postgres")
				convey.So(cfg.Source.PostgresDSN, convey.ShouldEqual, "postgres://pv:pv@localhost:5432/pv")
				convey.So(cfg.Pipeline.SmoothWindow, convey.ShouldEqual, 5)
				convey.So(cfg.Pipeline.Horizon, convey.ShouldEqual, time.Hour)
				convey.So(cfg.Weather.Providers, convey.ShouldResemble, []string{"openmeteo", "weatherapi"})
			})
		})

		convey.Convey("When loading config with prefixed environment variables", func() {
			_ = os.Setenv("PVF_WEATHER__LATITUDE", "48.1")
			_ = os.Setenv("PVF_PIPELINE__SMOOTH_COLUMNS", "active_power,dc_voltage")
			_ = os.Setenv("PVF_RUN__DURATION", "12h")

			cfg, err := config.Load("")

			convey.Convey("Then nested keys are overridden", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(*cfg.Weather.Latitude, convey.ShouldEqual, 48.1)
				convey.So(cfg.Pipeline.SmoothColumns, convey.ShouldResemble, []string{"active_power", "dc_voltage"})
				convey.So(cfg.Run.Duration, convey.ShouldEqual, 12*time.Hour)
			})
		})

		convey.Convey("When loading config with plain deployment variables", func() {
			_ = os.Setenv("CLICKHOUSE_HOST", "clickhouse")
			_ = os.Setenv("CLICKHOUSE_PORT", "9440")
			_ = os.Setenv("OPENWEATHER_API_KEY", "secret")
			_ = os.Setenv("PORT", "9090")

			cfg, err := config.Load("")

			convey.Convey("Then they are honoured", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Source.ClickHouse.Addr, convey.ShouldEqual, "clickhouse:9440")
				convey.So(cfg.Weather.OpenWeatherKey, convey.ShouldEqual, "secret")
				convey.So(cfg.HTTP.Port, convey.ShouldEqual, "9090")
			})
		})

		convey.Convey("When only a city is configured", func() {
			_ = os.Setenv("WEATHER_LOCATION_CITY", "Vienna")

			cfg, err := config.Load("")

			convey.Convey("Then the default coordinates are dropped for geocoding", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Weather.City, convey.ShouldEqual, "Vienna")
				convey.So(cfg.Weather.Latitude, convey.ShouldBeNil)
				convey.So(cfg.Weather.Longitude, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the smoothing window is even", func() {
			_ = os.Setenv("PVF_PIPELINE__SMOOTH_WINDOW", "4")

			_, err := config.Load("")

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the store driver is unknown", func() {
			_ = os.Setenv("PVF_SOURCE__DRIVER", "mongo")

			_, err := config.Load("")

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})
	})
}
