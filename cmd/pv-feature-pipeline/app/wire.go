package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/i474232898/pv-feature-pipeline/internal/config"
	"github.com/i474232898/pv-feature-pipeline/internal/pipeline"
	"github.com/i474232898/pv-feature-pipeline/internal/series"
	"github.com/i474232898/pv-feature-pipeline/internal/sink"
	"github.com/i474232898/pv-feature-pipeline/internal/store"
	"github.com/i474232898/pv-feature-pipeline/internal/weather"
	"github.com/i474232898/pv-feature-pipeline/internal/weather/providers"
	"github.com/i474232898/pv-feature-pipeline/pkg/metrics"
)

// deps holds everything a command needs, built from the configuration.
type deps struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Manager
	store    store.Store
	redis    *redis.Client
	mqtt     *sink.MQTTPublisher
	pipeline *pipeline.Pipeline
	location weather.Location
}

func (d *deps) Close() {
	if d.mqtt != nil {
		d.mqtt.Close()
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.logger.Warn("closing redis", zap.Error(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("closing telemetry store", zap.Error(err))
		}
	}
}

// openStore connects the configured telemetry store.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Source.Driver {
	case "clickhouse":
		return store.NewClickHouseStore(ctx, store.ClickHouseConfig{
			Addr:     cfg.Source.ClickHouse.Addr,
			Database: cfg.Source.ClickHouse.Database,
			Username: cfg.Source.ClickHouse.Username,
			Password: cfg.Source.ClickHouse.Password,
		}, logger)
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.Source.PostgresDSN, logger)
	case "memory":
		s := store.NewMemoryStore(0)
		n, err := s.LoadFile(cfg.Source.MemoryPath, cfg.Run.InverterID)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.Source.MemoryPath, err)
		}
		logger.Info("loaded telemetry export", zap.String("path", cfg.Source.MemoryPath), zap.Int("records", n))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown telemetry driver %q", cfg.Source.Driver)
	}
}

// build wires the store, weather service, sinks and pipeline.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Manager) (*deps, error) {
	d := &deps{cfg: cfg, logger: logger, metrics: m}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	d.store = st

	httpClient := &http.Client{Timeout: cfg.Weather.HTTPTimeout}
	provs, err := providers.Build(cfg.Weather.Providers, httpClient, providers.Settings{
		ForecastDays:   cfg.Weather.ForecastDays,
		OpenMeteoURL:   cfg.Weather.OpenMeteoURL,
		WeatherAPIKey:  cfg.Weather.WeatherAPIKey,
		WeatherAPIURL:  cfg.Weather.WeatherAPIURL,
		OpenWeatherKey: cfg.Weather.OpenWeatherKey,
		OpenWeatherURL: cfg.Weather.OpenWeatherURL,
		BreakerTimeout: cfg.Weather.BreakerTimeout,
	})
	if err != nil {
		d.Close()
		return nil, err
	}

	svcOpts := []weather.ServiceOption{weather.WithLogger(logger)}
	if cfg.Weather.GeocoderKey != "" {
		svcOpts = append(svcOpts, weather.WithGeocoder(weather.NewGoogleGeocoder(cfg.Weather.GeocoderKey)))
	}
	if cfg.Redis.Addr != "" {
		client, err := store.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		d.redis = client
		svcOpts = append(svcOpts, weather.WithCache(store.NewForecastCache(client, cfg.Weather.CacheTTL)))
	}
	forecaster := weather.NewService(provs, svcOpts...)

	smoothCols, err := cfg.Pipeline.SmoothChannels()
	if err != nil {
		d.Close()
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithHorizon(cfg.Pipeline.Horizon),
		pipeline.WithSmoothing(cfg.Pipeline.SmoothWindow, smoothCols...),
		pipeline.WithWriter(sink.NewCSVWriter(cfg.Pipeline.OutputDir)),
		pipeline.WithPersist(cfg.Pipeline.Persist, cfg.Pipeline.PersistWeather, cfg.Pipeline.PersistFeatures),
	}
	grid, err := series.NewGrid(cfg.Pipeline.GridWidth)
	if err != nil {
		d.Close()
		return nil, err
	}
	opts = append(opts, pipeline.WithGrid(grid))

	if cfg.MQTT.Broker != "" {
		pub, err := sink.NewMQTTPublisher(sink.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
		}, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.mqtt = pub
		opts = append(opts, pipeline.WithPublisher(pub))
	}

	d.pipeline = pipeline.New(st, forecaster, opts...)
	d.location = weather.Location{
		Lat:      cfg.Weather.Latitude,
		Lon:      cfg.Weather.Longitude,
		City:     cfg.Weather.City,
		Country:  cfg.Weather.Country,
		Timezone: cfg.Weather.Timezone,
	}
	return d, nil
}
