// Package pipeline aligns inverter telemetry with weather forecasts and
// produces the feature table.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
	"github.com/i474232898/pv-feature-pipeline/internal/telemetry"
	"github.com/i474232898/pv-feature-pipeline/internal/weather"
	"github.com/i474232898/pv-feature-pipeline/pkg/metrics"
)

// Sink names used with the tabular writer.
const (
	WeatherTable  = "weather"
	FeaturesTable = "features"
)

// Stage labels reported to metrics.
const (
	stageFetch       = "fetch"
	stageNormalize   = "normalize"
	stageResample    = "resample"
	stageInterpolate = "interpolate"
	stageJoin        = "join"
	stageSmooth      = "smooth"
	stageSink        = "sink"
)

// Forecaster returns hourly weather records for a location.
type Forecaster interface {
	Forecast(ctx context.Context, req weather.Request) ([]weather.Record, error)
}

// Publisher ships the feature table of a run.
type Publisher interface {
	Publish(runID, inverterID string, s *series.Series) error
}

// Request describes one run.
type Request struct {
	InverterID string
	From       time.Time
	To         time.Time
	Location   weather.Location
}

// Validate checks the run window and inverter.
func (r Request) Validate() error {
	return r.query().Validate()
}

func (r Request) query() telemetry.Query {
	return telemetry.Query{InverterID: r.InverterID, From: r.From, To: r.To}
}

// Result carries every table a run produced.
type Result struct {
	RunID     uuid.UUID
	Telemetry *series.Series
	Weather   *series.Series
	Features  *series.Series
}

// Pipeline runs the alignment stages. It holds no per-run state, so one
// Pipeline may serve concurrent runs.
type Pipeline struct {
	source     telemetry.Source
	forecaster Forecaster

	grid          series.GridSpec
	smoothWindow  int
	smoothColumns []series.Channel
	horizon       time.Duration
	fill          series.FillPolicy

	writer          series.Writer
	persist         bool
	persistWeather  bool
	persistFeatures bool
	publisher       Publisher

	metrics *metrics.Manager
	logger  *zap.Logger
}

// New returns a pipeline reading telemetry from source and weather from forecaster.
func New(source telemetry.Source, forecaster Forecaster, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:       source,
		forecaster:   forecaster,
		grid:         series.FiveMinuteGrid,
		smoothWindow: 1,
		fill:         series.ZeroFill,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one pipeline pass for req.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	res, err := p.run(ctx, req)
	if err != nil {
		p.metrics.RecordRun(metrics.StatusFailure)
		return res, err
	}
	p.metrics.RecordRun(metrics.StatusSuccess)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request) (Result, error) {
	res := Result{RunID: uuid.New()}
	if err := req.Validate(); err != nil {
		return res, err
	}
	log := p.logger.With(
		zap.String("run_id", res.RunID.String()),
		zap.String("inverter", req.InverterID),
		zap.Time("from", req.From),
		zap.Time("to", req.To))

	records, forecast, err := p.fetch(ctx, req)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		return res, err
	}
	if len(records) == 0 {
		log.Warn("telemetry query returned no rows")
	}
	if n := telemetry.DroppedLines(records); n > 0 {
		log.Warn("line blocks beyond the supported count were ignored",
			zap.Int("max_lines", telemetry.MaxLines),
			zap.Int("dropped_blocks", n))
	}

	var (
		telemetrySeries, weatherSeries *series.Series
		stageErr                       error
	)

	p.stage(stageNormalize, func() {
		telemetrySeries, stageErr = telemetry.NormalizeWith(records, telemetry.Options{
			Persist: p.persist,
			Sink:    p.writer,
		})
	})
	if stageErr != nil {
		return res, stageErr
	}

	p.stage(stageResample, func() {
		telemetrySeries, stageErr = series.Resample(telemetrySeries, p.grid)
		if stageErr != nil {
			return
		}
		weatherSeries = weather.ToSeries(forecast).Clip(req.From, req.To.Add(p.horizon))
		weatherSeries, stageErr = series.Resample(weatherSeries, p.grid)
	})
	if stageErr != nil {
		return res, stageErr
	}
	p.metrics.SetRows("telemetry", telemetrySeries.Len())

	p.stage(stageInterpolate, func() {
		weatherSeries = series.Interpolate(weatherSeries)
	})
	p.metrics.SetRows("weather", weatherSeries.Len())
	res.Telemetry = telemetrySeries
	res.Weather = weatherSeries

	var features *series.Series
	p.stage(stageJoin, func() {
		features = series.Join(weatherSeries, telemetrySeries, series.WithFillPolicy(p.fill))
	})

	if p.smoothWindow > 1 && len(p.smoothColumns) > 0 {
		p.stage(stageSmooth, func() {
			features, stageErr = series.SmoothAll(features, p.smoothWindow, p.smoothColumns...)
		})
		if stageErr != nil {
			return res, stageErr
		}
	}
	p.metrics.SetRows("features", features.Len())
	res.Features = features

	p.stage(stageSink, func() {
		stageErr = p.emit(req, res)
	})
	if stageErr != nil {
		log.Error("sink failed", zap.Error(stageErr))
		return res, stageErr
	}

	log.Info("pipeline run finished",
		zap.Int("telemetry_rows", telemetrySeries.Len()),
		zap.Int("weather_rows", weatherSeries.Len()),
		zap.Int("feature_rows", features.Len()))
	return res, nil
}

// fetch queries the telemetry store and the forecaster concurrently.
func (p *Pipeline) fetch(ctx context.Context, req Request) ([]telemetry.Record, []weather.Record, error) {
	start := time.Now()
	defer func() { p.metrics.ObserveStage(stageFetch, time.Since(start)) }()

	var (
		wg                     sync.WaitGroup
		records                []telemetry.Record
		forecast               []weather.Record
		telemetryErr, weathErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		records, telemetryErr = p.source.Query(ctx, req.query())
	}()
	go func() {
		defer wg.Done()
		forecast, weathErr = p.forecaster.Forecast(ctx, weather.Request{
			Location: req.Location,
			From:     req.From,
			To:       req.To.Add(p.horizon),
		})
	}()
	wg.Wait()

	if telemetryErr != nil {
		p.metrics.RecordUpstreamError("telemetry")
		return nil, nil, fmt.Errorf("query telemetry: %w", telemetryErr)
	}
	if weathErr != nil {
		p.metrics.RecordUpstreamError("weather")
		return nil, nil, fmt.Errorf("fetch weather: %w", weathErr)
	}
	return records, forecast, nil
}

func (p *Pipeline) emit(req Request, res Result) error {
	if p.writer != nil {
		if p.persistWeather && res.Weather.Len() > 0 {
			if err := p.writer.WriteSeries(WeatherTable, res.Weather); err != nil {
				return fmt.Errorf("persist weather: %w", err)
			}
		}
		if p.persistFeatures && res.Features.Len() > 0 {
			if err := p.writer.WriteSeries(FeaturesTable, res.Features); err != nil {
				return fmt.Errorf("persist features: %w", err)
			}
		}
	}
	if p.publisher != nil && res.Features.Len() > 0 {
		if err := p.publisher.Publish(res.RunID.String(), req.InverterID, res.Features); err != nil {
			return fmt.Errorf("publish features: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) stage(name string, fn func()) {
	start := time.Now()
	fn()
	p.metrics.ObserveStage(name, time.Since(start))
}
