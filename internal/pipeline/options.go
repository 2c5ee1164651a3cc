package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
	"github.com/i474232898/pv-feature-pipeline/pkg/metrics"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGrid sets the common grid both series are resampled onto.
func WithGrid(g series.GridSpec) Option {
	return func(p *Pipeline) { p.grid = g }
}

// WithSmoothing smooths cols of the feature table with a centered window.
func WithSmoothing(window int, cols ...series.Channel) Option {
	return func(p *Pipeline) {
		p.smoothWindow = window
		p.smoothColumns = append([]series.Channel(nil), cols...)
	}
}

// WithHorizon extends the weather window past the telemetry window.
func WithHorizon(d time.Duration) Option {
	return func(p *Pipeline) { p.horizon = d }
}

// WithFillPolicy replaces the zero fill applied after the join.
func WithFillPolicy(f series.FillPolicy) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.fill = f
		}
	}
}

// WithWriter sets the tabular sink.
func WithWriter(w series.Writer) Option {
	return func(p *Pipeline) { p.writer = w }
}

// WithPersist selects which tables are written to the tabular sink.
func WithPersist(telemetry, weather, features bool) Option {
	return func(p *Pipeline) {
		p.persist = telemetry
		p.persistWeather = weather
		p.persistFeatures = features
	}
}

// WithPublisher publishes every non-empty feature table.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithMetrics records stage timings and run outcomes.
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}
