package weather

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Service fetches hourly forecasts from the configured providers, averages
// them and optionally caches the result.
type Service struct {
	providers []Provider
	cache     Cache
	geocoder  Geocoder
	logger    *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache enables read-through caching of aggregated forecasts.
func WithCache(c Cache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithGeocoder resolves locations that only carry a city and country.
func WithGeocoder(g Geocoder) ServiceOption {
	return func(s *Service) { s.geocoder = g }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a new Service.
func NewService(providers []Provider, opts ...ServiceOption) *Service {
	s := &Service{
		providers: providers,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Forecast returns the aggregated hourly records for req. Providers are
// queried concurrently and once each; the first failure fails the call.
func (s *Service) Forecast(ctx context.Context, req Request) ([]Record, error) {
	if len(s.providers) == 0 {
		return nil, ErrNoProviders
	}

	loc, err := s.resolve(ctx, req.Location)
	if err != nil {
		return nil, err
	}
	req.Location = loc

	key := s.cacheKey(req)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("forecast cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			s.logger.Debug("forecast cache hit", zap.String("key", key), zap.Int("records", len(cached)))
			return cached, nil
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  = make([][]Record, len(s.providers))
		firstErr error
	)

	for i, p := range s.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()

			records, err := p.FetchHourly(ctx, req)
			if err != nil {
				s.logger.Error("provider fetch failed",
					zap.String("provider", p.Name()),
					zap.String("location", loc.Key()),
					zap.Error(err))
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: %s: %w", ErrUpstream, p.Name(), err)
				}
				mu.Unlock()
				return
			}
			results[i] = records
		}(i, p)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	records := AggregateHourly(results...)
	s.logger.Info("forecast fetched",
		zap.String("location", loc.Key()),
		zap.Int("providers", len(s.providers)),
		zap.Int("records", len(records)))

	if s.cache != nil && len(records) > 0 {
		if err := s.cache.Set(ctx, key, records); err != nil {
			s.logger.Warn("forecast cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return records, nil
}

func (s *Service) resolve(ctx context.Context, loc Location) (Location, error) {
	if loc.HasCoordinates() {
		return loc, nil
	}
	if s.geocoder == nil || loc.City == "" {
		return loc, ErrNoCoordinates
	}
	resolved, err := s.geocoder.Resolve(ctx, loc)
	if err != nil {
		return loc, fmt.Errorf("%w: geocode %s: %w", ErrUpstream, loc.Key(), err)
	}
	return resolved, nil
}

func (s *Service) cacheKey(req Request) string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	sort.Strings(names)

	key := "forecast:" + strings.Join(names, ",") + ":" + req.Location.Key()
	if !req.From.IsZero() {
		key += ":" + req.From.UTC().Format("2006010215") + "-" + req.To.UTC().Format("2006010215")
	}
	return key
}
