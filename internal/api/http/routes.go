package httpapi

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/pv-feature-pipeline/internal/pipeline"
	"github.com/i474232898/pv-feature-pipeline/internal/sink"
	"github.com/i474232898/pv-feature-pipeline/internal/telemetry"
	"github.com/i474232898/pv-feature-pipeline/internal/weather"
	"github.com/i474232898/pv-feature-pipeline/pkg/metrics"
)

var validate = validator.New()

// Runner executes one pipeline pass.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Defaults fill the query parameters a caller leaves out.
type Defaults struct {
	InverterID string
	Window     time.Duration
	Location   weather.Location
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, runner Runner, defaults Defaults, m *metrics.Manager) {
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/features", func(c *fiber.Ctx) error {
		var q featuresQuery
		if err := q.bind(c, defaults); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := runner.Run(c.UserContext(), q.request())
		if err != nil {
			return mapRunError(err)
		}

		if q.Format == "csv" {
			var buf bytes.Buffer
			if err := sink.WriteCSV(&buf, res.Features); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to render features")
			}
			c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
			c.Set("X-Run-Id", res.RunID.String())
			return c.Send(buf.Bytes())
		}

		return c.JSON(fiber.Map{
			"from":     q.From,
			"to":       q.To,
			"features": sink.NewFeatureMessage(res.RunID.String(), q.InverterID, res.Features),
		})
	})
}

// Metrics returns a middleware counting requests per matched route.
func Metrics(m *metrics.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}
		m.RecordHTTPRequest(c.Route().Path, c.Method(), strconv.Itoa(status), time.Since(start))
		return err
	}
}

func mapRunError(err error) error {
	switch {
	case errors.Is(err, telemetry.ErrInvalidQuery), errors.Is(err, weather.ErrNoCoordinates):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, telemetry.ErrUpstream), errors.Is(err, weather.ErrUpstream),
		errors.Is(err, weather.ErrMalformedPayload):
		return fiber.NewError(fiber.StatusBadGateway, "upstream source failed")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to build features")
	}
}

// featuresQuery holds query parameters for the features endpoint.
type featuresQuery struct {
	InverterID string    `validate:"required"`
	From       time.Time `validate:"required"`
	To         time.Time `validate:"required,gtefield=From"`
	Format     string    `validate:"oneof=json csv"`
	Location   weather.Location
}

func (q featuresQuery) request() pipeline.Request {
	return pipeline.Request{
		InverterID: q.InverterID,
		From:       q.From,
		To:         q.To,
		Location:   q.Location,
	}
}

func (q *featuresQuery) bind(c *fiber.Ctx, d Defaults) error {
	q.InverterID = c.Query("inverter", d.InverterID)
	q.Format = c.Query("format", "json")

	fromStr := c.Query("from")
	if fromStr == "" {
		return errors.New("from query parameter is required")
	}
	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	q.From = from

	q.To = from.Add(d.Window)
	if toStr := c.Query("to"); toStr != "" {
		to, err := parseTime(toStr)
		if err != nil {
			return err
		}
		q.To = to
	}

	loc, err := parseLocation(c, d.Location)
	if err != nil {
		return err
	}
	q.Location = loc
	return nil
}

// parseLocation reads lat/lon or city/country, falling back to the default location.
func parseLocation(c *fiber.Ctx, def weather.Location) (weather.Location, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	city := c.Query("city")

	switch {
	case latStr != "" || lonStr != "":
		if latStr == "" || lonStr == "" {
			return weather.Location{}, errors.New("lat and lon must be given together")
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil || lat < -90 || lat > 90 {
			return weather.Location{}, errors.New("invalid lat")
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil || lon < -180 || lon > 180 {
			return weather.Location{}, errors.New("invalid lon")
		}
		return weather.Location{
			Lat:      &lat,
			Lon:      &lon,
			Timezone: c.Query("timezone", def.Timezone),
		}, nil
	case city != "":
		return weather.Location{
			City:     city,
			Country:  c.Query("country"),
			Timezone: c.Query("timezone", def.Timezone),
		}, nil
	default:
		return def, nil
	}
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
