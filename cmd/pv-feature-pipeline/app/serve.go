package app

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/pv-feature-pipeline/internal/api/http"
)

const serviceName = "pv-feature-pipeline"

// newApp builds the Fiber app serving the feature endpoints.
func newApp(d *deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// A run fetches forecasts, so allow for the provider timeout on top.
		WriteTimeout: 10*time.Second + d.cfg.Weather.HTTPTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(httpapi.Metrics(d.metrics))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	httpapi.RegisterRoutes(app, d.pipeline, httpapi.Defaults{
		InverterID: d.cfg.Run.InverterID,
		Window:     d.cfg.Run.Duration,
		Location:   d.location,
	}, d.metrics)
	return app
}

// Serve listens on the configured port until ctx is cancelled.
func Serve(ctx context.Context, d *deps) error {
	app := newApp(d)
	addr := ":" + d.cfg.HTTP.Port

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		d.logger.Error("error during shutdown", zap.Error(err))
		return err
	}
	return nil
}
