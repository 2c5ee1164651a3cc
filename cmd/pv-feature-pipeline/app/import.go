package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/i474232898/pv-feature-pipeline/internal/store"
)

// Import inserts the readings of a JSON export into the configured store.
func Import(ctx context.Context, d *deps, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := store.ReadExport(f, d.cfg.Run.InverterID)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := d.store.Insert(ctx, records); err != nil {
		return err
	}
	d.logger.Info("imported telemetry",
		zap.String("path", path),
		zap.String("driver", d.cfg.Source.Driver),
		zap.Int("records", len(records)))
	return nil
}
