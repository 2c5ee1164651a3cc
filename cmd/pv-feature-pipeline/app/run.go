package app

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/pv-feature-pipeline/internal/pipeline"
	"github.com/i474232898/pv-feature-pipeline/internal/sink"
)

// RunOnce builds the feature table for the configured window, prints a
// preview and pushes the run metrics.
func RunOnce(ctx context.Context, d *deps) error {
	from, to, err := d.cfg.Run.Window()
	if err != nil {
		return err
	}

	res, err := d.pipeline.Run(ctx, pipeline.Request{
		InverterID: d.cfg.Run.InverterID,
		From:       from,
		To:         to,
		Location:   d.location,
	})
	d.push()
	if err != nil {
		return err
	}

	d.logger.Info("feature table ready",
		zap.String("run_id", res.RunID.String()),
		zap.Int("rows", res.Features.Len()),
		zap.Int("columns", len(res.Features.Columns())))
	if d.cfg.Pipeline.PreviewRows > 0 {
		sink.Preview(os.Stdout, res.Features, d.cfg.Pipeline.PreviewRows)
	}
	return nil
}

// push sends the registry to the Pushgateway when one is configured.
func (d *deps) push() {
	url := d.cfg.Metrics.PushgatewayURL
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.metrics.Push(ctx, url, d.cfg.Metrics.Job); err != nil {
		d.logger.Warn("metrics push failed", zap.String("url", url), zap.Error(err))
	}
}
