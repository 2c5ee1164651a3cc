package app

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/pv-feature-pipeline/cmd/pv-feature-pipeline/app/options"
	"github.com/i474232898/pv-feature-pipeline/pkg/logger"
	"github.com/i474232898/pv-feature-pipeline/pkg/metrics"
)

// NewRootCommand creates the pv-feature-pipeline command. Without a
// subcommand it performs a single run.
func NewRootCommand(ctx context.Context) *cobra.Command {
	opts := options.NewOptions()

	cmd := &cobra.Command{
		Use:   "pv-feature-pipeline",
		Short: "Align inverter telemetry with weather forecasts into a feature table",
		Long: `pv-feature-pipeline reads inverter telemetry, fetches weather forecasts for
the site, aligns both on a fixed grid and writes the resulting feature table.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(ctx, opts, func(d *deps) error {
				return RunOnce(ctx, d)
			})
		},
	}
	opts.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newRunCommand(ctx, opts),
		newServeCommand(ctx, opts),
		newImportCommand(ctx, opts),
	)
	return cmd
}

func newRunCommand(ctx context.Context, opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Build the feature table once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(ctx, opts, func(d *deps) error {
				return RunOnce(ctx, d)
			})
		},
	}
}

func newServeCommand(ctx context.Context, opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the feature table over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(ctx, opts, func(d *deps) error {
				return Serve(ctx, d)
			})
		},
	}
}

func newImportCommand(ctx context.Context, opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <export.json>",
		Short: "Insert a JSON telemetry export into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(ctx, opts, func(d *deps) error {
				return Import(ctx, d, args[0])
			})
		},
	}
}

// withDeps completes the options, wires the dependencies and releases them
// once fn returns.
func withDeps(ctx context.Context, opts *options.Options, fn func(*deps) error) error {
	if err := opts.Complete(); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	cfg := opts.Config

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	m := metrics.NewManager(metrics.WithMetricsEnabled(cfg.Metrics.Enabled))

	d, err := build(ctx, cfg, log, m)
	if err != nil {
		log.Error("wiring failed", zap.Error(err))
		return err
	}
	defer d.Close()

	return fn(d)
}
