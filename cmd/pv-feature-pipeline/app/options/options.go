package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/i474232898/pv-feature-pipeline/internal/config"
)

// Options hold the command-line options of pv-feature-pipeline. Flags left
// at their zero value keep the loaded configuration.
type Options struct {
	// ConfigPath is the YAML file layered over the defaults.
	ConfigPath string

	LogLevel   string
	InverterID string
	From       string
	To         string
	Horizon    string
	Driver     string
	MemoryPath string
	OutputDir  string
	NoPersist  bool
	Preview    int
	Port       string

	// Config is the loaded configuration, set by Complete.
	Config *config.Config
}

// NewOptions builds an empty options.
func NewOptions() *Options {
	return &Options{Preview: -1}
}

// AddFlags adds flags to the specified FlagSet.
func (o *Options) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.ConfigPath, "config", "", "YAML config file; defaults to $PVF_CONFIG")
	flags.StringVar(&o.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&o.InverterID, "inverter", "", "inverter id to build features for")
	flags.StringVar(&o.From, "from", "", "window start, RFC3339 (inclusive)")
	flags.StringVar(&o.To, "to", "", "window end, RFC3339 (inclusive); defaults to from + run.duration")
	flags.StringVar(&o.Horizon, "horizon", "", "extend the weather window past the telemetry window, e.g. 6h")
	flags.StringVar(&o.Driver, "driver", "", "telemetry store: clickhouse, postgres or memory")
	flags.StringVar(&o.MemoryPath, "memory-path", "", "JSON document export read by the memory driver")
	flags.StringVar(&o.OutputDir, "output-dir", "", "directory for persisted tables")
	flags.BoolVar(&o.NoPersist, "no-persist", false, "do not write the normalized telemetry table")
	flags.IntVar(&o.Preview, "preview", o.Preview, "rows of the feature table to print; -1 keeps the config value")
	flags.StringVar(&o.Port, "port", "", "HTTP port for serve")
}

// Complete loads the configuration and applies the flags on top of it.
func (o *Options) Complete() error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}

	setString(&cfg.Log.Level, o.LogLevel)
	setString(&cfg.Run.InverterID, o.InverterID)
	setString(&cfg.Source.Driver, o.Driver)
	setString(&cfg.Source.MemoryPath, o.MemoryPath)
	setString(&cfg.Pipeline.OutputDir, o.OutputDir)
	setString(&cfg.HTTP.Port, o.Port)
	if o.NoPersist {
		cfg.Pipeline.Persist = false
	}
	if o.Preview >= 0 {
		cfg.Pipeline.PreviewRows = o.Preview
	}
	if o.Horizon != "" {
		h, err := time.ParseDuration(o.Horizon)
		if err != nil {
			return fmt.Errorf("--horizon: %w", err)
		}
		cfg.Pipeline.Horizon = h
	}

	if o.From != "" {
		cfg.Run.From = o.From
	}
	if o.To != "" {
		from, _, err := cfg.Run.Window()
		if err != nil {
			return err
		}
		to, err := time.Parse(time.RFC3339, o.To)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		cfg.Run.Duration = to.Sub(from)
	}

	o.Config = cfg
	return nil
}

// Validate all required options.
func (o *Options) Validate() error {
	if o.Config == nil {
		return fmt.Errorf("options are not completed")
	}
	return o.Config.Validate()
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
