// Package config loads command line configuration from defaults, an
// optional YAML file, GPIX_ environment variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soypat/gpix"
	"github.com/spf13/viper"
)

// Config is the file and environment representation of the CLI settings.
type Config struct {
	Compute ComputeConfig `mapstructure:"compute"`
	Image   ImageConfig   `mapstructure:"image"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ComputeConfig struct {
	NumBins         int           `mapstructure:"num_bins"`
	WorkgroupSize   int           `mapstructure:"workgroup_size"`
	BufferSizeBytes uint64        `mapstructure:"buffer_size_bytes"`
	Layout          string        `mapstructure:"layout"`
	MapTimeout      time.Duration `mapstructure:"map_timeout"`
	// CPU runs the reference filters instead of acquiring a device.
	CPU bool `mapstructure:"cpu"`
}

type ImageConfig struct {
	// MaxDim downscales inputs whose larger side exceeds it. Zero disables.
	MaxDim int `mapstructure:"max_dim"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	def := gpix.DefaultConfig()
	return &Config{
		Compute: ComputeConfig{
			NumBins:       def.NumBins,
			WorkgroupSize: def.WorkgroupSize,
			Layout:        def.Layout.String(),
			MapTimeout:    def.MapTimeout,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load reads configuration into a Config. v may carry bound flags. An
// empty cfgFile searches $HOME/.gpix and the working directory for
// config.yaml; a missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".gpix"))
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("GPIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration, including the compute settings.
func (c *Config) Validate() error {
	if c.Image.MaxDim < 0 {
		return errors.New("image.max_dim must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	_, err := c.GPIX()
	return err
}

// GPIX converts the compute section to a validated [gpix.Config].
func (c *Config) GPIX() (gpix.Config, error) {
	layout, ok := gpix.ParseLayout(c.Compute.Layout)
	if !ok {
		return gpix.Config{}, fmt.Errorf("compute.layout must be one of packed8, int32, float32; got %q", c.Compute.Layout)
	}
	cfg := gpix.Config{
		NumBins:         c.Compute.NumBins,
		WorkgroupSize:   c.Compute.WorkgroupSize,
		BufferSizeBytes: c.Compute.BufferSizeBytes,
		Layout:          layout,
		MapTimeout:      c.Compute.MapTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return gpix.Config{}, fmt.Errorf("compute: %w", err)
	}
	return cfg, nil
}

// LogLevel parses logging.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("compute.num_bins", cfg.Compute.NumBins)
	v.SetDefault("compute.workgroup_size", cfg.Compute.WorkgroupSize)
	v.SetDefault("compute.buffer_size_bytes", cfg.Compute.BufferSizeBytes)
	v.SetDefault("compute.layout", cfg.Compute.Layout)
	v.SetDefault("compute.map_timeout", cfg.Compute.MapTimeout)
	v.SetDefault("compute.cpu", cfg.Compute.CPU)

	v.SetDefault("image.max_dim", cfg.Image.MaxDim)

	v.SetDefault("logging.level", cfg.Logging.Level)
}
