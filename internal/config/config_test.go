package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soypat/gpix"
	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	gcfg, err := cfg.GPIX()
	if err != nil {
		t.Fatal(err)
	}
	if gcfg != gpix.DefaultConfig() {
		t.Errorf("got %+v, want defaults", gcfg)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpix.yaml")
	data := []byte(`compute:
  num_bins: 16
  layout: float32
  map_timeout: 250ms
image:
  max_dim: 1024
logging:
  level: debug
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GPIX_COMPUTE_WORKGROUP_SIZE", "128")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatal(err)
	}
	gcfg, err := cfg.GPIX()
	if err != nil {
		t.Fatal(err)
	}
	if gcfg.NumBins != 16 || gcfg.Layout != gpix.LayoutFloat32 || gcfg.MapTimeout != 250*time.Millisecond {
		t.Errorf("file values not applied: %+v", gcfg)
	}
	if gcfg.WorkgroupSize != 128 {
		t.Errorf("env workgroup size not applied: %d", gcfg.WorkgroupSize)
	}
	if cfg.Image.MaxDim != 1024 {
		t.Errorf("max dim = %d", cfg.Image.MaxDim)
	}
	if level, _ := cfg.LogLevel(); level != slog.LevelDebug {
		t.Errorf("level = %v", level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"layout", func(c *Config) { c.Compute.Layout = "float64" }},
		{"bins", func(c *Config) { c.Compute.NumBins = 0 }},
		{"workgroup", func(c *Config) { c.Compute.WorkgroupSize = 1024 }},
		{"max dim", func(c *Config) { c.Image.MaxDim = -1 }},
		{"level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tc := range tests {
		cfg := DefaultConfig()
		tc.mod(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config: %v", err)
	}
}
