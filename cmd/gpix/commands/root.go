// Package commands implements the gpix command line.
package commands

import (
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	"github.com/soypat/gpix"
	"github.com/soypat/gpix/compute"
	"github.com/soypat/gpix/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	cfgFile string
	verbose bool
	v       = viper.New()
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gpix",
	Short: "GPU compute image filters",
	Long: `gpix runs per-pixel image kernels on a WebGPU compute device.

Images are read with EXIF orientation applied, uploaded to the device,
processed and read back through a staging buffer. Use --cpu to run the
reference implementation when no adapter is available.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gpix/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	pf.Bool("cpu", false, "run on the CPU instead of a compute device")
	pf.Int("max-dim", 0, "downscale images whose larger side exceeds this (0 disables)")
	pf.Int("workgroup-size", gpix.DefaultConfig().WorkgroupSize, "threads per workgroup")
	pf.Duration("map-timeout", gpix.DefaultConfig().MapTimeout, "readback map timeout")

	v.BindPFlag("compute.cpu", pf.Lookup("cpu"))
	v.BindPFlag("image.max_dim", pf.Lookup("max-dim"))
	v.BindPFlag("compute.workgroup_size", pf.Lookup("workgroup-size"))
	v.BindPFlag("compute.map_timeout", pf.Lookup("map-timeout"))
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	level, _ := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	gpix.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	if f := v.ConfigFileUsed(); f != "" {
		gpix.Logger().Debug("using config file", "path", f)
	}
	return nil
}

// openImage decodes path with EXIF orientation applied and fits it within
// the configured maximum dimension.
func openImage(path string) (*gpix.PixelBuffer, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	img = fitImage(img, cfg.Image.MaxDim)
	pb := gpix.FromImage(img)
	gpix.Logger().Debug("image loaded", "path", path, "width", pb.Width, "height", pb.Height)
	return pb, nil
}

func fitImage(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

// acquire returns a compute device, or nil when running on the CPU.
func acquire() (*compute.Device, error) {
	if cfg.Compute.CPU {
		return nil, nil
	}
	dev, err := compute.Acquire()
	if err != nil {
		return nil, fmt.Errorf("%w (use --cpu to run without a device)", err)
	}
	return dev, nil
}
