package commands

import (
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/soypat/gpix"
	"github.com/soypat/gpix/filters"
	"github.com/spf13/cobra"
)

var halveCmd = &cobra.Command{
	Use:   "halve <input> <output>",
	Short: "Halve the color values of an image",
	Long: `Halve divides the red, green and blue samples of every pixel by two and
keeps alpha. The output format follows the output file extension.`,
	Args: cobra.ExactArgs(2),
	RunE: runHalve,
}

func init() {
	halveCmd.Flags().String("layout", gpix.DefaultConfig().Layout.String(), "device lane layout: packed8, int32 or float32")
	halveCmd.Flags().Uint64("buffer-size", 0, "device buffer size in bytes (0 derives it from the image)")
	v.BindPFlag("compute.layout", halveCmd.Flags().Lookup("layout"))
	v.BindPFlag("compute.buffer_size_bytes", halveCmd.Flags().Lookup("buffer-size"))
	rootCmd.AddCommand(halveCmd)
}

func runHalve(cmd *cobra.Command, args []string) error {
	src, err := openImage(args[0])
	if err != nil {
		return err
	}
	dst, err := halve(cmd.Context(), src)
	if err != nil {
		return err
	}
	if err := imaging.Save(dst.NRGBA(), args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d)\n", args[1], dst.Width, dst.Height)
	return nil
}

func halve(ctx context.Context, src *gpix.PixelBuffer) (*gpix.PixelBuffer, error) {
	gcfg, err := cfg.GPIX()
	if err != nil {
		return nil, err
	}
	dev, err := acquire()
	if err != nil {
		return nil, err
	}
	if dev == nil {
		dst := gpix.NewPixelBuffer(src.Width, src.Height)
		_, err := filters.NewHalvePerPixel().Process(dst.Pix, src, nil)
		return dst, err
	}
	defer dev.Release()
	f, err := filters.NewHalveGPU(dev, gcfg)
	if err != nil {
		return nil, err
	}
	defer f.Cleanup()
	return f.Process(ctx, src)
}
