package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/soypat/gpix"
	"github.com/soypat/gpix/filters"
	"github.com/spf13/cobra"
)

var histogramCmd = &cobra.Command{
	Use:   "histogram <input>",
	Short: "Print the luminance histogram of an image",
	Long: `Histogram bins the Rec. 709 luminance of every pixel into equal-width
bins over [0, 1] and prints the non-empty bins as a bar chart.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistogram,
}

var barWidth int

func init() {
	histogramCmd.Flags().Int("bins", gpix.DefaultNumBins, "number of luminance bins")
	histogramCmd.Flags().IntVar(&barWidth, "width", 50, "width of the longest bar")
	v.BindPFlag("compute.num_bins", histogramCmd.Flags().Lookup("bins"))
	rootCmd.AddCommand(histogramCmd)
}

func runHistogram(cmd *cobra.Command, args []string) error {
	src, err := openImage(args[0])
	if err != nil {
		return err
	}
	h, err := histogram(cmd.Context(), src)
	if err != nil {
		return err
	}
	return writeHistogram(cmd.OutOrStdout(), h, barWidth)
}

func histogram(ctx context.Context, src *gpix.PixelBuffer) (gpix.Histogram, error) {
	gcfg, err := cfg.GPIX()
	if err != nil {
		return nil, err
	}
	dev, err := acquire()
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return filters.HistogramCPU(src, gcfg.NumBins)
	}
	defer dev.Release()
	f, err := filters.NewHistogramGPU(dev, gcfg)
	if err != nil {
		return nil, err
	}
	defer f.Cleanup()
	return f.Process(ctx, src)
}

// writeHistogram prints one line per non-empty bin with a bar scaled so the
// fullest bin spans width characters.
func writeHistogram(w io.Writer, h gpix.Histogram, width int) error {
	var peak uint32
	for _, c := range h {
		peak = max(peak, c)
	}
	fmt.Fprintf(w, "%d pixels in %d bins\n", h.Sum(), len(h))
	if peak == 0 {
		return nil
	}
	for _, i := range h.NonZero() {
		n := max(1, int(uint64(h[i])*uint64(width)/uint64(peak)))
		if _, err := fmt.Fprintf(w, "%5d %10d %s\n", i, h[i], strings.Repeat("#", n)); err != nil {
			return err
		}
	}
	return nil
}
