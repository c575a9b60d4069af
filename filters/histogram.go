package filters

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gpix"
)

// Rec. 709 luma weights.
var lumaWeights = ms3.Vec{X: 0.2126, Y: 0.7152, Z: 0.0722}

// Luminance returns the relative luminance of an 8-bit color in [0, 1].
func Luminance(r, g, b uint8) float32 {
	c := ms3.Vec{X: float32(r) / 255, Y: float32(g) / 255, Z: float32(b) / 255}
	return math32.Max(0, math32.Min(1, ms3.Dot(c, lumaWeights)))
}

// LuminanceBin returns the bin of numBins equal-width bins over [0, 1] that
// the color falls in. Full luminance lands in the last bin.
func LuminanceBin(r, g, b uint8, numBins int) int {
	bin := int(math32.Floor(Luminance(r, g, b) * float32(numBins)))
	return min(bin, numBins-1)
}

// HistogramCPU computes the luminance histogram of src on the CPU. Rows are
// split across goroutines that accumulate into shared atomic bins, the same
// way the device kernel does.
func HistogramCPU(src gpix.Image, numBins int) (gpix.Histogram, error) {
	if numBins < 1 || numBins > gpix.MaxNumBins {
		return nil, fmt.Errorf("num bins %d out of range 1..%d", numBins, gpix.MaxNumBins)
	}
	dims := src.Dims()
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	bins := make([]atomic.Uint32, numBins)
	workers := min(runtime.GOMAXPROCS(0), dims.Height)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rowBuf := make([]byte, dims.SizeRow())
			for y := w; y < dims.Height; y += workers {
				row, err := gpix.ImageRow(rowBuf, src, y)
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
				for i := 0; i < len(row); i += gpix.BytesPerPixel {
					bins[LuminanceBin(row[i], row[i+1], row[i+2], numBins)].Add(1)
				}
			}
		}(w)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	h := make(gpix.Histogram, numBins)
	for i := range bins {
		h[i] = bins[i].Load()
	}
	return h, nil
}
