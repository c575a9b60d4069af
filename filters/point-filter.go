package filters

import (
	"image"

	"github.com/soypat/gpix"
)

// PointFunc processes a contiguous row of RGBA pixels.
// dst and src contain rowWidth pixels worth of bytes.
// The function should iterate through pixels: for i := 0; i < len(src); i += gpix.BytesPerPixel { ... }
type PointFunc func(dst, src []byte)

// PointFilter applies a per-pixel transformation using a callback function.
// It handles the iteration, buffering, and ROI logic common to all per-pixel filters.
// The callback is invoked once per row with contiguous pixel data.
type PointFilter struct {
	Fn    PointFunc
	Ctrls []gpix.Control // User-defined controls for this filter.
}

// Controls returns the filter's adjustable parameters.
func (f *PointFilter) Controls() []gpix.Control {
	return f.Ctrls
}

// Process writes the filtered src into dst, or into src itself when dst is
// nil. A non-nil roi restricts processing to that region and the output is
// roi sized.
func (f *PointFilter) Process(dst []byte, src gpix.Image, roi *image.Rectangle) (gpix.Dims, error) {
	if f.Fn == nil {
		return gpix.Dims{}, errNilPixelFunc
	}
	srcDims := src.Dims()

	// Calculate output dimensions based on ROI or full image.
	var outWidth, outHeight int
	if roi != nil {
		outWidth, outHeight = roi.Dx(), roi.Dy()
	} else {
		outWidth, outHeight = srcDims.Width, srcDims.Height
	}
	outStride := outWidth * gpix.BytesPerPixel
	if dst == nil {
		// In-place writes follow the source layout.
		outStride = srcDims.Stride
	}
	dstDims := gpix.Dims{
		Width:  outWidth,
		Height: outHeight,
		Stride: outStride,
	}

	dst, _, err := gpix.ValidateProcessArgs(dst, dstDims, src, roi)
	if err != nil {
		return gpix.Dims{}, err
	}

	// Determine source region to process.
	startX, startY := 0, 0
	endX, endY := srcDims.Width, srcDims.Height
	if roi != nil {
		startX, startY = roi.Min.X, roi.Min.Y
		endX, endY = roi.Max.X, roi.Max.Y
	}

	rowBuf := make([]byte, srcDims.SizeRow()) // Fallback buffer for ReadAt.
	for y := startY; y < endY; y++ {
		srcRow, err := gpix.ImageRow(rowBuf, src, y)
		if err != nil {
			return gpix.Dims{}, err
		}
		dstRowStart := (y - startY) * outStride
		srcStart := startX * gpix.BytesPerPixel
		srcEnd := endX * gpix.BytesPerPixel
		f.Fn(dst[dstRowStart:dstRowStart+outWidth*gpix.BytesPerPixel], srcRow[srcStart:srcEnd])
	}
	return dstDims, nil
}

var errNilPixelFunc = errorString("nil PixelFunc")

type errorString string

func (e errorString) Error() string { return string(e) }
