package gpix

import (
	"errors"
	"fmt"
	"image"
	"io"

	"golang.org/x/image/draw"
)

// BytesPerPixel is the size of one interleaved RGBA8888 pixel.
const BytesPerPixel = 4

// Image is a low-level, whole-buffer access abstraction of raw RGBA8888 memory.
// It does not do bounds abstraction. As made implicit by Dims signature, row spacing must be homogenous in images.
type Image interface {
	// Dims returns information on in-memory image structure.
	// Row spacing must be homogenous in entire image separated by stride bytes.
	Dims() Dims
	// ReadAt reads from the image buffer of pixels, which may be in-memory or elsewhere (disk, network).
	//
	// Users should always try casting [Image] to [ImageBuffered]
	// to see if they can work with the image in-memory which is more efficient.
	io.ReaderAt
}

type ImageBuffered interface {
	Image
	// Buffer returns the raw underlying buffer for images stored in memory.
	// Buffer returns the entire buffer or nil to signal buffer is currently not in memory.
	Buffer() []byte
}

// Dims describes the memory structure of an RGBA8888 image.
type Dims struct {
	Width  int
	Height int
	Stride int
}

func (d Dims) Validate() error {
	if d.Height <= 0 || d.Width <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", ErrInvalidImage, d.Width, d.Height)
	} else if d.SizeRow() > d.Stride {
		return fmt.Errorf("%w: stride smaller than pixel row size", ErrInvalidImage)
	}
	return nil
}

func (d Dims) NumPixels() int64 {
	return int64(d.Height) * int64(d.Width)
}

// NumSamples returns the number of 8-bit channel samples in the image.
func (d Dims) NumSamples() int64 {
	return d.NumPixels() * BytesPerPixel
}

// Size returns the readable section size of raw image in bytes.
func (d Dims) Size() int64 {
	if d.Height == 0 || d.Width == 0 {
		return 0
	}
	return int64(d.Height-1)*int64(d.Stride) + int64(d.SizeRow())
}

func (d Dims) SizeRow() int {
	return d.Width * BytesPerPixel
}

// PixelBuffer is a tightly packed, row-major, interleaved RGBA8888 image.
// len(Pix) == Width*Height*4 must hold for a valid buffer.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []byte
}

// NewPixelBuffer allocates a zeroed buffer of the given dimensions.
func NewPixelBuffer(width, height int) *PixelBuffer {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*BytesPerPixel),
	}
}

// Validate checks the PixelBuffer length invariant.
func (pb *PixelBuffer) Validate() error {
	if pb == nil {
		return fmt.Errorf("%w: nil pixel buffer", ErrInvalidImage)
	}
	if err := pb.Dims().Validate(); err != nil {
		return err
	}
	if want := pb.Dims().NumSamples(); int64(len(pb.Pix)) != want {
		return fmt.Errorf("%w: buffer length %d, want %d for %dx%d", ErrInvalidImage, len(pb.Pix), want, pb.Width, pb.Height)
	}
	return nil
}

// Dims implements [Image]. PixelBuffer rows are never padded.
func (pb *PixelBuffer) Dims() Dims {
	return Dims{Width: pb.Width, Height: pb.Height, Stride: pb.Width * BytesPerPixel}
}

// ReadAt implements [io.ReaderAt].
func (pb *PixelBuffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	} else if off >= int64(len(pb.Pix)) {
		return 0, io.EOF
	}
	n := copy(p, pb.Pix[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Buffer implements [ImageBuffered].
func (pb *PixelBuffer) Buffer() []byte { return pb.Pix }

// At returns the RGBA samples of pixel (x, y).
func (pb *PixelBuffer) At(x, y int) (r, g, b, a uint8) {
	i := (y*pb.Width + x) * BytesPerPixel
	return pb.Pix[i], pb.Pix[i+1], pb.Pix[i+2], pb.Pix[i+3]
}

// Set writes the RGBA samples of pixel (x, y).
func (pb *PixelBuffer) Set(x, y int, r, g, b, a uint8) {
	i := (y*pb.Width + x) * BytesPerPixel
	pb.Pix[i], pb.Pix[i+1], pb.Pix[i+2], pb.Pix[i+3] = r, g, b, a
}

// Fill sets every pixel to the same color.
func (pb *PixelBuffer) Fill(r, g, b, a uint8) {
	for i := 0; i+3 < len(pb.Pix); i += BytesPerPixel {
		pb.Pix[i], pb.Pix[i+1], pb.Pix[i+2], pb.Pix[i+3] = r, g, b, a
	}
}

// NRGBA returns an image sharing the buffer memory. Samples are treated as
// non-premultiplied, which is how decoded canvas pixel data is laid out.
func (pb *PixelBuffer) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    pb.Pix,
		Stride: pb.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, pb.Width, pb.Height),
	}
}

// FromImage converts any image into a tightly packed PixelBuffer.
// Tightly packed *image.NRGBA sources are copied without conversion.
func FromImage(img image.Image) *PixelBuffer {
	b := img.Bounds()
	pb := NewPixelBuffer(b.Dx(), b.Dy())
	if src, ok := img.(*image.NRGBA); ok && src.Stride == pb.Width*BytesPerPixel && src.Rect.Min == (image.Point{}) {
		copy(pb.Pix, src.Pix)
		return pb
	}
	draw.Draw(pb.NRGBA(), pb.NRGBA().Rect, img, b.Min, draw.Src)
	return pb
}

func ImageRow(dst []byte, img Image, row int) (resultSized []byte, err error) {
	d := img.Dims()
	err = d.Validate()
	if err != nil {
		return nil, err
	}
	rowLenBytes := d.SizeRow()
	if len(dst) < rowLenBytes {
		return nil, io.ErrShortBuffer
	} else if row < 0 || row >= d.Height {
		return nil, errors.New("row out of bounds")
	}
	off := int64(row) * int64(d.Stride)
	if buffered, ok := img.(ImageBuffered); ok {
		buf := buffered.Buffer()
		if buf != nil {
			return buf[off : off+int64(rowLenBytes)], nil
		}
	}
	resultSized = dst[:rowLenBytes]
	n, err := img.ReadAt(resultSized, off)
	if n != rowLenBytes {
		return nil, io.ErrShortWrite
	}
	return resultSized, nil
}

// ValidateProcessArgs gets correct write destination buffer and
// provides basic guarantees of inputs to a filter such as:
//   - Source [Dims.Validate] early validation. Always returned as called.
//   - Valid ROI argument.
//   - Valid input image for buffered in-place operations. In-place rejects non-nil ROI.
//   - For users who know the output stride and height offers checking of dst buffer size.
//     Use dstDims.Stride=0 to omit this check.
func ValidateProcessArgs(dst []byte, dstDims Dims, src Image, roi *image.Rectangle) (_ []byte, srcDims Dims, err error) {
	srcDims = src.Dims()
	if err = srcDims.Validate(); err != nil {
		return nil, srcDims, err
	}
	var requiredMinDstSize int64
	if roi != nil {
		if roi.Max.X < 0 || roi.Min.X < 0 || roi.Min.Y < 0 || roi.Max.Y < 0 {
			return nil, srcDims, errors.New("negative ROI")
		} else if roi.Max.X > srcDims.Width || roi.Max.Y > srcDims.Height {
			return nil, srcDims, errors.New("ROI exceeds image bounds")
		} else if roi.Empty() {
			return nil, srcDims, errors.New("empty ROI")
		}
		requiredMinDstSize = int64(dstDims.Stride) * int64(roi.Dy())
	} else {
		requiredMinDstSize = int64(dstDims.Stride) * int64(dstDims.Height)
	}
	if dst == nil {
		if roi != nil {
			return nil, srcDims, errors.New("in-place operation does not support ROI")
		}
		buffered, ok := src.(ImageBuffered)
		if !ok {
			return nil, srcDims, errors.New("src does not implement ImageBuffered for in-place op")
		}
		buf := buffered.Buffer()
		if buf == nil {
			return nil, srcDims, errors.New("src returned nil buffer on in-place op")
		} else if len(buf) < int(srcDims.Size()) {
			return nil, srcDims, errors.New("src ImageBuffered returned a buffer too small to represent complete image")
		}
		dst = buf
	}
	if int64(len(dst)) < requiredMinDstSize {
		return dst, srcDims, errors.New("destination buffer not large enough to store output")
	}
	return dst, srcDims, nil
}
