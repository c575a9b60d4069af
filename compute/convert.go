package compute

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/soypat/gpix"
)

// Widen writes the 8-bit samples of src into dst as device lanes of layout.
// Values are preserved: 0..255 maps identically into i32 and f32 lanes.
// Lanes past the converted payload are zeroed.
func Widen(dst, src []byte, layout gpix.Layout) error {
	need := layout.DeviceSize(int64(len(src)))
	if need < 0 {
		return fmt.Errorf("invalid layout %d", layout)
	} else if int64(len(dst)) < need {
		return fmt.Errorf("%w: widen destination %d bytes, need %d", gpix.ErrInvalidBufferSize, len(dst), need)
	}
	switch layout {
	case gpix.LayoutPacked8:
		n := copy(dst, src)
		clear(dst[n:])
	case gpix.LayoutInt32:
		for i, s := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], uint32(int32(s)))
		}
		clear(dst[4*len(src):])
	case gpix.LayoutFloat32:
		for i, s := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(float32(s)))
		}
		clear(dst[4*len(src):])
	default:
		return fmt.Errorf("invalid layout %d", layout)
	}
	return nil
}

// Narrow converts device lanes of layout in src back to 8-bit samples,
// filling all of dst. Wide lanes are narrowed with clamp(round(v), 0, 255).
func Narrow(dst, src []byte, layout gpix.Layout) error {
	need := layout.DeviceSize(int64(len(dst)))
	if need < 0 {
		return fmt.Errorf("invalid layout %d", layout)
	} else if int64(len(src)) < need {
		return fmt.Errorf("%w: narrow source %d bytes, need %d", gpix.ErrInvalidBufferSize, len(src), need)
	}
	switch layout {
	case gpix.LayoutPacked8:
		copy(dst, src)
	case gpix.LayoutInt32:
		for i := range dst {
			dst[i] = narrowInt32(int32(binary.LittleEndian.Uint32(src[4*i:])))
		}
	case gpix.LayoutFloat32:
		for i := range dst {
			dst[i] = narrowFloat32(math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:])))
		}
	default:
		return fmt.Errorf("invalid layout %d", layout)
	}
	return nil
}

func narrowInt32(v int32) uint8 {
	return uint8(min(max(v, 0), 255))
}

func narrowFloat32(v float32) uint8 {
	if math32.IsNaN(v) {
		return 0
	}
	return uint8(min(max(math32.Round(v), 0), 255))
}

// decodeBins reads little-endian u32 bin counts.
func decodeBins(dst gpix.Histogram, src []byte) error {
	if len(src) < 4*len(dst) {
		return fmt.Errorf("%w: histogram source %d bytes, need %d", gpix.ErrInvalidBufferSize, len(src), 4*len(dst))
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(src[4*i:])
	}
	return nil
}
