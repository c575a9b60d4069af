package filters

import "github.com/soypat/gpix"

// NewHalvePerPixel creates a filter that halves the color samples of every
// pixel with truncation. Alpha is left unchanged.
func NewHalvePerPixel() *PointFilter {
	return &PointFilter{
		Fn: func(dst, src []byte) {
			for i := 0; i < len(src); i += gpix.BytesPerPixel {
				dst[i] = src[i] / 2
				dst[i+1] = src[i+1] / 2
				dst[i+2] = src[i+2] / 2
				dst[i+3] = src[i+3]
			}
		},
	}
}
