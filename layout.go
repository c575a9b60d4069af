package gpix

// Layout is the numeric representation of channel samples once they live in
// device memory. Compute kernels operate on 32-bit lanes so 8-bit samples are
// either packed four to a lane or widened to one lane each.
type Layout int

const (
	// LayoutPacked8 keeps the interleaved RGBA8888 bytes, one u32 lane per pixel.
	LayoutPacked8 Layout = iota
	// LayoutInt32 widens every sample to an i32 lane.
	LayoutInt32
	// LayoutFloat32 widens every sample to an f32 lane.
	LayoutFloat32
)

func (l Layout) String() string {
	switch l {
	case LayoutPacked8:
		return "packed8"
	case LayoutInt32:
		return "int32"
	case LayoutFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// ParseLayout parses the [Layout.String] representation.
func ParseLayout(s string) (Layout, bool) {
	for _, l := range []Layout{LayoutPacked8, LayoutInt32, LayoutFloat32} {
		if l.String() == s {
			return l, true
		}
	}
	return -1, false
}

func (l Layout) Valid() bool {
	return l >= LayoutPacked8 && l <= LayoutFloat32
}

// ElementWidth returns the size in bytes of a single device lane.
func (l Layout) ElementWidth() int {
	if !l.Valid() {
		return -1
	}
	return 4
}

// SamplesPerElement returns how many 8-bit samples fit one lane.
func (l Layout) SamplesPerElement() int {
	switch l {
	case LayoutPacked8:
		return 4
	case LayoutInt32, LayoutFloat32:
		return 1
	default:
		return -1
	}
}

// ElementCount returns the number of lanes needed to hold numSamples samples.
func (l Layout) ElementCount(numSamples int64) int64 {
	spe := int64(l.SamplesPerElement())
	if spe <= 0 {
		return -1
	}
	return (numSamples + spe - 1) / spe
}

// DeviceSize returns the byte size of the device buffer holding numSamples
// samples, or -1 for an invalid layout or negative sample count.
func (l Layout) DeviceSize(numSamples int64) int64 {
	if !l.Valid() || numSamples < 0 {
		return -1
	}
	return l.ElementCount(numSamples) * int64(l.ElementWidth())
}

// DefaultNumBins is the bin count of the luminance histogram.
const DefaultNumBins = 256

// Histogram holds one unsigned count per luminance bin.
type Histogram []uint32

// Sum returns the total count across all bins. For a histogram over a
// W×H image it equals W*H.
func (h Histogram) Sum() (total uint64) {
	for _, c := range h {
		total += uint64(c)
	}
	return total
}

// NonZero returns the indices of bins with at least one count.
func (h Histogram) NonZero() []int {
	var idx []int
	for i, c := range h {
		if c != 0 {
			idx = append(idx, i)
		}
	}
	return idx
}
