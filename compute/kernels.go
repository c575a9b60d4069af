package compute

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/soypat/gpix"
)

var (
	//go:embed kernels/halve.wgsl
	halveWGSL string
	//go:embed kernels/histogram.wgsl
	histogramWGSL string
)

// Per-layout halving transforms. The alpha lane (index 3 of every pixel)
// passes through unchanged. Packed lanes hold a whole pixel with red in the
// lowest byte, so each color byte is shifted right and masked.
var halveTransforms = map[gpix.Layout]struct{ lane, fn string }{
	gpix.LayoutPacked8: {"u32", `
fn transform(i: u32, v: u32) -> u32 {
    return ((v >> 1u) & 0x007f7f7fu) | (v & 0xff000000u);
}`},
	gpix.LayoutInt32: {"i32", `
fn transform(i: u32, v: i32) -> i32 {
    if (i % 4u == 3u) {
        return v;
    }
    return v / 2;
}`},
	gpix.LayoutFloat32: {"f32", `
fn transform(i: u32, v: f32) -> f32 {
    if (i % 4u == 3u) {
        return v;
    }
    return floor(v / 2.0);
}`},
}

// HalveParamsSize is the size of the halve kernel's uniform parameter block.
const HalveParamsSize = 16

// HalveProgram returns the value-halving kernel for lanes of the given
// layout with a 1-D workgroup of workgroupSize threads. Each invocation
// handles one lane and invocations past the element count in the
// parameter block write nothing. Red, green and blue are halved; alpha is
// copied unchanged.
//
// Bindings: 0 input (read-only storage), 1 output (read-write storage),
// 2 parameters (uniform, see [Plan.Params]).
func HalveProgram(layout gpix.Layout, workgroupSize int) (*Program, error) {
	tr, ok := halveTransforms[layout]
	if !ok {
		return nil, fmt.Errorf("invalid layout %d", layout)
	} else if workgroupSize < 1 || workgroupSize > gpix.MaxWorkgroupSize {
		return nil, fmt.Errorf("%w: workgroup size %d", gpix.ErrInvalidDispatch, workgroupSize)
	}
	src := strings.Replace(halveWGSL, "// TRANSFORM_PLACEHOLDER", tr.fn, 1)
	src = strings.NewReplacer(
		"LANE", tr.lane,
		"WORKGROUP_SIZE", strconv.Itoa(workgroupSize),
	).Replace(src)
	return &Program{
		Label:         "halve-" + layout.String(),
		Source:        src,
		EntryPoint:    "main",
		WorkgroupSize: [3]uint32{uint32(workgroupSize), 1, 1},
		Bindings: BindGroupLayout{
			{Slot: 0, Kind: KindReadOnlyStorage},
			{Slot: 1, Kind: KindStorage},
			{Slot: 2, Kind: KindUniform},
		},
	}, nil
}

// HistogramProgram returns the luminance histogram kernel. One thread runs
// per pixel and increments one bin with an atomic add; the bin count is
// taken from the length of the bound bin buffer.
//
// Bindings: 0 bins (read-write storage of u32), 1 source (sampled 2-D texture).
func HistogramProgram() *Program {
	return &Program{
		Label:         "histogram",
		Source:        histogramWGSL,
		EntryPoint:    "main",
		WorkgroupSize: [3]uint32{1, 1, 1},
		Bindings: BindGroupLayout{
			{Slot: 0, Kind: KindStorage},
			{Slot: 1, Kind: KindSampledTexture},
		},
	}
}
