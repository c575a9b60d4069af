package filters

import (
	"context"
	"sync"

	"github.com/soypat/gpix"
	"github.com/soypat/gpix/compute"
)

// HalveGPU halves the color samples of an image with a compute kernel.
// The pipeline is built once and rebuilt only when the lane layout or
// workgroup size changes. Safe for concurrent use; dispatches serialize.
type HalveGPU struct {
	mu    sync.Mutex
	dev   *compute.Device
	cfg   gpix.Config
	pipe  *compute.Pipeline
	built struct {
		layout gpix.Layout
		wg     int
	}
	ctrls []gpix.Control
}

// NewHalveGPU creates a halving filter on dev. dev is not owned by the filter.
func NewHalveGPU(dev *compute.Device, cfg gpix.Config) (*HalveGPU, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &HalveGPU{dev: dev, cfg: cfg}
	if err := f.ensurePipeline(); err != nil {
		return nil, err
	}
	f.ctrls = []gpix.Control{
		&gpix.ControlOrdered[int]{
			Name:        "Workgroup Size",
			Description: "Threads per workgroup",
			Value:       cfg.WorkgroupSize,
			Min:         1,
			Max:         gpix.MaxWorkgroupSize,
			Step:        1,
			OnChange: func(v int) error {
				f.mu.Lock()
				f.cfg.WorkgroupSize = v
				f.mu.Unlock()
				return nil
			},
		},
		&gpix.ControlEnum[gpix.Layout]{
			Name:        "Lane Layout",
			Description: "Numeric representation of samples in device memory",
			Value:       cfg.Layout,
			ValidValues: []gpix.Layout{gpix.LayoutPacked8, gpix.LayoutInt32, gpix.LayoutFloat32},
			OnChange: func(l gpix.Layout) error {
				f.mu.Lock()
				f.cfg.Layout = l
				f.mu.Unlock()
				return nil
			},
		},
	}
	return f, nil
}

// Controls returns the filter's adjustable parameters. Changes apply on the
// next call to Process.
func (f *HalveGPU) Controls() []gpix.Control { return f.ctrls }

func (f *HalveGPU) ensurePipeline() error {
	if f.pipe != nil && f.built.layout == f.cfg.Layout && f.built.wg == f.cfg.WorkgroupSize {
		return nil
	}
	prog, err := compute.HalveProgram(f.cfg.Layout, f.cfg.WorkgroupSize)
	if err != nil {
		return err
	}
	pipe, err := f.dev.BuildPipeline(prog)
	if err != nil {
		return err
	}
	if f.pipe != nil {
		f.pipe.Release()
	}
	f.pipe = pipe
	f.built.layout, f.built.wg = f.cfg.Layout, f.cfg.WorkgroupSize
	return nil
}

// Process halves src on the device and returns the result in a new buffer.
// ctx bounds the wait for the result together with the configured map timeout.
func (f *HalveGPU) Process(ctx context.Context, src *gpix.PixelBuffer) (*gpix.PixelBuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dev == nil {
		return nil, errReleased
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := f.ensurePipeline(); err != nil {
		return nil, err
	}
	layout := f.cfg.Layout
	samples := int64(len(src.Pix))

	in, err := f.dev.UploadInputSize(src, layout, f.cfg.BufferSizeBytes)
	if err != nil {
		return nil, err
	}
	defer in.Release()
	out, err := f.dev.AllocateOutput(in.Size())
	if err != nil {
		return nil, err
	}
	defer out.Release()
	payload := uint64(layout.DeviceSize(samples))
	staging, err := f.dev.AllocateStaging(payload)
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	plan, err := compute.PlanLinear(uint64(layout.ElementCount(samples)), uint32(f.cfg.WorkgroupSize),
		f.dev.Limits().MaxComputeWorkgroupsPerDimension)
	if err != nil {
		return nil, err
	}
	params, err := f.dev.UploadUniform("params", plan.Params())
	if err != nil {
		return nil, err
	}
	defer params.Release()

	bg, err := f.pipe.Bind(compute.Buffer(0, in), compute.Buffer(1, out), compute.Buffer(2, params))
	if err != nil {
		return nil, err
	}
	defer bg.Release()
	if _, err := f.dev.Dispatch(f.pipe, bg, plan, &compute.Copy{Src: out, Dst: staging, Size: payload}); err != nil {
		return nil, err
	}

	ctx, cancel := mapContext(ctx, f.cfg.MapTimeout)
	defer cancel()
	return compute.ResolvePixels(ctx, staging, src.Width, src.Height, layout)
}

// Cleanup releases the pipeline. The device is left to its owner.
func (f *HalveGPU) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pipe != nil {
		f.pipe.Release()
		f.pipe = nil
	}
	f.dev = nil
}
