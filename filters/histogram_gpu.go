package filters

import (
	"context"
	"sync"

	"github.com/soypat/gpix"
	"github.com/soypat/gpix/compute"
)

// HistogramGPU computes luminance histograms with a compute kernel running
// one thread per pixel.
type HistogramGPU struct {
	mu    sync.Mutex
	dev   *compute.Device
	cfg   gpix.Config
	pipe  *compute.Pipeline
	ctrls []gpix.Control
}

// NewHistogramGPU creates a histogram filter on dev. dev is not owned by the filter.
func NewHistogramGPU(dev *compute.Device, cfg gpix.Config) (*HistogramGPU, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pipe, err := dev.BuildPipeline(compute.HistogramProgram())
	if err != nil {
		return nil, err
	}
	f := &HistogramGPU{dev: dev, cfg: cfg, pipe: pipe}
	f.ctrls = []gpix.Control{
		&gpix.ControlOrdered[int]{
			Name:        "Bins",
			Description: "Number of luminance histogram bins",
			Value:       cfg.NumBins,
			Min:         1,
			Max:         gpix.MaxNumBins,
			Step:        1,
			OnChange: func(v int) error {
				f.mu.Lock()
				f.cfg.NumBins = v
				f.mu.Unlock()
				return nil
			},
		},
	}
	return f, nil
}

func (f *HistogramGPU) Controls() []gpix.Control { return f.ctrls }

// Process returns the luminance histogram of src. The bin counts sum to the
// pixel count of src.
func (f *HistogramGPU) Process(ctx context.Context, src *gpix.PixelBuffer) (gpix.Histogram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dev == nil {
		return nil, errReleased
	} else if err := src.Validate(); err != nil {
		return nil, err
	}
	plan, err := compute.PlanGrid(src.Width, src.Height, f.dev.Limits().MaxComputeWorkgroupsPerDimension)
	if err != nil {
		return nil, err
	}
	tex, err := f.dev.UploadImage(src)
	if err != nil {
		return nil, err
	}
	defer tex.Release()

	numBins := f.cfg.NumBins
	size := uint64(4 * numBins)
	bins, err := f.dev.AllocateOutput(size)
	if err != nil {
		return nil, err
	}
	defer bins.Release()
	staging, err := f.dev.AllocateStaging(size)
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	bg, err := f.pipe.Bind(compute.Buffer(0, bins), compute.Texture(1, tex))
	if err != nil {
		return nil, err
	}
	defer bg.Release()
	if _, err := f.dev.Dispatch(f.pipe, bg, plan, &compute.Copy{Src: bins, Dst: staging}); err != nil {
		return nil, err
	}

	ctx, cancel := mapContext(ctx, f.cfg.MapTimeout)
	defer cancel()
	return compute.ResolveHistogram(ctx, staging, numBins)
}

// Cleanup releases the pipeline. The device is left to its owner.
func (f *HistogramGPU) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pipe != nil {
		f.pipe.Release()
		f.pipe = nil
	}
	f.dev = nil
}
