package gpix

import (
	"fmt"
	"time"
)

// Limits on configuration knobs. MaxWorkgroupSize is the WebGPU default for
// maxComputeInvocationsPerWorkgroup.
const (
	MaxWorkgroupSize = 256
	MaxNumBins       = 1 << 16
)

// Config holds the tunables of the compute pipeline.
type Config struct {
	// NumBins is the number of luminance histogram bins.
	NumBins int
	// WorkgroupSize is the 1-D workgroup size of transform kernels.
	WorkgroupSize int
	// BufferSizeBytes overrides the device buffer size of transform kernels.
	// Zero derives the size from the pixel payload. A non-zero value smaller
	// than the payload is rejected.
	BufferSizeBytes uint64
	// Layout is the lane representation used by transform kernels.
	Layout Layout
	// MapTimeout bounds the wait for a staging buffer map confirmation.
	// Zero waits until the context is done.
	MapTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		NumBins:       DefaultNumBins,
		WorkgroupSize: 64,
		Layout:        LayoutInt32,
		MapTimeout:    5 * time.Second,
	}
}

func (c Config) Validate() error {
	switch {
	case c.NumBins < 1 || c.NumBins > MaxNumBins:
		return fmt.Errorf("num bins %d out of range 1..%d", c.NumBins, MaxNumBins)
	case c.WorkgroupSize < 1 || c.WorkgroupSize > MaxWorkgroupSize:
		return fmt.Errorf("workgroup size %d out of range 1..%d", c.WorkgroupSize, MaxWorkgroupSize)
	case !c.Layout.Valid():
		return fmt.Errorf("invalid layout %d", c.Layout)
	case c.MapTimeout < 0:
		return fmt.Errorf("negative map timeout %v", c.MapTimeout)
	}
	return nil
}

// Controls returns editable controls bound to c's fields.
func (c *Config) Controls() []Control {
	return []Control{
		&ControlOrdered[int]{
			Name:        "Bins",
			Description: "Number of luminance histogram bins",
			Value:       c.NumBins,
			Min:         1,
			Max:         MaxNumBins,
			Step:        1,
			OnChange: func(v int) error {
				c.NumBins = v
				return nil
			},
		},
		&ControlOrdered[int]{
			Name:        "Workgroup Size",
			Description: "Threads per workgroup of transform kernels",
			Value:       c.WorkgroupSize,
			Min:         1,
			Max:         MaxWorkgroupSize,
			Step:        1,
			OnChange: func(v int) error {
				c.WorkgroupSize = v
				return nil
			},
		},
		&ControlEnum[Layout]{
			Name:        "Lane Layout",
			Description: "Numeric representation of samples in device memory",
			Value:       c.Layout,
			ValidValues: []Layout{LayoutPacked8, LayoutInt32, LayoutFloat32},
			OnChange: func(l Layout) error {
				c.Layout = l
				return nil
			},
		},
	}
}
