package compute

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/gpix"
)

// Resource attaches a buffer or texture to a binding slot.
type Resource struct {
	Slot    uint32
	Buffer  *DeviceBuffer
	Texture *DeviceTexture
}

// Buffer binds b to slot.
func Buffer(slot uint32, b *DeviceBuffer) Resource { return Resource{Slot: slot, Buffer: b} }

// Texture binds t to slot.
func Texture(slot uint32, t *DeviceTexture) Resource { return Resource{Slot: slot, Texture: t} }

// checkResources validates a one-to-one, in-order correspondence between
// resources and layout slots, including access mode against buffer usage.
func checkResources(layout BindGroupLayout, res []Resource) error {
	if len(res) != len(layout) {
		return fmt.Errorf("%w: %d resources for %d slots", gpix.ErrBindingLayoutMismatch, len(res), len(layout))
	}
	for i, e := range layout {
		r := res[i]
		if r.Slot != e.Slot {
			return fmt.Errorf("%w: resource %d bound to slot %d, want slot %d", gpix.ErrBindingLayoutMismatch, i, r.Slot, e.Slot)
		}
		if e.Kind == KindSampledTexture {
			if r.Texture == nil || r.Buffer != nil {
				return fmt.Errorf("%w: slot %d expects a texture", gpix.ErrBindingLayoutMismatch, e.Slot)
			}
			continue
		}
		if r.Buffer == nil || r.Texture != nil {
			return fmt.Errorf("%w: slot %d expects a buffer", gpix.ErrBindingLayoutMismatch, e.Slot)
		}
		var want Usage
		switch e.Kind {
		case KindReadOnlyStorage:
			want = UsageStorageRead
		case KindStorage:
			want = UsageStorageRead | UsageStorageWrite
		case KindUniform:
			want = UsageUniform
		}
		if err := requireUsage(r.Buffer.label, r.Buffer.usage, want); err != nil {
			return fmt.Errorf("%w: slot %d %s: %w", gpix.ErrBindingLayoutMismatch, e.Slot, e.Kind, err)
		}
	}
	return nil
}

// Pipeline is an immutable compute pipeline built from a [Program].
// It may be reused for any number of bind groups and dispatches.
type Pipeline struct {
	label     string
	layout    BindGroupLayout
	workgroup [3]uint32
	dev       *Device
	module    *wgpu.ShaderModule
	bgl       *wgpu.BindGroupLayout
	pl        *wgpu.PipelineLayout
	pipeline  *wgpu.ComputePipeline
}

// BindGroup connects a pipeline's slots to concrete resources. It refers to
// the exact buffer instances it was created with and must be rebuilt when
// any of them change.
type BindGroup struct {
	pipeline *Pipeline
	group    *wgpu.BindGroup
}

// Layout returns the pipeline's bind group layout.
func (p *Pipeline) Layout() BindGroupLayout { return p.layout }

// WorkgroupSize returns the declared workgroup size of the kernel.
func (p *Pipeline) WorkgroupSize() [3]uint32 { return p.workgroup }

// Build is BuildPipeline followed by Bind. layout must match the program's
// declared bindings.
func (d *Device) Build(prog *Program, layout BindGroupLayout, res ...Resource) (*Pipeline, *BindGroup, error) {
	if err := prog.Bindings.Match(layout); err != nil {
		return nil, nil, err
	}
	p, err := d.BuildPipeline(prog)
	if err != nil {
		return nil, nil, err
	}
	bg, err := p.Bind(res...)
	if err != nil {
		p.Release()
		return nil, nil, err
	}
	return p, bg, nil
}

// BuildPipeline validates prog on the host, compiles it on the device and
// creates an explicit bind group layout from its declared bindings.
func (d *Device) BuildPipeline(prog *Program) (_ *Pipeline, err error) {
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		label:     prog.Label,
		layout:    prog.Layout(),
		workgroup: prog.WorkgroupSize,
		dev:       d,
	}
	defer func() {
		if err != nil {
			p.Release()
		}
	}()
	p.module, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          prog.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: prog.Source},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", gpix.ErrShaderCompile, prog.Label, err)
	}
	p.bgl, err = d.device.CreateBindGroupLayout(p.layout.descriptor(prog.Label))
	if err != nil {
		return nil, fmt.Errorf("bind group layout: %w", err)
	}
	p.pl, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            prog.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.bgl},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline layout: %w", err)
	}
	p.pipeline, err = d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  prog.Label,
		Layout: p.pl,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     p.module,
			EntryPoint: prog.EntryPoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s pipeline: %v", gpix.ErrShaderCompile, prog.Label, err)
	}
	gpix.Logger().Debug("pipeline built", "program", prog.Label, "bindings", len(p.layout))
	return p, nil
}

// Bind creates a bind group for p. res must list one resource per layout
// slot in slot order with matching access modes.
func (p *Pipeline) Bind(res ...Resource) (*BindGroup, error) {
	if err := checkResources(p.layout, res); err != nil {
		return nil, fmt.Errorf("%s: %w", p.label, err)
	}
	entries := make([]wgpu.BindGroupEntry, len(res))
	for i, r := range res {
		entries[i].Binding = r.Slot
		if r.Texture != nil {
			if r.Texture.view == nil {
				return nil, fmt.Errorf("%s: texture %q used after release", p.label, r.Texture.label)
			}
			entries[i].TextureView = r.Texture.view
			continue
		}
		if r.Buffer.buf == nil {
			return nil, fmt.Errorf("%s: buffer %q used after release", p.label, r.Buffer.label)
		}
		entries[i].Buffer = r.Buffer.buf
		entries[i].Size = wgpu.WholeSize
	}
	group, err := p.dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.label,
		Layout:  p.bgl,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("bind group: %w", err)
	}
	return &BindGroup{pipeline: p, group: group}, nil
}

func (bg *BindGroup) Release() {
	if bg.group != nil {
		bg.group.Release()
		bg.group = nil
	}
}

func (p *Pipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.pl != nil {
		p.pl.Release()
		p.pl = nil
	}
	if p.bgl != nil {
		p.bgl.Release()
		p.bgl = nil
	}
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
}
