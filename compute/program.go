package compute

import (
	"fmt"
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/soypat/gpix"
)

// ResourceKind is the kind and access mode of a bound resource.
type ResourceKind int

const (
	KindReadOnlyStorage ResourceKind = iota
	KindStorage
	KindUniform
	KindSampledTexture
)

func (k ResourceKind) String() string {
	switch k {
	case KindReadOnlyStorage:
		return "read-only-storage"
	case KindStorage:
		return "read-write-storage"
	case KindUniform:
		return "uniform"
	case KindSampledTexture:
		return "sampled-texture"
	default:
		return "unknown"
	}
}

// LayoutEntry declares a single binding slot. Visibility is always the
// compute stage.
type LayoutEntry struct {
	Slot uint32
	Kind ResourceKind
}

// BindGroupLayout is the ordered list of slots of bind group 0.
type BindGroupLayout []LayoutEntry

// Match returns an error wrapping [gpix.ErrBindingLayoutMismatch] if l and
// other differ in binding count, slot index or access mode.
func (l BindGroupLayout) Match(other BindGroupLayout) error {
	if len(l) != len(other) {
		return fmt.Errorf("%w: %d bindings, want %d", gpix.ErrBindingLayoutMismatch, len(other), len(l))
	}
	for i := range l {
		if l[i] != other[i] {
			return fmt.Errorf("%w: entry %d is slot %d %s, want slot %d %s", gpix.ErrBindingLayoutMismatch,
				i, other[i].Slot, other[i].Kind, l[i].Slot, l[i].Kind)
		}
	}
	return nil
}

func (l BindGroupLayout) descriptor(label string) *wgpu.BindGroupLayoutDescriptor {
	entries := make([]wgpu.BindGroupLayoutEntry, len(l))
	for i, e := range l {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    e.Slot,
			Visibility: wgpu.ShaderStageCompute,
		}
		switch e.Kind {
		case KindReadOnlyStorage:
			entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
		case KindStorage:
			entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
		case KindUniform:
			entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
		case KindSampledTexture:
			entry.Texture = wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			}
		}
		entries[i] = entry
	}
	return &wgpu.BindGroupLayoutDescriptor{Label: label, Entries: entries}
}

// Program is a compute kernel: WGSL source, entry point, declared workgroup
// size and declared bindings. Programs are stateless and may be reused
// across any number of pipelines and dispatches.
type Program struct {
	Label         string
	Source        string
	EntryPoint    string
	WorkgroupSize [3]uint32
	Bindings      BindGroupLayout
}

// Layout returns a copy of the declared bindings.
func (p *Program) Layout() BindGroupLayout { return slices.Clone(p.Bindings) }

// Invocations returns the number of threads per workgroup.
func (p *Program) Invocations() uint32 {
	return p.WorkgroupSize[0] * p.WorkgroupSize[1] * p.WorkgroupSize[2]
}

// Validate compiles the source on the host and checks that the entry
// point, workgroup size and group 0 bindings in the source agree with the
// declarations. Compile failures wrap [gpix.ErrShaderCompile]; binding
// disagreements wrap [gpix.ErrBindingLayoutMismatch].
func (p *Program) Validate() error {
	ast, err := naga.Parse(p.Source)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", gpix.ErrShaderCompile, p.Label, err)
	}
	module, err := naga.LowerWithSource(ast, p.Source)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", gpix.ErrShaderCompile, p.Label, err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", gpix.ErrShaderCompile, p.Label, err)
	} else if len(verrs) > 0 {
		return fmt.Errorf("%w: %s: %v", gpix.ErrShaderCompile, p.Label, &verrs[0])
	}

	idx := slices.IndexFunc(module.EntryPoints, func(ep ir.EntryPoint) bool {
		return ep.Name == p.EntryPoint && ep.Stage == ir.StageCompute
	})
	if idx < 0 {
		return fmt.Errorf("%w: %s: no compute entry point %q", gpix.ErrShaderCompile, p.Label, p.EntryPoint)
	}
	if wg := module.EntryPoints[idx].Workgroup; wg != p.WorkgroupSize {
		return fmt.Errorf("%w: %s: source workgroup size %v, declared %v", gpix.ErrShaderCompile, p.Label, wg, p.WorkgroupSize)
	}

	declared, err := sourceBindings(module)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Label, err)
	}
	if err := p.Bindings.Match(declared); err != nil {
		return fmt.Errorf("%s: %w", p.Label, err)
	}
	return nil
}

// sourceBindings extracts the group 0 resource declarations of a lowered
// module, ordered by slot.
func sourceBindings(module *ir.Module) (BindGroupLayout, error) {
	var layout BindGroupLayout
	for _, v := range module.GlobalVariables {
		if v.Binding == nil || v.Binding.Group != 0 {
			continue
		}
		slot := v.Binding.Binding
		var kind ResourceKind
		switch {
		case v.Space == ir.SpaceStorage && v.Access == ir.StorageReadWrite:
			kind = KindStorage
		case v.Space == ir.SpaceStorage:
			kind = KindReadOnlyStorage
		case v.Space == ir.SpaceUniform:
			kind = KindUniform
		case v.Space == ir.SpaceHandle && isSampledImage(module, v.Type):
			kind = KindSampledTexture
		default:
			return nil, fmt.Errorf("%w: unsupported resource %q at slot %d", gpix.ErrBindingLayoutMismatch, v.Name, slot)
		}
		layout = append(layout, LayoutEntry{Slot: slot, Kind: kind})
	}
	slices.SortFunc(layout, func(a, b LayoutEntry) int { return int(a.Slot) - int(b.Slot) })
	return layout, nil
}

func isSampledImage(module *ir.Module, h ir.TypeHandle) bool {
	if int(h) >= len(module.Types) {
		return false
	}
	img, ok := module.Types[h].Inner.(ir.ImageType)
	return ok && img.Class == ir.ImageClassSampled
}
