package compute

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/naga"
	"github.com/soypat/gpix"
)

func TestBuiltinProgramsValidate(t *testing.T) {
	for _, layout := range []gpix.Layout{gpix.LayoutPacked8, gpix.LayoutInt32, gpix.LayoutFloat32} {
		for _, wg := range []int{1, 64, 256} {
			prog, err := HalveProgram(layout, wg)
			if err != nil {
				t.Fatalf("HalveProgram(%s, %d): %v", layout, wg, err)
			}
			if err := prog.Validate(); err != nil {
				t.Errorf("halve %s wg=%d: %v", layout, wg, err)
			}
			if prog.Invocations() != uint32(wg) {
				t.Errorf("invocations = %d, want %d", prog.Invocations(), wg)
			}
		}
	}
	if err := HistogramProgram().Validate(); err != nil {
		t.Errorf("histogram: %v", err)
	}
}

func TestHalveProgramInvalid(t *testing.T) {
	if _, err := HalveProgram(gpix.Layout(42), 64); err == nil {
		t.Error("expected error for unknown layout")
	}
	if _, err := HalveProgram(gpix.LayoutInt32, 0); !errors.Is(err, gpix.ErrInvalidDispatch) {
		t.Errorf("zero workgroup: got %v", err)
	}
	if _, err := HalveProgram(gpix.LayoutInt32, gpix.MaxWorkgroupSize+1); !errors.Is(err, gpix.ErrInvalidDispatch) {
		t.Errorf("oversized workgroup: got %v", err)
	}
}

func TestProgramCompileError(t *testing.T) {
	prog := HistogramProgram()
	prog.Source = strings.Replace(prog.Source, "atomicAdd", "atomicAdd(", 1)
	if err := prog.Validate(); !errors.Is(err, gpix.ErrShaderCompile) {
		t.Fatalf("got %v, want ErrShaderCompile", err)
	}
}

func TestProgramEntryPointMismatch(t *testing.T) {
	prog := HistogramProgram()
	prog.EntryPoint = "histogram"
	if err := prog.Validate(); !errors.Is(err, gpix.ErrShaderCompile) {
		t.Fatalf("got %v, want ErrShaderCompile", err)
	}
	prog = HistogramProgram()
	prog.WorkgroupSize = [3]uint32{8, 8, 1}
	if err := prog.Validate(); !errors.Is(err, gpix.ErrShaderCompile) {
		t.Fatalf("workgroup mismatch: got %v, want ErrShaderCompile", err)
	}
}

func TestProgramBindingMismatch(t *testing.T) {
	tests := []struct {
		name     string
		bindings BindGroupLayout
	}{
		{"missing uniform", BindGroupLayout{{0, KindReadOnlyStorage}, {1, KindStorage}}},
		{"wrong access", BindGroupLayout{{0, KindStorage}, {1, KindStorage}, {2, KindUniform}}},
		{"wrong slot", BindGroupLayout{{0, KindReadOnlyStorage}, {1, KindStorage}, {3, KindUniform}}},
		{"extra slot", BindGroupLayout{{0, KindReadOnlyStorage}, {1, KindStorage}, {2, KindUniform}, {3, KindStorage}}},
	}
	for _, tc := range tests {
		prog, err := HalveProgram(gpix.LayoutFloat32, 64)
		if err != nil {
			t.Fatal(err)
		}
		prog.Bindings = tc.bindings
		if err := prog.Validate(); !errors.Is(err, gpix.ErrBindingLayoutMismatch) {
			t.Errorf("%s: got %v, want ErrBindingLayoutMismatch", tc.name, err)
		}
	}
}

func TestProgramLayoutIsCopy(t *testing.T) {
	prog := HistogramProgram()
	l := prog.Layout()
	l[0].Kind = KindUniform
	if prog.Bindings[0].Kind != KindStorage {
		t.Fatal("Layout returned aliased slice")
	}
}

func TestSourceBindings(t *testing.T) {
	const src = `
@group(0) @binding(3) var img: texture_2d<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<u32>;
@group(0) @binding(0) var<storage, read> src: array<u32>;
@group(0) @binding(2) var<uniform> params: vec4<u32>;
@group(1) @binding(0) var<storage, read> other: array<u32>;

@compute @workgroup_size(1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	let d = textureDimensions(img);
	dst[id.x] = src[id.x] + params.x + other[0] + d.x;
}
`
	ast, err := naga.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		t.Fatal(err)
	}
	got, err := sourceBindings(module)
	if err != nil {
		t.Fatal(err)
	}
	want := BindGroupLayout{
		{Slot: 0, Kind: KindReadOnlyStorage},
		{Slot: 1, Kind: KindStorage},
		{Slot: 2, Kind: KindUniform},
		{Slot: 3, Kind: KindSampledTexture},
	}
	if err := want.Match(got); err != nil {
		t.Fatalf("bindings %v: %v", got, err)
	}
}
