package compute

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/soypat/gpix"
)

func allSamples() []byte {
	src := make([]byte, 256)
	for i := range src {
		src[i] = byte(i)
	}
	return src
}

func TestWidenNarrowRoundTrip(t *testing.T) {
	src := allSamples()
	for _, layout := range []gpix.Layout{gpix.LayoutPacked8, gpix.LayoutInt32, gpix.LayoutFloat32} {
		lanes := make([]byte, layout.DeviceSize(int64(len(src))))
		if err := Widen(lanes, src, layout); err != nil {
			t.Fatalf("%s: Widen: %v", layout, err)
		}
		got := make([]byte, len(src))
		if err := Narrow(got, lanes, layout); err != nil {
			t.Fatalf("%s: Narrow: %v", layout, err)
		}
		for i := range src {
			if got[i] != src[i] {
				t.Fatalf("%s: sample %d: got %d, want %d", layout, i, got[i], src[i])
			}
		}
	}
}

func TestWidenPreservesValue(t *testing.T) {
	src := allSamples()
	ints := make([]byte, 4*len(src))
	floats := make([]byte, 4*len(src))
	if err := Widen(ints, src, gpix.LayoutInt32); err != nil {
		t.Fatal(err)
	}
	if err := Widen(floats, src, gpix.LayoutFloat32); err != nil {
		t.Fatal(err)
	}
	for i, s := range src {
		if v := int32(binary.LittleEndian.Uint32(ints[4*i:])); v != int32(s) {
			t.Errorf("int32 lane %d: got %d, want %d", i, v, s)
		}
		if v := math.Float32frombits(binary.LittleEndian.Uint32(floats[4*i:])); v != float32(s) {
			t.Errorf("float32 lane %d: got %g, want %d", i, v, s)
		}
	}
}

func TestWidenZeroesPadding(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	dst := make([]byte, 64)
	for i := range dst {
		dst[i] = 0xff
	}
	if err := Widen(dst, src, gpix.LayoutInt32); err != nil {
		t.Fatal(err)
	}
	for i := 16; i < len(dst); i++ {
		if dst[i] != 0 {
			t.Fatalf("padding byte %d not zeroed: %d", i, dst[i])
		}
	}
}

func TestWidenShortDestination(t *testing.T) {
	err := Widen(make([]byte, 8), make([]byte, 4), gpix.LayoutFloat32)
	if !errors.Is(err, gpix.ErrInvalidBufferSize) {
		t.Fatalf("got %v, want ErrInvalidBufferSize", err)
	}
}

func TestConvertInvalidLayout(t *testing.T) {
	const bad = gpix.Layout(5)
	dst := []byte{7, 7, 7, 7}
	if err := Widen(dst, []byte{1, 2, 3, 4}, bad); err == nil {
		t.Error("Widen accepted invalid layout")
	}
	if err := Narrow(dst, make([]byte, 16), bad); err == nil {
		t.Error("Narrow accepted invalid layout")
	}
	for i, v := range dst {
		if v != 7 {
			t.Fatalf("byte %d modified to %d", i, v)
		}
	}
}

func TestNarrowClamps(t *testing.T) {
	ints := []int32{-5, 0, 64, 255, 256, 1 << 20}
	wantInts := []byte{0, 0, 64, 255, 255, 255}
	src := make([]byte, 4*len(ints))
	for i, v := range ints {
		binary.LittleEndian.PutUint32(src[4*i:], uint32(v))
	}
	got := make([]byte, len(ints))
	if err := Narrow(got, src, gpix.LayoutInt32); err != nil {
		t.Fatal(err)
	}
	for i := range got {
		if got[i] != wantInts[i] {
			t.Errorf("int32 %d: got %d, want %d", ints[i], got[i], wantInts[i])
		}
	}

	floats := []float32{-1, 0.4, 0.5, 63.5, 254.6, 300, float32(math.NaN())}
	wantFloats := []byte{0, 0, 1, 64, 255, 255, 0}
	src = make([]byte, 4*len(floats))
	for i, v := range floats {
		binary.LittleEndian.PutUint32(src[4*i:], math.Float32bits(v))
	}
	got = make([]byte, len(floats))
	if err := Narrow(got, src, gpix.LayoutFloat32); err != nil {
		t.Fatal(err)
	}
	for i := range got {
		if got[i] != wantFloats[i] {
			t.Errorf("float32 %g: got %d, want %d", floats[i], got[i], wantFloats[i])
		}
	}
}

func TestDecodeBins(t *testing.T) {
	src := make([]byte, 16)
	binary.LittleEndian.PutUint32(src[0:], 5)
	binary.LittleEndian.PutUint32(src[12:], 95)
	h := make(gpix.Histogram, 4)
	if err := decodeBins(h, src); err != nil {
		t.Fatal(err)
	}
	if h[0] != 5 || h[3] != 95 || h.Sum() != 100 {
		t.Fatalf("unexpected bins %v", h)
	}
	if err := decodeBins(make(gpix.Histogram, 5), src); !errors.Is(err, gpix.ErrInvalidBufferSize) {
		t.Fatalf("got %v, want ErrInvalidBufferSize", err)
	}
}
