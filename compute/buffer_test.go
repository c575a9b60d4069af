package compute

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/gpix"
)

func TestUsageString(t *testing.T) {
	tests := []struct {
		u    Usage
		want string
	}{
		{0, "none"},
		{UsageStorageRead, "storage-read"},
		{UsageCopyDst | UsageMapRead, "copy-dst|map-read"},
		{UsageStorageRead | UsageStorageWrite | UsageCopySrc, "storage-read|storage-write|copy-src"},
	}
	for _, tc := range tests {
		if got := tc.u.String(); got != tc.want {
			t.Errorf("Usage(%d).String() = %q, want %q", tc.u, got, tc.want)
		}
	}
}

func TestUsageHas(t *testing.T) {
	u := UsageStorageRead | UsageCopySrc
	if !u.Has(UsageStorageRead) || !u.Has(UsageStorageRead|UsageCopySrc) {
		t.Error("expected flags present")
	}
	if u.Has(UsageStorageRead | UsageStorageWrite) {
		t.Error("partial flag set reported present")
	}
	if err := requireUsage("b", u, UsageMapRead); !errors.Is(err, gpix.ErrUsageMismatch) {
		t.Errorf("got %v, want ErrUsageMismatch", err)
	}
}

func TestUsageWGPU(t *testing.T) {
	got := (UsageStorageRead | UsageMapWriteAtCreation).wgpu()
	if got != wgpu.BufferUsageStorage {
		t.Errorf("read-only storage maps to %v", got)
	}
	got = (UsageCopyDst | UsageMapRead).wgpu()
	if got != wgpu.BufferUsageCopyDst|wgpu.BufferUsageMapRead {
		t.Errorf("staging maps to %v", got)
	}
}

func TestCheckSize(t *testing.T) {
	d := &Device{limits: Limits{MaxBufferSize: 1024, MaxStorageBufferBindingSize: 256}}
	tests := []struct {
		size    uint64
		storage bool
		ok      bool
	}{
		{0, false, false},
		{6, false, false},
		{4, false, true},
		{512, false, true},
		{512, true, false},
		{256, true, true},
		{2048, false, false},
	}
	for _, tc := range tests {
		err := d.checkSize("buf", tc.size, tc.storage)
		if tc.ok && err != nil {
			t.Errorf("checkSize(%d, %v): %v", tc.size, tc.storage, err)
		} else if !tc.ok && !errors.Is(err, gpix.ErrInvalidBufferSize) {
			t.Errorf("checkSize(%d, %v) = %v, want ErrInvalidBufferSize", tc.size, tc.storage, err)
		}
	}
}
