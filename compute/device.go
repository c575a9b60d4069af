// Package compute implements the host side of a WebGPU compute dispatch:
// device acquisition, buffer marshalling, kernel programs, pipeline and bind
// group construction, dispatch scheduling and staging buffer readback.
//
// A typical transform runs:
//
//	dev, _ := compute.Acquire()
//	in, _ := dev.UploadInput(pixels, gpix.LayoutInt32)
//	out, _ := dev.AllocateOutput(in.Size())
//	staging, _ := dev.AllocateStaging(in.Size())
//	pipe, _ := dev.BuildPipeline(prog)
//	bg, _ := pipe.Bind(compute.Buffer(0, in), compute.Buffer(1, out), ...)
//	dev.Dispatch(pipe, bg, plan, &compute.Copy{Src: out, Dst: staging})
//	result, _ := compute.ResolvePixels(ctx, staging, width, height, gpix.LayoutInt32)
package compute

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/gpix"
)

// Limits are the device limits the marshaller and scheduler check against.
type Limits struct {
	MaxBufferSize                     uint64
	MaxStorageBufferBindingSize       uint64
	MaxComputeWorkgroupsPerDimension  uint32
	MaxComputeInvocationsPerWorkgroup uint32
	MaxTextureDimension2D             uint32
}

func limitsFrom(l wgpu.Limits) Limits {
	return Limits{
		MaxBufferSize:                     uint64(l.MaxBufferSize),
		MaxStorageBufferBindingSize:       uint64(l.MaxStorageBufferBindingSize),
		MaxComputeWorkgroupsPerDimension:  uint32(l.MaxComputeWorkgroupsPerDimension),
		MaxComputeInvocationsPerWorkgroup: uint32(l.MaxComputeInvocationsPerWorkgroup),
		MaxTextureDimension2D:             uint32(l.MaxTextureDimension2D),
	}
}

// Device is a compute-capable logical device and its single queue.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	limits   Limits
	name     string
}

// Acquire requests a high performance adapter and creates a device on it.
// It fails fast and never retries; the caller decides whether to try again.
func Acquire() (*Device, error) {
	log := gpix.Logger()
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, fmt.Errorf("create instance: %w", gpix.ErrPlatformUnsupported)
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil || adapter == nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %v", gpix.ErrAdapterUnavailable, err)
	}
	info := adapter.GetInfo()
	supported := adapter.GetLimits()

	// Only buffer sizes are raised above the defaults so large images fit.
	const maxv = 0xFFFFFFFF
	limits := wgpu.DefaultLimits()
	limits.MaxStorageBufferBindingSize = min(supported.Limits.MaxStorageBufferBindingSize, maxv)
	limits.MaxBufferSize = min(supported.Limits.MaxBufferSize, maxv)

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "gpix",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil || device == nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: %v", gpix.ErrDeviceCreationFailed, err)
	}
	log.Info("compute device acquired",
		"adapter", info.Name,
		"backend", info.BackendType.String(),
		"type", info.AdapterType.String(),
	)
	return &Device{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
		limits:   limitsFrom(limits),
		name:     info.Name,
	}, nil
}

// Wrap adopts a device created elsewhere, e.g. by a rendering system that
// already owns one. Release on the returned Device does not release device.
func Wrap(device *wgpu.Device, queue *wgpu.Queue) *Device {
	return &Device{
		device: device,
		queue:  queue,
		limits: limitsFrom(device.GetLimits().Limits),
		name:   "wrapped",
	}
}

// Name returns the adapter name.
func (d *Device) Name() string { return d.name }

// Limits returns the limits the device was created with.
func (d *Device) Limits() Limits { return d.limits }

// WGPU returns the underlying device and queue.
func (d *Device) WGPU() (*wgpu.Device, *wgpu.Queue) { return d.device, d.queue }

// Wait blocks until all submitted work has completed.
func (d *Device) Wait() {
	if d.device != nil {
		d.device.Poll(true, nil)
	}
}

// Release frees the device if it was created by [Acquire].
// Buffers created from d must be released beforehand by their owner.
func (d *Device) Release() {
	if d.instance == nil {
		return
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	d.instance.Release()
	d.instance = nil
}
