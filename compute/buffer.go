package compute

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/gpix"
)

// Usage is the set of operations a device buffer may take part in. Every
// operation performed on a buffer is checked against its Usage; a missing
// flag fails with [gpix.ErrUsageMismatch] instead of degrading silently.
type Usage uint32

const (
	UsageStorageRead Usage = 1 << iota
	UsageStorageWrite
	UsageUniform
	UsageCopySrc
	UsageCopyDst
	UsageMapRead
	// UsageMapWriteAtCreation marks buffers filled through a host mapping at
	// creation. The mapping is released before the buffer is handed out.
	UsageMapWriteAtCreation
)

// Has reports whether u covers every flag in op.
func (u Usage) Has(op Usage) bool { return u&op == op }

func (u Usage) String() string {
	names := []string{"storage-read", "storage-write", "uniform", "copy-src", "copy-dst", "map-read", "map-write-at-creation"}
	var parts []string
	for i, name := range names {
		if u&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

func (u Usage) wgpu() (bu wgpu.BufferUsage) {
	if u&(UsageStorageRead|UsageStorageWrite) != 0 {
		bu |= wgpu.BufferUsageStorage
	}
	if u.Has(UsageUniform) {
		bu |= wgpu.BufferUsageUniform
	}
	if u.Has(UsageCopySrc) {
		bu |= wgpu.BufferUsageCopySrc
	}
	if u.Has(UsageCopyDst) {
		bu |= wgpu.BufferUsageCopyDst
	}
	if u.Has(UsageMapRead) {
		bu |= wgpu.BufferUsageMapRead
	}
	return bu
}

func requireUsage(label string, have, want Usage) error {
	if !have.Has(want) {
		return fmt.Errorf("%w: buffer %q has %s, needs %s", gpix.ErrUsageMismatch, label, have, want)
	}
	return nil
}

// DeviceBuffer is a device-bindable buffer. It is never host-mapped: the
// marshaller releases any creation mapping before returning it, so it may be
// attached to bind groups freely.
type DeviceBuffer struct {
	label string
	buf   *wgpu.Buffer
	size  uint64
	usage Usage
}

func (b *DeviceBuffer) Label() string { return b.label }
func (b *DeviceBuffer) Size() uint64  { return b.size }
func (b *DeviceBuffer) Usage() Usage  { return b.usage }

// Release frees the device memory. The buffer must not be used afterwards.
func (b *DeviceBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// StagingBuffer receives a copy of compute output for host reads. It cannot
// be bound to a pipeline. It is mapped only inside the readback resolver
// and at most once.
type StagingBuffer struct {
	dev      *Device
	label    string
	buf      *wgpu.Buffer
	size     uint64
	usage    Usage
	resolved bool
}

func (s *StagingBuffer) Label() string { return s.label }
func (s *StagingBuffer) Size() uint64  { return s.size }

// Release frees the device memory. The buffer must not be used afterwards.
func (s *StagingBuffer) Release() {
	if s.buf != nil {
		s.buf.Release()
		s.buf = nil
	}
}

// DeviceTexture is a read-only 2-D rgba8unorm image source.
type DeviceTexture struct {
	label  string
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	width  uint32
	height uint32
}

func (t *DeviceTexture) Label() string                { return t.label }
func (t *DeviceTexture) Size() (width, height uint32) { return t.width, t.height }

func (t *DeviceTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

// hostMapped is a buffer created with a host mapping. Only the marshaller
// holds one and it turns into a DeviceBuffer through unmap.
type hostMapped struct {
	b    DeviceBuffer
	data []byte
}

func (m *hostMapped) unmap() *DeviceBuffer {
	m.data = nil
	m.b.buf.Unmap()
	b := m.b
	m.b = DeviceBuffer{}
	return &b
}

// checkSize validates a buffer request against device limits.
// Mapped-at-creation and copy operations need 4 byte aligned sizes.
func (d *Device) checkSize(label string, size uint64, storage bool) error {
	maxSize := d.limits.MaxBufferSize
	if storage && d.limits.MaxStorageBufferBindingSize < maxSize {
		maxSize = d.limits.MaxStorageBufferBindingSize
	}
	switch {
	case size == 0:
		return fmt.Errorf("%w: %q zero sized", gpix.ErrInvalidBufferSize, label)
	case size%4 != 0:
		return fmt.Errorf("%w: %q size %d not a multiple of 4", gpix.ErrInvalidBufferSize, label, size)
	case maxSize != 0 && size > maxSize:
		return fmt.Errorf("%w: %q size %d exceeds device limit %d", gpix.ErrInvalidBufferSize, label, size, maxSize)
	}
	return nil
}

func (d *Device) createMapped(label string, size uint64, usage Usage) (*hostMapped, error) {
	usage |= UsageMapWriteAtCreation
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage.wgpu(),
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s buffer: %w", label, err)
	}
	return &hostMapped{
		b:    DeviceBuffer{label: label, buf: buf, size: size, usage: usage},
		data: buf.GetMappedRange(0, uint(size)),
	}, nil
}

// UploadInput converts pixels to layout and writes them into a new
// read-only storage buffer through the mapped-at-creation path. The buffer
// is sized to the lane count of layout, not the raw pixel byte count.
func (d *Device) UploadInput(pixels *gpix.PixelBuffer, layout gpix.Layout) (*DeviceBuffer, error) {
	return d.UploadInputSize(pixels, layout, 0)
}

// UploadInputSize is like [Device.UploadInput] with a caller chosen buffer
// size. size must be zero, for the derived size, or at least the derived
// size; trailing lanes are left zeroed.
func (d *Device) UploadInputSize(pixels *gpix.PixelBuffer, layout gpix.Layout, size uint64) (*DeviceBuffer, error) {
	if err := pixels.Validate(); err != nil {
		return nil, err
	} else if !layout.Valid() {
		return nil, fmt.Errorf("invalid layout %d", layout)
	}
	need := uint64(layout.DeviceSize(int64(len(pixels.Pix))))
	if size == 0 {
		size = need
	} else if size < need {
		return nil, fmt.Errorf("%w: input size %d smaller than %s payload %d", gpix.ErrInvalidBufferSize, size, layout, need)
	}
	const label = "input"
	if err := d.checkSize(label, size, true); err != nil {
		return nil, err
	}
	m, err := d.createMapped(label, size, UsageStorageRead)
	if err != nil {
		return nil, err
	}
	if err := Widen(m.data, pixels.Pix, layout); err != nil {
		m.unmap().Release()
		return nil, err
	}
	gpix.Logger().Debug("input uploaded", "layout", layout.String(), "samples", len(pixels.Pix), "bytes", size)
	return m.unmap(), nil
}

// UploadUniform creates a uniform buffer holding data.
func (d *Device) UploadUniform(label string, data []byte) (*DeviceBuffer, error) {
	size := uint64(len(data))
	if err := d.checkSize(label, size, false); err != nil {
		return nil, err
	}
	m, err := d.createMapped(label, size, UsageUniform)
	if err != nil {
		return nil, err
	}
	copy(m.data, data)
	return m.unmap(), nil
}

// AllocateOutput creates a zeroed read-write storage buffer that can be
// copied out of.
func (d *Device) AllocateOutput(byteSize uint64) (*DeviceBuffer, error) {
	const label = "output"
	if err := d.checkSize(label, byteSize, true); err != nil {
		return nil, err
	}
	usage := UsageStorageRead | UsageStorageWrite | UsageCopySrc
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  byteSize,
		Usage: usage.wgpu(),
	})
	if err != nil {
		return nil, fmt.Errorf("output buffer: %w", err)
	}
	gpix.Logger().Debug("output allocated", "bytes", byteSize)
	return &DeviceBuffer{label: label, buf: buf, size: byteSize, usage: usage}, nil
}

// AllocateStaging creates a buffer that can receive copies and be mapped
// for host reads.
func (d *Device) AllocateStaging(byteSize uint64) (*StagingBuffer, error) {
	const label = "staging"
	if err := d.checkSize(label, byteSize, false); err != nil {
		return nil, err
	}
	usage := UsageCopyDst | UsageMapRead
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  byteSize,
		Usage: usage.wgpu(),
	})
	if err != nil {
		return nil, fmt.Errorf("staging buffer: %w", err)
	}
	return &StagingBuffer{dev: d, label: label, buf: buf, size: byteSize, usage: usage}, nil
}

// UploadImage copies pixels into a new sampled rgba8unorm texture.
func (d *Device) UploadImage(pixels *gpix.PixelBuffer) (*DeviceTexture, error) {
	if err := pixels.Validate(); err != nil {
		return nil, err
	}
	w, h := uint32(pixels.Width), uint32(pixels.Height)
	if maxDim := d.limits.MaxTextureDimension2D; maxDim != 0 && (w > maxDim || h > maxDim) {
		return nil, fmt.Errorf("%w: image %dx%d exceeds texture limit %d", gpix.ErrInvalidBufferSize, w, h, maxDim)
	}
	const label = "source"
	extent := wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          extent,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("source texture: %w", err)
	}
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels.Pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  w * gpix.BytesPerPixel,
			RowsPerImage: h,
		},
		&extent,
	)
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("source texture view: %w", err)
	}
	gpix.Logger().Debug("image uploaded", "width", w, "height", h)
	return &DeviceTexture{label: label, tex: tex, view: view, width: w, height: h}, nil
}
