package compute

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/gpix"
)

// DefaultMaxWorkgroupsPerDimension is the WebGPU default for
// maxComputeWorkgroupsPerDimension.
const DefaultMaxWorkgroupsPerDimension = 65535

// Plan holds the workgroup counts of one dispatch. Linear plans also carry
// the logical element count and the invocation stride of one dispatch row,
// which the kernel receives in its parameter block so its bounds check and
// the workgroup counts come from the same numbers.
type Plan struct {
	X, Y, Z uint32
	// Count is the logical element count. Zero for grid plans.
	Count uint32
	// Stride is the number of invocations spanned by one row of workgroups.
	Stride uint32
}

// Workgroups returns the total number of workgroups dispatched.
func (p Plan) Workgroups() uint64 { return uint64(p.X) * uint64(p.Y) * uint64(p.Z) }

// PlanLinear plans n elements over workgroups of workgroupSize threads:
// X = ceil(n/workgroupSize). Counts beyond maxPerDim fold into Y, in which
// case X*Y may exceed ceil(n/workgroupSize) by less than one row.
// maxPerDim zero selects [DefaultMaxWorkgroupsPerDimension].
func PlanLinear(n uint64, workgroupSize, maxPerDim uint32) (Plan, error) {
	if maxPerDim == 0 {
		maxPerDim = DefaultMaxWorkgroupsPerDimension
	}
	switch {
	case n == 0:
		return Plan{}, fmt.Errorf("%w: zero elements", gpix.ErrInvalidDispatch)
	case n > math.MaxUint32:
		return Plan{}, fmt.Errorf("%w: %d elements exceed u32 index range", gpix.ErrInvalidDispatch, n)
	case workgroupSize == 0:
		return Plan{}, fmt.Errorf("%w: zero workgroup size", gpix.ErrInvalidDispatch)
	}
	groups := ceilDiv(n, uint64(workgroupSize))
	p := Plan{X: uint32(groups), Y: 1, Z: 1, Count: uint32(n)}
	if groups > uint64(maxPerDim) {
		p.X = maxPerDim
		rows := ceilDiv(groups, uint64(maxPerDim))
		if rows > uint64(maxPerDim) {
			return Plan{}, fmt.Errorf("%w: %d workgroups exceed %d×%d", gpix.ErrInvalidDispatch, groups, maxPerDim, maxPerDim)
		}
		p.Y = uint32(rows)
	}
	stride := uint64(p.X) * uint64(workgroupSize)
	if stride > math.MaxUint32 {
		return Plan{}, fmt.Errorf("%w: row stride %d overflows", gpix.ErrInvalidDispatch, stride)
	}
	p.Stride = uint32(stride)
	return p, nil
}

// PlanGrid plans one single-thread workgroup per pixel of a width×height image.
func PlanGrid(width, height int, maxPerDim uint32) (Plan, error) {
	if maxPerDim == 0 {
		maxPerDim = DefaultMaxWorkgroupsPerDimension
	}
	if width <= 0 || height <= 0 {
		return Plan{}, fmt.Errorf("%w: empty grid %dx%d", gpix.ErrInvalidDispatch, width, height)
	} else if uint64(width) > uint64(maxPerDim) || uint64(height) > uint64(maxPerDim) {
		return Plan{}, fmt.Errorf("%w: grid %dx%d exceeds %d per dimension", gpix.ErrInvalidDispatch, width, height, maxPerDim)
	}
	return Plan{X: uint32(width), Y: uint32(height), Z: 1}, nil
}

// Params encodes the kernel parameter block of a linear plan.
func (p Plan) Params() []byte {
	b := make([]byte, HalveParamsSize)
	binary.LittleEndian.PutUint32(b[0:], p.Count)
	binary.LittleEndian.PutUint32(b[4:], p.Stride)
	return b
}

func (p Plan) validate(maxPerDim uint32) error {
	if maxPerDim == 0 {
		maxPerDim = DefaultMaxWorkgroupsPerDimension
	}
	if p.X == 0 || p.Y == 0 || p.Z == 0 {
		return fmt.Errorf("%w: zero dimension in %dx%dx%d", gpix.ErrInvalidDispatch, p.X, p.Y, p.Z)
	} else if p.X > maxPerDim || p.Y > maxPerDim || p.Z > maxPerDim {
		return fmt.Errorf("%w: %dx%dx%d exceeds %d per dimension", gpix.ErrInvalidDispatch, p.X, p.Y, p.Z, maxPerDim)
	}
	return nil
}

func ceilDiv(a, b uint64) uint64 { return (a + b - 1) / b }

// Copy describes a buffer-to-buffer copy recorded after the compute pass.
// Size zero copies the whole source buffer.
type Copy struct {
	Src  *DeviceBuffer
	Dst  *StagingBuffer
	Size uint64
}

func (c *Copy) size() uint64 {
	if c.Size == 0 {
		return c.Src.size
	}
	return c.Size
}

func (c *Copy) validate() error {
	if c.Src == nil || c.Dst == nil {
		return fmt.Errorf("%w: copy needs source and destination", gpix.ErrUsageMismatch)
	}
	if err := requireUsage(c.Src.label, c.Src.usage, UsageCopySrc); err != nil {
		return err
	}
	if err := requireUsage(c.Dst.label, c.Dst.usage, UsageCopyDst); err != nil {
		return err
	}
	size := c.size()
	switch {
	case size%4 != 0:
		return fmt.Errorf("%w: copy size %d not a multiple of 4", gpix.ErrInvalidBufferSize, size)
	case size > c.Src.size || size > c.Dst.size:
		return fmt.Errorf("%w: copy size %d exceeds %q (%d) or %q (%d)", gpix.ErrInvalidBufferSize,
			size, c.Src.label, c.Src.size, c.Dst.label, c.Dst.size)
	case c.Dst.resolved:
		return fmt.Errorf("%w: staging %q already read back", gpix.ErrUsageMismatch, c.Dst.label)
	}
	return nil
}

// Submission identifies a submitted command sequence. Completion is only
// observable by resolving the staging buffer the sequence copied into.
type Submission struct {
	Seq     uint64
	Plan    Plan
	Staging *StagingBuffer
}

var submitSeq atomic.Uint64

// Dispatch records pipeline bind, bind group bind, the dispatch of plan and
// the optional copy into a staging buffer, then submits the sequence to the
// queue. It does not wait for completion and cannot be cancelled.
func (d *Device) Dispatch(p *Pipeline, bg *BindGroup, plan Plan, copyOut *Copy) (*Submission, error) {
	if p == nil || p.pipeline == nil {
		return nil, fmt.Errorf("%w: nil or released pipeline", gpix.ErrBindingLayoutMismatch)
	} else if bg == nil || bg.pipeline != p || bg.group == nil {
		return nil, fmt.Errorf("%w: bind group not built for pipeline %q", gpix.ErrBindingLayoutMismatch, p.label)
	}
	if err := plan.validate(d.limits.MaxComputeWorkgroupsPerDimension); err != nil {
		return nil, err
	}
	if copyOut != nil {
		if err := copyOut.validate(); err != nil {
			return nil, err
		}
	}

	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: p.label})
	if err != nil {
		return nil, fmt.Errorf("command encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bg.group, nil)
	pass.DispatchWorkgroups(plan.X, plan.Y, plan.Z)
	pass.End()
	pass.Release()

	sub := &Submission{Seq: submitSeq.Add(1), Plan: plan}
	if copyOut != nil {
		encoder.CopyBufferToBuffer(copyOut.Src.buf, 0, copyOut.Dst.buf, 0, copyOut.size())
		sub.Staging = copyOut.Dst
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("finish: %w", err)
	}
	defer cmd.Release()
	d.queue.Submit(cmd)
	gpix.Logger().Debug("dispatch submitted", "program", p.label, "seq", sub.Seq,
		"x", plan.X, "y", plan.Y, "z", plan.Z, "count", plan.Count)
	return sub, nil
}
