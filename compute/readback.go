package compute

import (
	"context"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/gpix"
)

// Resolve waits for the device to confirm a read mapping of the first size
// bytes of s and returns a host-owned copy of them. The mapping is released
// before Resolve returns on every path, including failed conversions in the
// typed resolvers. A staging buffer can be resolved once.
//
// A context deadline or cancellation before the confirmation fails with
// [gpix.ErrMapTimeout]; a map reported unsuccessful by the device fails
// with [gpix.ErrMapAborted]. Work already submitted cannot be cancelled, so
// a timed out Resolve still returns only once the device poll it started
// has finished, after which the device may be released.
func Resolve(ctx context.Context, s *StagingBuffer, size uint64) ([]byte, error) {
	var snapshot []byte
	err := s.read(ctx, size, func(mapped []byte) error {
		snapshot = make([]byte, len(mapped))
		copy(snapshot, mapped)
		return nil
	})
	return snapshot, err
}

// ResolvePixels reads back a width×height transform result stored as lanes
// of layout and narrows it to 8-bit samples.
func ResolvePixels(ctx context.Context, s *StagingBuffer, width, height int, layout gpix.Layout) (*gpix.PixelBuffer, error) {
	dst := gpix.NewPixelBuffer(width, height)
	if err := dst.Validate(); err != nil {
		return nil, err
	}
	size := layout.DeviceSize(int64(len(dst.Pix)))
	if size <= 0 {
		return nil, fmt.Errorf("invalid layout %d", layout)
	}
	snapshot, err := Resolve(ctx, s, uint64(size))
	if err != nil {
		return nil, err
	}
	if err := Narrow(dst.Pix, snapshot, layout); err != nil {
		return nil, err
	}
	return dst, nil
}

// ResolveHistogram reads back numBins u32 bin counts.
func ResolveHistogram(ctx context.Context, s *StagingBuffer, numBins int) (gpix.Histogram, error) {
	if numBins <= 0 {
		return nil, fmt.Errorf("%w: %d bins", gpix.ErrInvalidBufferSize, numBins)
	}
	hist := make(gpix.Histogram, numBins)
	snapshot, err := Resolve(ctx, s, uint64(4*numBins))
	if err != nil {
		return nil, err
	}
	if err := decodeBins(hist, snapshot); err != nil {
		return nil, err
	}
	return hist, nil
}

// read maps s, hands the mapped range to fn and unmaps. fn must not retain
// the range: it is invalid once read returns.
func (s *StagingBuffer) read(ctx context.Context, size uint64, fn func(mapped []byte) error) error {
	switch {
	case s.buf == nil:
		return fmt.Errorf("staging %q used after release", s.label)
	case s.resolved:
		return fmt.Errorf("%w: staging %q already mapped once", gpix.ErrUsageMismatch, s.label)
	case size == 0 || size%4 != 0 || size > s.size:
		return fmt.Errorf("%w: read of %d bytes from %q (%d)", gpix.ErrInvalidBufferSize, size, s.label, s.size)
	}
	if err := requireUsage(s.label, s.usage, UsageMapRead); err != nil {
		return err
	}
	s.resolved = true
	log := gpix.Logger()

	done := make(chan wgpu.BufferMapAsyncStatus, 1)
	err := s.buf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		done <- status
	})
	if err != nil {
		return fmt.Errorf("%w: %q: %v", gpix.ErrMapAborted, s.label, err)
	}
	// The map callback fires from within a device poll once the queue work
	// writing s has completed. The poll is joined on every path so the
	// device is never released under it.
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		s.dev.device.Poll(true, nil)
	}()

	select {
	case status := <-done:
		<-polled
		if status != wgpu.BufferMapAsyncStatusSuccess {
			log.Warn("staging map aborted", "buffer", s.label, "status", status)
			return fmt.Errorf("%w: %q: status %v", gpix.ErrMapAborted, s.label, status)
		}
	case <-ctx.Done():
		<-polled
		// Unmapping releases a completed map or cancels a pending one.
		s.buf.Unmap()
		log.Warn("staging map timed out", "buffer", s.label, "err", ctx.Err())
		return fmt.Errorf("%w: %q: %w", gpix.ErrMapTimeout, s.label, ctx.Err())
	}
	defer s.buf.Unmap()
	log.Debug("staging mapped", "buffer", s.label, "bytes", size)
	return fn(s.buf.GetMappedRange(0, uint(size)))
}
