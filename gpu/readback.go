// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// Readback errors.
var (
	// ErrReadbackFailed is returned when the GPU-to-CPU copy could not be
	// mapped or read. The pixels are unavailable; callers must not treat
	// the result as an empty image.
	ErrReadbackFailed = errors.New("gpu: pixel readback failed")

	// ErrReadbackPending is returned when a readback result is consumed
	// before it was resolved.
	ErrReadbackPending = errors.New("gpu: readback not complete")
)

// copyPitchAlignment is the required BytesPerRow alignment for
// texture-buffer copies (WebGPU and DX12 mandate 256).
const copyPitchAlignment = 256

// alignRowPitch rounds a row byte count up to the copy pitch alignment.
func alignRowPitch(rowBytes uint32) uint32 {
	return (rowBytes + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// stripRowPadding copies the tight rows out of an aligned readback image.
// When the pitches already match it returns the input unchanged.
func stripRowPadding(data []byte, rowBytes, alignedRowBytes, h uint32) []byte {
	if rowBytes == alignedRowBytes {
		return data
	}
	tight := make([]byte, uint64(rowBytes)*uint64(h))
	for row := uint32(0); row < h; row++ {
		srcOff := uint64(row) * uint64(alignedRowBytes)
		dstOff := uint64(row) * uint64(rowBytes)
		copy(tight[dstOff:dstOff+uint64(rowBytes)], data[srcOff:srcOff+uint64(rowBytes)])
	}
	return tight
}

// readResult is a single-assignment cell for the outcome of one readback.
// It is resolved exactly once, with either the mapped bytes or an error;
// a second resolve is ignored. Not safe for concurrent use: readback runs
// entirely on the render thread.
type readResult struct {
	resolved bool
	data     []byte
	err      error
}

// resolve stores the readback outcome. Only the first call takes effect.
func (r *readResult) resolve(data []byte, err error) {
	if r.resolved {
		logger().Warn("quad: readback resolved twice, keeping first result")
		return
	}
	r.resolved = true
	r.data = data
	r.err = err
}

// take consumes the readback outcome. Returns ErrReadbackPending if the
// result was never resolved.
func (r *readResult) take() ([]byte, error) {
	if !r.resolved {
		return nil, ErrReadbackPending
	}
	return r.data, r.err
}

// fenceWaiter is the slice of hal.Device that readback completion needs.
type fenceWaiter interface {
	Wait(fence hal.Fence, value uint64, timeout time.Duration) (bool, error)
}

// bufferReader is the slice of hal.Queue that readback completion needs.
type bufferReader interface {
	ReadBuffer(buffer hal.Buffer, offset uint64, data []byte) error
}

// awaitReadback blocks until the submitted work behind fence completes,
// then reads the staging buffer contents into the result cell. Waiting on
// the fence is what drives the device forward; without it the copy would
// never be observed as finished.
//
// A wait timeout, a wait error, or a buffer read error all resolve the
// result with ErrReadbackFailed so the failure surfaces to the caller.
func awaitReadback(dev fenceWaiter, queue bufferReader, fence hal.Fence, staging hal.Buffer, size uint64, res *readResult) {
	fenceOK, err := dev.Wait(fence, 1, gpuTimeout)
	if err != nil || !fenceOK {
		res.resolve(nil, fmt.Errorf("%w: wait ok=%v err=%v", ErrReadbackFailed, fenceOK, err))
		return
	}

	data := make([]byte, size)
	if err := queue.ReadBuffer(staging, 0, data); err != nil {
		res.resolve(nil, fmt.Errorf("%w: %v", ErrReadbackFailed, err))
		return
	}
	res.resolve(data, nil)
}
