// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// textureFormat is the pixel format for all textures in this package.
// BGRA8Unorm matches the byte order of quad.Pixmap, so uploads and
// readbacks are straight byte copies.
const textureFormat = gputypes.TextureFormatBGRA8Unorm

// gpuTimeout bounds every fence wait. A hung driver surfaces as an error
// instead of blocking the render thread forever.
const gpuTimeout = 5 * time.Second

// Texture usage sets.
const (
	// sampledTextureUsage is for textures that are uploaded once and
	// sampled by the quad pipeline.
	sampledTextureUsage = gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst

	// drawableTextureUsage is for drawables: render target, sampleable,
	// and copyable to a staging buffer for readback.
	drawableTextureUsage = gputypes.TextureUsageRenderAttachment |
		gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc
)

// createTextureArray creates a 2D-array texture with the given dimensions,
// optionally uploads initial layer data, and creates an array view spanning
// all layers plus a pipeline texture binding for it.
//
// layers may be nil (no upload, e.g. for render targets). When non-nil,
// every layer must hold exactly width*height*4 BGRA bytes. The layer count
// of the texture is max(len(layers), 1): a texture always has at least one
// layer, and the view is always a 2D array view so the same shader binding
// works for single images and arrays alike.
//
// On success the caller owns the returned texture, view, and binding.
// On error all partially created objects are destroyed.
func createTextureArray(
	dev *Device,
	pl Pipeline,
	width, height int,
	layers [][]byte,
	usage gputypes.TextureUsage,
	label string,
) (hal.Texture, hal.TextureView, TextureBinding, error) {
	if dev == nil || dev.device == nil {
		return nil, nil, nil, ErrNilDevice
	}
	if width <= 0 || height <= 0 {
		return nil, nil, nil, fmt.Errorf("%w: %dx%d", ErrZeroSize, width, height)
	}
	for i, layer := range layers {
		if want := width * height * 4; len(layer) != want {
			return nil, nil, nil, fmt.Errorf("%w: layer %d is %d bytes, want %d (%dx%d BGRA)",
				ErrLayerSize, i, len(layer), want, width, height)
		}
	}

	layerCount := uint32(len(layers)) //nolint:gosec // layer count fits uint32
	if layerCount == 0 {
		layerCount = 1
	}
	w, h := uint32(width), uint32(height) //nolint:gosec // dimensions always fit uint32

	tex, err := dev.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: layerCount},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create texture %q: %w", label, err)
	}

	if len(layers) > 0 {
		if err := uploadTextureLayers(dev, tex, w, h, layers, label); err != nil {
			dev.device.DestroyTexture(tex)
			return nil, nil, nil, err
		}
	}

	// Array view spanning every layer, even when there is only one. The
	// quad shader always samples texture_2d_array, so single images and
	// sprite sheets share one bind group layout.
	view, err := dev.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           label + "_view",
		Format:          textureFormat,
		Dimension:       gputypes.TextureViewDimension2DArray,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: layerCount,
	})
	if err != nil {
		dev.device.DestroyTexture(tex)
		return nil, nil, nil, fmt.Errorf("create texture view %q: %w", label, err)
	}

	binding, err := pl.CreateTextureBinding(view)
	if err != nil {
		dev.device.DestroyTextureView(view)
		dev.device.DestroyTexture(tex)
		return nil, nil, nil, fmt.Errorf("create texture binding %q: %w", label, err)
	}

	logger().Debug("quad: texture array created",
		"label", label, "width", width, "height", height, "layers", layerCount)

	return tex, view, binding, nil
}

// uploadTextureLayers flattens the layer data into one staging buffer and
// records a single buffer-to-texture copy spanning all layers. The staging
// buffer is released after the copy has executed on the GPU.
func uploadTextureLayers(dev *Device, tex hal.Texture, w, h uint32, layers [][]byte, label string) error {
	rowBytes := w * 4
	alignedRowBytes := alignRowPitch(rowBytes)
	layerBytes := uint64(alignedRowBytes) * uint64(h)
	stagingSize := layerBytes * uint64(len(layers))

	staging, err := dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label + "_upload",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create upload buffer: %w", err)
	}
	defer dev.device.DestroyBuffer(staging)

	dev.queue.WriteBuffer(staging, 0, padLayerRows(layers, rowBytes, alignedRowBytes, h))

	encoder, err := dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label + "_upload_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label + "_upload"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	encoder.CopyBufferToTexture(staging, tex, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedRowBytes, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: uint32(len(layers))}, //nolint:gosec // layer count fits uint32
	}})

	// The texture is sampled after upload. Transition out of the copy
	// layout; a no-op on backends without explicit layouts.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopyDst,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer dev.device.FreeCommandBuffer(cmdBuf)

	// Submit and wait so the staging buffer can be released on return.
	fence, err := dev.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer dev.device.DestroyFence(fence)

	if err := dev.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit upload: %w", err)
	}
	fenceOK, err := dev.device.Wait(fence, 1, gpuTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for upload: ok=%v err=%v", fenceOK, err)
	}
	return nil
}

// padLayerRows concatenates the layers into one upload image, widening each
// row from rowBytes to alignedRowBytes. When no padding is needed this is a
// single copy per layer.
func padLayerRows(layers [][]byte, rowBytes, alignedRowBytes, h uint32) []byte {
	out := make([]byte, uint64(alignedRowBytes)*uint64(h)*uint64(len(layers)))
	dst := uint64(0)
	for _, layer := range layers {
		if rowBytes == alignedRowBytes {
			copy(out[dst:], layer)
			dst += uint64(len(layer))
			continue
		}
		for row := uint32(0); row < h; row++ {
			src := uint64(row) * uint64(rowBytes)
			copy(out[dst:dst+uint64(rowBytes)], layer[src:src+uint64(rowBytes)])
			dst += uint64(alignedRowBytes)
		}
	}
	return out
}
