// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quad"
)

// Drawable is a single-layer texture that can be rendered to and read
// back. The quad pipeline draws into it through its render-target view,
// and ReadPixels copies the result synchronously into a quad.Pixmap.
//
// A Drawable always has exactly one layer. Like every texture in this
// package it can also be sampled, so a drawable's contents can feed a
// later draw.
type Drawable struct {
	dev *Device
	tex *Texture

	// targetView is a single-layer 2D view used as the color attachment.
	// The texture's own view is a 2D-array view, which cannot serve as a
	// render target.
	targetView hal.TextureView
}

// NewDrawable creates a drawable of the given size. The texture starts
// with undefined contents; the first render pass into it should clear.
func NewDrawable(dev *Device, pl Pipeline, width, height int) (*Drawable, error) {
	raw, view, binding, err := createTextureArray(
		dev, pl, width, height, nil, drawableTextureUsage, "quad_drawable")
	if err != nil {
		return nil, err
	}

	targetView, err := dev.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           "quad_drawable_target",
		Format:          textureFormat,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
	})
	if err != nil {
		binding.destroy(dev.device)
		dev.device.DestroyTextureView(view)
		dev.device.DestroyTexture(raw)
		return nil, fmt.Errorf("create drawable target view: %w", err)
	}

	res := &textureResource{
		device:  dev.device,
		raw:     raw,
		rawView: view,
		binding: binding,
	}
	res.retain()

	return &Drawable{
		dev:        dev,
		tex:        &Texture{res: res, width: width, height: height, layers: 1},
		targetView: targetView,
	}, nil
}

// Texture returns the drawable's texture handle. The handle stays owned by
// the drawable; Clone it to keep it past Release.
func (d *Drawable) Texture() *Texture { return d.tex }

// Width returns the drawable width in pixels.
func (d *Drawable) Width() int { return d.tex.width }

// Height returns the drawable height in pixels.
func (d *Drawable) Height() int { return d.tex.height }

// RenderTransformation returns the transform applied when rendering into
// this drawable. Offscreen targets match the GPU's coordinate convention
// directly, so this is the identity; any flip for presentation belongs to
// the surface pipeline, not the target.
func (d *Drawable) RenderTransformation() quad.Matrix {
	return quad.Identity()
}

// target returns the render-target view. Backend-only.
func (d *Drawable) target() hal.TextureView { return d.targetView }

// Release destroys the render-target view and drops the drawable's texture
// reference. The drawable must not be used afterwards.
func (d *Drawable) Release() {
	if d.targetView != nil {
		d.dev.device.DestroyTextureView(d.targetView)
		d.targetView = nil
	}
	d.tex.Release()
}

// ReadPixels copies the drawable's current contents into a new Pixmap.
// The copy is appended to the caller's open encoder, which is then
// finished and submitted; any previously recorded commands execute before
// the copy. ReadPixels blocks until the GPU work completes.
//
// The encoder must be in the recording state (BeginEncoding called) and is
// consumed by this call.
//
// A mapping or read failure is returned as ErrReadbackFailed; the result
// is never silently an empty image.
func (d *Drawable) ReadPixels(encoder hal.CommandEncoder) (*quad.Pixmap, error) {
	w, h := uint32(d.tex.width), uint32(d.tex.height) //nolint:gosec // dimensions always fit uint32
	rowBytes := w * 4
	alignedRowBytes := alignRowPitch(rowBytes)
	stagingSize := uint64(alignedRowBytes) * uint64(h)

	staging, err := d.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "quad_readback_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("create readback staging buffer: %w", err)
	}
	defer d.dev.device.DestroyBuffer(staging)

	// The drawable was last written as a render attachment. Transition to
	// a copy source, copy, and transition back so the next render pass
	// finds the expected layout.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.tex.res.raw,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	encoder.CopyTextureToBuffer(d.tex.res.raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedRowBytes, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: d.tex.res.raw, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.tex.res.raw,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer d.dev.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.dev.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer d.dev.device.DestroyFence(fence)

	if err := d.dev.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit readback: %w", err)
	}

	var res readResult
	awaitReadback(d.dev.device, d.dev.queue, fence, staging, stagingSize, &res)
	data, err := res.take()
	if err != nil {
		return nil, err
	}

	tight := stripRowPadding(data, rowBytes, alignedRowBytes, h)
	pm, err := quad.NewPixmapFromBytes(d.tex.width, d.tex.height, tight)
	if err != nil {
		return nil, fmt.Errorf("assemble readback pixmap: %w", err)
	}
	return pm, nil
}

// ReadPixelsNow is a convenience wrapper that creates its own command
// encoder and reads back immediately. Use ReadPixels directly to batch the
// copy behind already-recorded rendering commands.
func (d *Drawable) ReadPixelsNow() (*quad.Pixmap, error) {
	encoder, err := d.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "quad_readback_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("quad_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return d.ReadPixels(encoder)
}
