// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpu implements the GPU side of the quad renderer on top of
// gogpu/wgpu's HAL interfaces.
//
// The package owns three kinds of objects:
//
//   - Texture: an immutable BGRA8 2D-array texture uploaded from one or
//     more quad.Pixmap layers. Handles are reference counted; Clone and
//     Release are cheap, and the underlying GPU objects are destroyed when
//     the last handle is released.
//   - Drawable: a single-layer texture that doubles as a render target.
//     Its contents can be read back synchronously into a quad.Pixmap.
//   - QuadPipeline: a render pipeline that draws batches of textured quads
//     into a Drawable, sampling from texture array layers.
//
// All objects are created from a Device, which wraps a hal.Device and
// hal.Queue. Open creates a standalone device; NewDeviceFrom wraps an
// externally owned device/queue pair (for embedding in a larger gogpu
// application).
package gpu
