// Package quad provides the CPU-side types for a GPU quad (sprite) renderer
// built on gogpu/wgpu.
//
// # Overview
//
// quad is the texture backend of a 2D batch renderer in the GoGPU ecosystem.
// Sprites are stored in GPU texture arrays and drawn as textured quads; an
// offscreen Drawable can be rendered to and read back into a Pixmap.
//
// This root package holds pixel buffers, colors, and transforms. The GPU
// resources (textures, drawables, pipelines) live in the gpu sub-package.
//
// # Pixel format
//
// Pixmap stores pixels in BGRA byte order (blue, green, red, alpha), four
// bytes per pixel, row-major with no row padding. This matches the
// BGRA8Unorm texture format used on the GPU side, so uploads and readbacks
// are straight byte copies with no per-pixel conversion.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/quad"
//	    "github.com/gogpu/quad/gpu"
//	)
//
//	dev, _ := gpu.Open(gpu.DeviceOptions{})
//	defer dev.Close()
//
//	pipe := gpu.NewQuadPipeline(dev)
//	defer pipe.Destroy()
//
//	pm := quad.NewPixmap(64, 64)
//	pm.Clear(quad.Red)
//	tex, _ := gpu.NewTexture(dev, pipe, pm)
//	defer tex.Release()
package quad
