// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import "github.com/gogpu/wgpu/hal"

// Pipeline is implemented by render pipelines that sample textures created
// in this package. Texture construction asks the pipeline for a binding
// exactly once; the binding's layout is the pipeline's business, so the
// texture code stays independent of shader details.
type Pipeline interface {
	// CreateTextureBinding builds the pipeline-specific shader binding
	// (bind group) for a texture array view.
	CreateTextureBinding(view hal.TextureView) (TextureBinding, error)
}

// TextureBinding is an opaque, pipeline-owned shader binding for one
// texture. It is stored with the texture's GPU resources and destroyed
// alongside them. The concrete type is private to the pipeline that
// created it.
type TextureBinding interface {
	destroy(device hal.Device)
}
