// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quad"
)

// Texture errors.
var (
	// ErrZeroSize is returned when creating a texture with non-positive
	// dimensions.
	ErrZeroSize = errors.New("gpu: texture dimensions must be positive")

	// ErrLayerSize is returned when a layer's byte length does not match
	// the texture dimensions.
	ErrLayerSize = errors.New("gpu: layer byte size mismatch")

	// ErrLayerDims is returned when the pixmaps of a texture array do not
	// all share the same dimensions.
	ErrLayerDims = errors.New("gpu: texture array layers must have equal dimensions")

	// ErrNoLayers is returned when creating a texture array from an empty
	// pixmap slice.
	ErrNoLayers = errors.New("gpu: texture array needs at least one layer")
)

// textureResource owns the GPU objects behind one or more Texture handles.
// The last Release destroys the raw texture, its view, and the pipeline
// binding exactly once.
type textureResource struct {
	device  hal.Device
	raw     hal.Texture
	rawView hal.TextureView
	binding TextureBinding

	refs atomic.Int32
}

func (r *textureResource) retain() {
	r.refs.Add(1)
}

func (r *textureResource) release() {
	n := r.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		// Unbalanced Release. Destruction already happened; log and bail.
		logger().Warn("quad: texture released more times than cloned")
		return
	}
	if r.binding != nil {
		r.binding.destroy(r.device)
		r.binding = nil
	}
	if r.rawView != nil {
		r.device.DestroyTextureView(r.rawView)
		r.rawView = nil
	}
	if r.raw != nil {
		r.device.DestroyTexture(r.raw)
		r.raw = nil
	}
}

// Texture is a handle to a BGRA8 2D-array texture on the GPU. Handles are
// cheap values sharing one reference-counted resource: Clone adds a
// reference, Release drops one, and the GPU objects are destroyed when the
// last reference is gone.
//
// Texture is immutable after creation. The raw texture and its view never
// leave this package; downstream code works with dimensions, layer counts,
// and draw calls that take the texture as a whole.
type Texture struct {
	res    *textureResource
	width  int
	height int
	layers int
}

// NewTexture creates a single-layer texture from one pixmap. The pipeline
// provides the shader binding the texture is sampled through.
func NewTexture(dev *Device, pl Pipeline, pm *quad.Pixmap) (*Texture, error) {
	if pm == nil {
		return nil, fmt.Errorf("%w: nil pixmap", ErrZeroSize)
	}
	return newTextureFromLayers(dev, pl, pm.Width(), pm.Height(), [][]byte{pm.Data()}, "quad_texture")
}

// NewTextureArray creates a texture array with one layer per pixmap. All
// pixmaps must share the same dimensions.
func NewTextureArray(dev *Device, pl Pipeline, pms []*quad.Pixmap) (*Texture, error) {
	if len(pms) == 0 {
		return nil, ErrNoLayers
	}
	w, h := pms[0].Width(), pms[0].Height()
	layers := make([][]byte, len(pms))
	for i, pm := range pms {
		if pm.Width() != w || pm.Height() != h {
			return nil, fmt.Errorf("%w: layer %d is %dx%d, want %dx%d",
				ErrLayerDims, i, pm.Width(), pm.Height(), w, h)
		}
		layers[i] = pm.Data()
	}
	return newTextureFromLayers(dev, pl, w, h, layers, "quad_texture_array")
}

func newTextureFromLayers(dev *Device, pl Pipeline, w, h int, layers [][]byte, label string) (*Texture, error) {
	raw, view, binding, err := createTextureArray(dev, pl, w, h, layers, sampledTextureUsage, label)
	if err != nil {
		return nil, err
	}
	res := &textureResource{
		device:  dev.device,
		raw:     raw,
		rawView: view,
		binding: binding,
	}
	res.retain()
	return &Texture{
		res:    res,
		width:  w,
		height: h,
		layers: len(layers),
	}, nil
}

// Clone returns a new handle sharing this texture's GPU resources.
func (t *Texture) Clone() *Texture {
	t.res.retain()
	return &Texture{res: t.res, width: t.width, height: t.height, layers: t.layers}
}

// Release drops this handle's reference. When the last handle is released
// the GPU texture, view, and binding are destroyed. The handle must not be
// used afterwards.
func (t *Texture) Release() {
	t.res.release()
}

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return t.width }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return t.height }

// Layers returns the number of array layers (at least 1).
func (t *Texture) Layers() int { return t.layers }

// String returns a human-readable description for debugging.
func (t *Texture) String() string {
	return fmt.Sprintf("Texture(%dx%d, %d layers)", t.width, t.height, t.layers)
}

// view returns the 2D-array view over all layers. Backend-only.
func (t *Texture) view() hal.TextureView { return t.res.rawView }

// texBinding returns the pipeline texture binding. Backend-only.
func (t *Texture) texBinding() TextureBinding { return t.res.binding }
