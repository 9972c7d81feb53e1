// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/quad"
)

// Quad pipeline errors.
var (
	// ErrNoQuads is returned when DrawQuads is called with no instances.
	ErrNoQuads = errors.New("gpu: no quads to draw")

	// ErrWrongPipeline is returned when a texture created for a different
	// pipeline is drawn through this one.
	ErrWrongPipeline = errors.New("gpu: texture binding belongs to another pipeline")
)

// quadInstanceStride is the byte stride per instance in the quad pipeline.
// Layout per instance:
//
//	source   (vec4<f32>) = 16 bytes  (location 0)
//	position (vec2<f32>) =  8 bytes  (location 1)
//	size     (vec2<f32>) =  8 bytes  (location 2)
//	layer    (u32)       =  4 bytes  (location 3)
//
// Total = 36 bytes per instance.
const quadInstanceStride = 36

// quadUniformSize is the byte size of the quad uniform buffer:
// transform (mat4x4<f32>) = 64 bytes.
const quadUniformSize = 64

// QuadInstance describes one textured quad: a source rectangle in a
// texture array layer and a destination rectangle on the target, both
// matching InstanceInput in quad.wgsl.
type QuadInstance struct {
	// Source rectangle in normalized texture coordinates (u0, v0, u1, v1).
	Source [4]float32

	// Position is the destination top-left corner in target pixels.
	Position [2]float32

	// Size is the destination size in target pixels.
	Size [2]float32

	// Layer selects the texture array layer to sample.
	Layer uint32
}

// QuadPipeline draws batches of textured quads into a Drawable, sampling
// source pixels from texture array layers. It implements Pipeline, so
// textures created against it carry their bind group.
//
// GPU objects are created lazily on first use and released by Destroy.
type QuadPipeline struct {
	dev *Device

	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	textureLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	pipeline      hal.RenderPipeline

	// Shared sampler for all sprite textures (linear filtering).
	sampler hal.Sampler
}

var _ Pipeline = (*QuadPipeline)(nil)

// NewQuadPipeline creates a quad pipeline for the given device. GPU
// objects are not created until the first texture binding or draw.
func NewQuadPipeline(dev *Device) *QuadPipeline {
	return &QuadPipeline{dev: dev}
}

// ensurePipeline compiles the quad shader and creates the bind group
// layouts, sampler, and render pipeline if they don't exist yet.
func (p *QuadPipeline) ensurePipeline() error {
	if p.pipeline != nil {
		return nil
	}
	if p.dev == nil || p.dev.device == nil {
		return ErrNilDevice
	}

	spirv, err := compileShaderToSPIRV(quadShaderSource)
	if err != nil {
		return fmt.Errorf("quad shader: %w", err)
	}
	shader, err := p.dev.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "quad_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create quad shader module: %w", err)
	}
	p.shader = shader

	// Group 0: per-draw uniforms (transform).
	uniformLayout, err := p.dev.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "quad_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		p.destroyPipeline()
		return fmt.Errorf("create quad uniform layout: %w", err)
	}
	p.uniformLayout = uniformLayout

	// Group 1: sprite texture array + sampler.
	textureLayout, err := p.dev.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "quad_texture_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2DArray,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		p.destroyPipeline()
		return fmt.Errorf("create quad texture layout: %w", err)
	}
	p.textureLayout = textureLayout

	pipeLayout, err := p.dev.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "quad_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout, p.textureLayout},
	})
	if err != nil {
		p.destroyPipeline()
		return fmt.Errorf("create quad pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	sampler, err := p.dev.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "quad_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		p.destroyPipeline()
		return fmt.Errorf("create quad sampler: %w", err)
	}
	p.sampler = sampler

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := p.dev.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "quad_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    quadInstanceLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    textureFormat,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.destroyPipeline()
		return fmt.Errorf("create quad pipeline: %w", err)
	}
	p.pipeline = pipeline

	return nil
}

// CreateTextureBinding builds the group-1 bind group (texture + sampler)
// for a texture array view. Called once per texture at creation time.
func (p *QuadPipeline) CreateTextureBinding(view hal.TextureView) (TextureBinding, error) {
	if err := p.ensurePipeline(); err != nil {
		return nil, err
	}
	bindGroup, err := p.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "quad_texture_bind",
		Layout: p.textureLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create quad texture bind group: %w", err)
	}
	return &quadTextureBinding{bindGroup: bindGroup, pipeline: p}, nil
}

// quadTextureBinding is the QuadPipeline-specific TextureBinding: the
// group-1 bind group holding the texture view and the shared sampler.
type quadTextureBinding struct {
	bindGroup hal.BindGroup
	pipeline  *QuadPipeline
}

func (b *quadTextureBinding) destroy(device hal.Device) {
	if b.bindGroup != nil {
		device.DestroyBindGroup(b.bindGroup)
		b.bindGroup = nil
	}
}

// DrawQuads renders a batch of quad instances sampling from tex into
// target. When clear is non-nil the target is cleared to that color first;
// otherwise existing contents are kept and blended over.
//
// The batch is encoded, submitted, and waited on before returning, so the
// target can be read back or sampled immediately afterwards.
func (p *QuadPipeline) DrawQuads(
	target *Drawable,
	tex *Texture,
	transform quad.Matrix,
	instances []QuadInstance,
	clear *quad.RGBA,
) error {
	if len(instances) == 0 {
		return ErrNoQuads
	}
	if err := p.ensurePipeline(); err != nil {
		return err
	}

	binding, ok := tex.texBinding().(*quadTextureBinding)
	if !ok || binding.pipeline != p {
		return ErrWrongPipeline
	}

	res, err := p.buildFrameResources(target, transform, instances)
	if err != nil {
		return err
	}
	defer res.destroy(p.dev.device)

	encoder, err := p.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "quad_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("quad_batch"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	attachment := hal.RenderPassColorAttachment{
		View:    target.target(),
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if clear != nil {
		attachment.LoadOp = gputypes.LoadOpClear
		attachment.ClearValue = gputypes.Color{R: clear.R, G: clear.G, B: clear.B, A: clear.A}
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            "quad_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{attachment},
	})
	p.recordDraws(rp, res, binding)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer p.dev.device.FreeCommandBuffer(cmdBuf)

	fence, err := p.dev.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer p.dev.device.DestroyFence(fence)

	if err := p.dev.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := p.dev.device.Wait(fence, 1, gpuTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%v", fenceOK, err)
	}
	return nil
}

// recordDraws records the quad draw into an open render pass.
func (p *QuadPipeline) recordDraws(rp hal.RenderPassEncoder, res *quadFrameResources, binding *quadTextureBinding) {
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, res.bindGroup, nil)
	rp.SetBindGroup(1, binding.bindGroup, nil)
	rp.SetVertexBuffer(0, res.instanceBuf, 0)
	rp.Draw(6, res.instanceCount, 0, 0)
}

// quadFrameResources holds per-draw GPU resources for one quad batch.
type quadFrameResources struct {
	instanceBuf   hal.Buffer
	uniformBuf    hal.Buffer
	bindGroup     hal.BindGroup
	instanceCount uint32
}

func (r *quadFrameResources) destroy(device hal.Device) {
	if r.bindGroup != nil {
		device.DestroyBindGroup(r.bindGroup)
	}
	if r.uniformBuf != nil {
		device.DestroyBuffer(r.uniformBuf)
	}
	if r.instanceBuf != nil {
		device.DestroyBuffer(r.instanceBuf)
	}
}

// buildFrameResources creates the per-draw instance buffer, uniform
// buffer, and group-0 bind group.
func (p *QuadPipeline) buildFrameResources(
	target *Drawable,
	transform quad.Matrix,
	instances []QuadInstance,
) (*quadFrameResources, error) {
	instanceBuf, err := p.createAndUploadBuffer("quad_instances",
		buildQuadInstanceData(instances),
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("create instance buffer: %w", err)
	}

	uniformBuf, err := p.createAndUploadBuffer("quad_uniform",
		makeQuadUniform(transform, target.Width(), target.Height()),
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		p.dev.device.DestroyBuffer(instanceBuf)
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}

	bindGroup, err := p.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "quad_uniform_bind",
		Layout: p.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: quadUniformSize,
			}},
		},
	})
	if err != nil {
		p.dev.device.DestroyBuffer(uniformBuf)
		p.dev.device.DestroyBuffer(instanceBuf)
		return nil, fmt.Errorf("create uniform bind group: %w", err)
	}

	return &quadFrameResources{
		instanceBuf:   instanceBuf,
		uniformBuf:    uniformBuf,
		bindGroup:     bindGroup,
		instanceCount: uint32(len(instances)), //nolint:gosec // instance count fits uint32
	}, nil
}

// createAndUploadBuffer creates a GPU buffer and uploads data.
func (p *QuadPipeline) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := p.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	p.dev.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// Destroy releases all GPU resources held by the pipeline. Safe to call
// multiple times or on a pipeline with no allocated resources.
func (p *QuadPipeline) Destroy() {
	p.destroyPipeline()
}

// destroyPipeline releases pipeline resources in reverse creation order.
func (p *QuadPipeline) destroyPipeline() {
	if p.dev == nil || p.dev.device == nil {
		return
	}
	if p.pipeline != nil {
		p.dev.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		p.dev.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		p.dev.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.textureLayout != nil {
		p.dev.device.DestroyBindGroupLayout(p.textureLayout)
		p.textureLayout = nil
	}
	if p.uniformLayout != nil {
		p.dev.device.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.shader != nil {
		p.dev.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// quadInstanceLayout returns the vertex buffer layout for the quad
// pipeline. Matches InstanceInput in quad.wgsl; vertices are derived from
// the vertex index, so the only buffer steps per instance.
func quadInstanceLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadInstanceStride,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},  // source
				{Format: gputypes.VertexFormatFloat32x2, Offset: 16, ShaderLocation: 1}, // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2}, // size
				{Format: gputypes.VertexFormatUint32, Offset: 32, ShaderLocation: 3},    // layer
			},
		},
	}
}

// buildQuadInstanceData serializes instances into raw bytes for GPU
// upload. Each instance produces quadInstanceStride bytes.
func buildQuadInstanceData(instances []QuadInstance) []byte {
	data := make([]byte, len(instances)*quadInstanceStride)
	off := 0
	for _, in := range instances {
		for _, v := range in.Source {
			binary.LittleEndian.PutUint32(data[off:], math.Float32bits(v))
			off += 4
		}
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(in.Position[0]))
		off += 4
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(in.Position[1]))
		off += 4
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(in.Size[0]))
		off += 4
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(in.Size[1]))
		off += 4
		binary.LittleEndian.PutUint32(data[off:], in.Layer)
		off += 4
	}
	return data
}

// makeQuadUniform builds the 64-byte uniform buffer: the caller's 2D
// affine transform composed with the pixel-to-clip-space projection for a
// w x h target, expanded to a 4x4 matrix.
//
// Input affine: a b c / d e f
// Projection: x' = 2x/w - 1, y' = 1 - 2y/h (pixel origin top-left).
//
// WGSL reads a uniform mat4x4<f32> column-major, so the 16 floats are
// written column by column: the translation terms land in column 3
// (byte offsets 48 and 52), not at the end of the first two rows.
func makeQuadUniform(m quad.Matrix, w, h int) []byte {
	sx := 2.0 / float64(w)
	sy := -2.0 / float64(h)

	t := [16]float32{
		float32(sx * m.A), float32(sy * m.D), 0, 0, // column 0
		float32(sx * m.B), float32(sy * m.E), 0, 0, // column 1
		0, 0, 1, 0, // column 2
		float32(sx*m.C - 1), float32(sy*m.F + 1), 0, 1, // column 3
	}

	buf := make([]byte, quadUniformSize)
	off := 0
	for _, v := range t {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	return buf
}
