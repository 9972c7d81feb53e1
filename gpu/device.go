// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device errors.
var (
	// ErrNoBackend is returned when no HAL backend is registered for the
	// requested (or default) API.
	ErrNoBackend = errors.New("gpu: no HAL backend available")

	// ErrNoAdapters is returned when the backend reports no GPU adapters.
	ErrNoAdapters = errors.New("gpu: no GPU adapters found")

	// ErrNilDevice is returned when operating on a nil or closed device.
	ErrNilDevice = errors.New("gpu: device is nil or closed")
)

// DeviceOptions configures Open. The zero value selects the default
// backend (Vulkan) and the first discrete or integrated adapter.
type DeviceOptions struct {
	// Backend selects the HAL backend. Zero means BackendVulkan.
	Backend gputypes.Backend

	// Label is used as a prefix for GPU debug labels on objects created
	// from this device. Empty means "quad".
	Label string
}

// Device wraps a HAL device and queue. All textures, drawables, and
// pipelines in this package are created from a Device.
//
// A Device is either standalone (created by Open, owns its instance and
// device) or external (created by NewDeviceFrom, borrows a device/queue
// owned by the embedding application). Close destroys only what the
// Device owns.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	label          string
	externalDevice bool // true when using shared device (don't destroy on Close)
}

// Open creates a standalone GPU device: it selects a HAL backend,
// enumerates adapters, prefers a discrete or integrated GPU, and opens it
// with default features and limits.
func Open(opts DeviceOptions) (*Device, error) {
	api := opts.Backend
	if api == 0 {
		api = gputypes.BackendVulkan
	}
	if opts.Label == "" {
		opts.Label = "quad"
	}

	backend, ok := hal.GetBackend(api)
	if !ok {
		return nil, fmt.Errorf("%w: backend %v not registered", ErrNoBackend, api)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapters
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	logger().Info("quad: GPU device opened", "adapter", selected.Info.Name)

	return &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		label:    opts.Label,
	}, nil
}

// NewDeviceFrom wraps an externally owned HAL device and queue. The caller
// retains ownership: Close will not destroy them.
func NewDeviceFrom(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	return &Device{
		device:         device,
		queue:          queue,
		label:          "quad",
		externalDevice: true,
	}, nil
}

// Close releases the device and instance if this Device owns them.
// Safe to call multiple times.
func (d *Device) Close() {
	if !d.externalDevice {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.instance = nil
	d.queue = nil
}

// HALDevice returns the underlying hal.Device, or nil after Close.
func (d *Device) HALDevice() hal.Device { return d.device }

// HALQueue returns the underlying hal.Queue, or nil after Close.
func (d *Device) HALQueue() hal.Queue { return d.queue }
