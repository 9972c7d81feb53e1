// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop-backed Device for testing.
// Returns the device and a cleanup function.
func createNoopDevice(t *testing.T) (*Device, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	dev, err := NewDeviceFrom(openDev.Device, openDev.Queue)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		t.Fatalf("NewDeviceFrom failed: %v", err)
	}
	cleanup := func() {
		dev.Close()
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return dev, cleanup
}

func TestNewDeviceFrom(t *testing.T) {
	dev, cleanup := createNoopDevice(t)
	defer cleanup()

	if dev.HALDevice() == nil {
		t.Error("expected non-nil HALDevice")
	}
	if dev.HALQueue() == nil {
		t.Error("expected non-nil HALQueue")
	}
	if !dev.externalDevice {
		t.Error("NewDeviceFrom should mark the device external")
	}
}

func TestNewDeviceFromNil(t *testing.T) {
	if _, err := NewDeviceFrom(nil, nil); err == nil {
		t.Fatal("expected error for nil device and queue")
	}

	var q hal.Queue
	if _, err := NewDeviceFrom(nil, q); err == nil {
		t.Fatal("expected error for nil device")
	}
}

func TestDeviceCloseExternal(t *testing.T) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer openDev.Device.Destroy()

	dev, err := NewDeviceFrom(openDev.Device, openDev.Queue)
	if err != nil {
		t.Fatalf("NewDeviceFrom failed: %v", err)
	}

	// Close must not destroy the borrowed device, and must be idempotent.
	dev.Close()
	dev.Close()
	if dev.HALDevice() != nil {
		t.Error("expected nil HALDevice after Close")
	}
	if dev.HALQueue() != nil {
		t.Error("expected nil HALQueue after Close")
	}

	// The borrowed device must still be usable.
	buf, err := openDev.Device.CreateBuffer(&hal.BufferDescriptor{
		Label: "post_close_probe",
		Size:  16,
		Usage: gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("borrowed device unusable after Close: %v", err)
	}
	openDev.Device.DestroyBuffer(buf)
}
