// Package gputest provides headless device fixtures for tests.
package gputest

import (
	"testing"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/ubershader/gpucore"
)

// NoopDevice opens a device and queue on the noop backend. The device and
// instance are destroyed when the test finishes. Buffer copies recorded on
// the device's encoders are carried out, so staged readbacks see the bytes
// written through the queue.
func NoopDevice(t testing.TB) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("noop backend exposed no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return &CopyingDevice{Device: openDev.Device}, openDev.Queue
}

// NewContext returns a gpucore.Context on a fresh noop device.
func NewContext(t testing.TB) *gpucore.Context {
	t.Helper()
	device, queue := NoopDevice(t)
	ctx, err := gpucore.NewContext(device, queue)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	return ctx
}

// CopyingDevice wraps a noop device whose encoders drop buffer copies.
type CopyingDevice struct {
	hal.Device
}

// CreateCommandEncoder returns an encoder that copies buffer regions through
// the device's mappings.
func (d *CopyingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &copyingEncoder{CommandEncoder: enc, device: d.Device}, nil
}

type copyingEncoder struct {
	hal.CommandEncoder
	device hal.Device
}

// CopyBufferToBuffer copies at record time. Noop submissions complete at
// once, so the order matches a real queue.
func (e *copyingEncoder) CopyBufferToBuffer(src, dst hal.Buffer, regions []hal.BufferCopy) {
	e.CommandEncoder.CopyBufferToBuffer(src, dst, regions)
	for _, r := range regions {
		from, err := e.device.MapBuffer(src, r.SrcOffset, r.Size)
		if err != nil {
			continue
		}
		to, err := e.device.MapBuffer(dst, r.DstOffset, r.Size)
		if err != nil {
			_ = e.device.UnmapBuffer(src)
			continue
		}
		copy(unsafe.Slice((*byte)(to.Ptr), r.Size), unsafe.Slice((*byte)(from.Ptr), r.Size))
		_ = e.device.UnmapBuffer(dst)
		_ = e.device.UnmapBuffer(src)
	}
}
