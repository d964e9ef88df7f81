package gputest

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ubershader/gpucore"
)

// TextureView returns a texture view created on the context's device.
func TextureView(t testing.TB, ctx *gpucore.Context) hal.TextureView {
	t.Helper()
	v, err := ctx.Device().CreateTextureView(nil, &hal.TextureViewDescriptor{Label: "test view"})
	if err != nil {
		t.Fatalf("CreateTextureView failed: %v", err)
	}
	return v
}

// Sampler returns a linear clamping sampler created on the context's device.
func Sampler(t testing.TB, ctx *gpucore.Context) hal.Sampler {
	t.Helper()
	s, err := ctx.Device().CreateSampler(&hal.SamplerDescriptor{
		Label:        "test sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
	})
	if err != nil {
		t.Fatalf("CreateSampler failed: %v", err)
	}
	return s
}

// RenderPass begins a render pass on a fresh encoder. The pass is ended when
// the test finishes.
func RenderPass(t testing.TB, ctx *gpucore.Context) hal.RenderPassEncoder {
	t.Helper()
	enc, err := ctx.Device().CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "test"})
	if err != nil {
		t.Fatalf("CreateCommandEncoder failed: %v", err)
	}
	if err := enc.BeginEncoding("test"); err != nil {
		t.Fatalf("BeginEncoding failed: %v", err)
	}
	pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{Label: "test pass"})
	t.Cleanup(pass.End)
	return pass
}

// DistinctView is a texture view with an identity of its own. Noop views are
// zero-size values and may all share one address, so caches keyed by view
// cannot tell them apart.
type DistinctView struct {
	Name string
}

// Destroy is a no-op.
func (*DistinctView) Destroy() {}

// NativeHandle returns 0.
func (*DistinctView) NativeHandle() uintptr { return 0 }
