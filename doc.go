// Package ubershader generates shader program variants from templates and
// renders deferred lighting with them on gogpu/wgpu HAL devices.
//
// # Overview
//
// A [Renderer] wraps a HAL device and queue in a [gpucore.Context] and
// registers the shader languages available on it (WGSL compiled to SPIR-V,
// and GLSL cross-compiled through naga). Everything that owns device
// storage is created on that context and survives a device reset through
// [Renderer.BackupDeviceData] and [Renderer.RestoreDeviceData].
//
// # Quick Start
//
//	r, err := ubershader.NewRenderer(device, queue)
//	if err != nil {
//		return err
//	}
//	pass, err := r.NewLightingPass(deferred.WithFlags(deferred.NoSoftShadow))
//	if err != nil {
//		return err
//	}
//	defer pass.Release()
//
//	stats, err := pass.Draw(deferred.Frame{
//		Target:  hdrTarget,
//		View:    view,
//		GBuffer: gbuffer,
//	})
//
// # Architecture
//
// The module is organized into:
//   - gpucore: device context, resource registry, statistics, logging
//   - buffer: vertex, index and uniform buffers with nested locking
//   - shader: languages, shaders, programs and the template preprocessor
//   - progen: the program variant generator and its caches
//   - scene: lights, views and the matrix helpers passes use
//   - deferred: the deferred lighting pass
//   - reload: template hot reload
//
// # Logging
//
// Nothing is logged by default. See [SetLogger].
package ubershader
